package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := ConfigError("invalid mode").
			WithContext("mode", "staging").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if !err.IsFatal() {
			t.Error("expected config error to be fatal")
		}
		mode, ok := err.Context().GetString("mode")
		if !ok || mode != "staging" {
			t.Errorf("expected context mode=staging, got %v", mode)
		}
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		inner := BuildError("compile failed").Build()
		wrapped := fmt.Errorf("startup: %w", inner)

		if !IsClassified(wrapped) {
			t.Fatal("expected wrapped error to be classified")
		}
		if !HasCategory(wrapped, CategoryBuild) {
			t.Error("expected build category through wrap")
		}
		if GetCategory(stderrors.New("plain")) != CategoryInternal {
			t.Error("unclassified errors report internal category")
		}
	})

	t.Run("Rebuild errors are warnings", func(t *testing.T) {
		err := RebuildError("syntax error").Build()
		if err.IsFatal() {
			t.Error("rebuild errors must not be fatal")
		}
		if GetSeverity(err) != SeverityWarning {
			t.Errorf("expected warning severity, got %s", GetSeverity(err))
		}
	})

	t.Run("WithContext does not mutate the receiver", func(t *testing.T) {
		base := ConfigError("bad").Build()
		_ = base.WithContext("k", "v")
		if _, ok := base.Context().Get("k"); ok {
			t.Error("expected original context to be unchanged")
		}
	})
}

func TestErrorBuilderWrap(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := WrapError(cause, CategoryDiscovery, "read feature directory").
		Fatal().
		WithContext("path", "/srv/routes/users").
		Build()

	if !stderrors.Is(err, cause) {
		t.Error("expected error to wrap cause")
	}
	if err.Error() != "[discovery:fatal] read feature directory: permission denied" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, 0},
		{"config", ConfigError("x").Build(), 7},
		{"discovery", DiscoveryError("x").Build(), 7},
		{"build", BuildError("x").Build(), 11},
		{"runtime", RuntimeError("x").Build(), 12},
		{"internal", InternalError("x").Build(), 10},
		{"unclassified", stderrors.New("x"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)

	adapter.WriteErrorResponse(rec, req, NewError(CategoryNotFound, "route not found").
		WithContext("path", "/missing").
		Build())

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var payload HTTPErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error != "route not found" || payload.Code != "not_found" {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if payload.Details["path"] != "/missing" {
		t.Errorf("expected path detail, got %v", payload.Details)
	}
}
