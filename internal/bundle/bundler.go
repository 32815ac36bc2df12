package bundle

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Severity of a build diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one compiler message.
type Diagnostic struct {
	Severity Severity
	Text     string
	File     string
	Line     int
	Column   int
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Text)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Text)
}

// Result summarizes one build pass.
type Result struct {
	Diagnostics []Diagnostic
	OutputFiles []string
	Duration    time.Duration
}

// HasErrors reports whether any diagnostic is an error.
func (r Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns error diagnostics only.
func (r Result) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Summary joins error diagnostics into one line.
func (r Result) Summary() string {
	errs := r.Errors()
	parts := make([]string, 0, len(errs))
	for _, d := range errs {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, "; ")
}

// Bundler runs builds for one composed configuration. Build is a one-shot
// pass. Rebuild reuses incremental state and may be called repeatedly until
// Dispose. A non-nil error is a hard failure; compile errors are reported in
// Result.Diagnostics.
type Bundler interface {
	Build(ctx context.Context) (Result, error)
	Rebuild(ctx context.Context) (Result, error)
	Dispose()
}

// Factory binds a Bundler to a configuration.
type Factory func(cfg *BuildConfig) (Bundler, error)
