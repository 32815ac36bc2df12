package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	ferrors "git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/logfields"
	"git.home.luguber.info/inful/appserve/internal/middleware"
)

// StatusHandler serves the pipeline Status as JSON.
func StatusHandler(p *Pipeline) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(p.Status()); err != nil {
			slog.Debug("status encode", logfields.Error(err))
		}
	})
}

// dashboard is the development status endpoint on its own port.
type dashboard struct {
	srv *http.Server
	ln  net.Listener
}

func startDashboard(port int, p *Pipeline) (*dashboard, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	logger := slog.Default()
	mux := http.NewServeMux()
	mux.Handle("/", StatusHandler(p))
	d := &dashboard{
		srv: &http.Server{
			Handler:           middleware.Chain(logger, ferrors.NewHTTPErrorAdapter(logger))(mux),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln: ln,
	}
	go func() {
		if err := d.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Dashboard stopped", logfields.Error(err))
		}
	}()
	slog.Info("Build dashboard listening", slog.String("addr", ln.Addr().String()))
	return d, nil
}

func (d *dashboard) shutdown(ctx context.Context) error {
	return d.srv.Shutdown(ctx)
}
