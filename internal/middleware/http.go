package middleware

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/logfields"
)

// Chain returns a middleware wrapper that applies logging and panic recovery around a handler.
func Chain(logger *slog.Logger, adapter *errors.HTTPErrorAdapter) Func {
	return func(next http.Handler) http.Handler {
		return Logging(logger)(Recovery(logger, adapter)(next))
	}
}

// Logging logs method, path, status, duration, user agent, and remote addr.
func Logging(logger *slog.Logger) Func {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			attrs := []any{
				logfields.Method(r.Method),
				logfields.Path(r.URL.Path),
				logfields.Status(wrapped.statusCode),
				logfields.Duration(time.Since(start)),
				logfields.UserAgent(r.UserAgent()),
				logfields.RemoteAddr(r.RemoteAddr),
			}
			if id := RequestIDFrom(r.Context()); id != "" {
				attrs = append(attrs, logfields.RequestID(id))
			}
			logger.Info("HTTP request", attrs...)
		})
	}
}

// Recovery recovers from panics and writes a structured error response via the HTTPErrorAdapter.
func Recovery(logger *slog.Logger, adapter *errors.HTTPErrorAdapter) Func {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("HTTP handler panic",
						slog.String("panic", fmt.Sprint(rec)),
						logfields.Path(r.URL.Path),
						logfields.Method(r.Method),
						logfields.RemoteAddr(r.RemoteAddr))

					panicErr := errors.InternalError("internal server error").
						WithContext("path", r.URL.Path).
						WithContext("method", r.Method).
						Build()

					adapter.WriteErrorResponse(w, r, panicErr)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter captures status codes for logging and metrics. Flush and
// Hijack pass through so streaming handlers keep working.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
