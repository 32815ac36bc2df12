package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyMode       = "mode"
	KeyStage      = "stage"
	KeyState      = "state"
	KeyLayout     = "layout"
	KeyBundle     = "bundle"
	KeyMiddleware = "middleware"
	KeyMethod     = "method"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyStatus     = "status"
	KeyFeature    = "feature"
	KeyRoute      = "route"
	KeyDurationMS = "duration_ms"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
	KeyRequestID  = "request_id"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Mode(m string) slog.Attr          { return slog.String(KeyMode, m) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func State(s string) slog.Attr         { return slog.String(KeyState, s) }
func Layout(name string) slog.Attr     { return slog.String(KeyLayout, name) }
func Bundle(name string) slog.Attr     { return slog.String(KeyBundle, name) }
func Middleware(name string) slog.Attr { return slog.String(KeyMiddleware, name) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func Feature(name string) slog.Attr    { return slog.String(KeyFeature, name) }
func Route(name string) slog.Attr      { return slog.String(KeyRoute, name) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(a string) slog.Attr    { return slog.String(KeyRemoteAddr, a) }
func RequestID(id string) slog.Attr    { return slog.String(KeyRequestID, id) }

// Duration reports d in fractional milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
