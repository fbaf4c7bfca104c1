package podengine

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog logger writing to w (stderr when nil).
// format is "json" or "console".
func NewLogger(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func (a *App) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := a.Logger.Info()
			if v.Status >= 500 {
				ev = a.Logger.Error()
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// logStart records the effective configuration once, without secrets.
func (a *App) logStart() {
	a.Logger.Info().
		Str("addr", a.Config.Addr).
		Str("environment", a.Config.Environment).
		Str("database", a.Config.DatabasePath).
		Str("uploads", a.Config.UploadDir).
		Dur("token_ttl", a.Config.TokenTTL).
		Dur("rate_limit_window", a.Config.RateLimitWindow).
		Time("started", time.Now()).
		Msg("podengine starting")
}
