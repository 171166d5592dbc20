// Package observability provides structured logging for mixarr.
//
// Loggers built here redact credentials two ways: struct fields tagged
// `masq:"secret"` are masked by masq, and well-known sensitive attribute
// keys (password, token, api_key, ...) are masked by key name, including
// when they appear as URL query parameters.
package observability

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/masq"

	"github.com/jmylchreest/mixarr/internal/config"
)

// LevelTrace sits below slog.LevelDebug for per-frame and per-chunk
// noise (ffmpeg progress lines, pull-loop ticks).
const LevelTrace = slog.Level(-8)

// redactedMarker replaces sensitive values in log output.
const redactedMarker = "[REDACTED]"

// sensitiveKeys are attribute and query-parameter names whose values
// are never logged. Lookup is case-insensitive.
var sensitiveKeys = map[string]struct{}{
	"password":   {},
	"secret":     {},
	"token":      {},
	"apikey":     {},
	"api_key":    {},
	"credential": {},
}

// NewLogger creates a logger from the logging configuration, writing
// to stdout.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a logger that writes to w. Tests pass a
// buffer; the daemon passes stderr so segment output on stdout stays
// clean.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	redactTagged := masq.New(masq.WithTag("secret"))

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a = redactTagged(groups, a)

			if len(groups) == 0 {
				switch a.Key {
				case slog.TimeKey:
					if cfg.TimeFormat != "" {
						if t, ok := a.Value.Any().(time.Time); ok {
							return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
						}
					}
					return a
				case slog.LevelKey:
					// slog renders Level(-8) as "DEBUG-4".
					if lv, ok := a.Value.Any().(slog.Level); ok && lv == LevelTrace {
						return slog.String(slog.LevelKey, "TRACE")
					}
					return a
				}
			}

			return redactSensitive(a)
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// SetDefault installs the logger as the process-wide slog default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// parseLevel converts a string log level to slog.Level. Unknown values
// fall back to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactSensitive masks attributes whose key names a credential, and
// scrubs sensitive query parameters out of URL-shaped string values.
func redactSensitive(a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redactedMarker)
	}

	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); strings.Contains(s, "://") {
			if scrubbed, changed := redactURLParams(s); changed {
				return slog.String(a.Key, scrubbed)
			}
		}
	}

	return a
}

// redactURLParams masks sensitive query parameters in a URL string.
// Returns the input unchanged when it does not parse or carries no
// sensitive parameters.
func redactURLParams(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw, false
	}

	q := u.Query()
	changed := false
	for key := range q {
		if _, ok := sensitiveKeys[strings.ToLower(key)]; ok {
			q.Set(key, redactedMarker)
			changed = true
		}
	}
	if !changed {
		return raw, false
	}

	u.RawQuery = q.Encode()
	return u.String(), true
}

// WithComponent tags the logger with the emitting subsystem.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// WithOperation tags the logger with a named operation.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String("operation", operation))
}

// WithError attaches an error to the logger. Nil errors return the
// logger unchanged.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}

// TimedOperation logs the start of an operation and returns a func to
// defer that logs completion with the elapsed duration.
func TimedOperation(logger *slog.Logger, operation string) func() {
	start := time.Now()
	logger.Info("operation started", slog.String("operation", operation))

	return func() {
		logger.Info("operation completed",
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
