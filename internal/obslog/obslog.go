// Package obslog builds the structured logging chain every binary in this
// repository uses: JSONHandler -> ComponentHandler -> SentryHandler. Grounded
// on pkg/bootstrap/bootstrap.go's InitLogger/NewLogger and
// pkg/infrastructure/sentry/sentry.go's SentryHandler, carried over verbatim in
// shape since logging/error-reporting is an ambient concern spec.md's
// Non-goals never scope out.
package obslog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// HandlerOptions returns handler options with Cloud-Logging-compatible key
// names (severity/message instead of slog's default level/msg).
func HandlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: a.Value}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{Key: "severity", Value: a.Value}
			}
			return a
		},
	}
}

// ComponentHandler prepends "[component]" to the log message when a
// "component" attribute is present, so log lines stay greppable by component
// without needing a structured-log viewer.
type ComponentHandler struct {
	slog.Handler
	component string
}

func (h *ComponentHandler) WithGroup(name string) slog.Handler {
	return &ComponentHandler{Handler: h.Handler.WithGroup(name), component: h.component}
}

func (h *ComponentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newComp := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			newComp = a.Value.String()
		}
	}
	return &ComponentHandler{Handler: h.Handler.WithAttrs(attrs), component: newComp}
}

func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	comp := h.component
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			comp = a.Value.String()
			return false
		}
		return true
	})

	if comp == "" {
		return h.Handler.Handle(ctx, r)
	}

	newRecord := slog.NewRecord(r.Time, r.Level, fmt.Sprintf("[%s] %s", comp, r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		newRecord.AddAttrs(a)
		return true
	})
	return h.Handler.Handle(ctx, newRecord)
}

// SentryConfig configures the Sentry client. An empty DSN disables reporting.
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	ServerName       string
	TracesSampleRate float64
}

// InitSentry initializes the Sentry SDK; a no-op when DSN is empty.
func InitSentry(cfg SentryConfig, logger *slog.Logger) error {
	if cfg.DSN == "" {
		if logger != nil {
			logger.Warn("sentry DSN not configured, error tracking disabled")
		}
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:                cfg.DSN,
		Environment:        cfg.Environment,
		Release:            cfg.Release,
		ServerName:         cfg.ServerName,
		TracesSampleRate:   cfg.TracesSampleRate,
		ProfilesSampleRate: cfg.TracesSampleRate,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
			}
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	return nil
}

// SentryHandler reports Error-level log records to Sentry in addition to
// delegating to the wrapped handler.
type SentryHandler struct {
	slog.Handler
}

func NewSentryHandler(h slog.Handler) *SentryHandler {
	return &SentryHandler{Handler: h}
}

func (h *SentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		attrs := make(map[string]interface{})
		r.Attrs(func(a slog.Attr) bool {
			attrs[a.Key] = a.Value.Any()
			return true
		})
		if errVal, ok := attrs["error"]; ok {
			if err, isErr := errVal.(error); isErr {
				sentry.ConfigureScope(func(scope *sentry.Scope) {
					scope.SetContext("attrs", sentry.Context(attrs))
				})
				sentry.CaptureException(err)
			} else {
				sentry.CaptureMessage(fmt.Sprintf("%s: %v", r.Message, errVal))
			}
		} else {
			sentry.CaptureMessage(r.Message)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *SentryHandler) WithGroup(name string) slog.Handler {
	return &SentryHandler{Handler: h.Handler.WithGroup(name)}
}

func (h *SentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SentryHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// Flush waits for buffered Sentry events to send, for clean shutdown.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// New builds the full JSONHandler -> ComponentHandler -> SentryHandler chain
// and returns a logger with "service" pre-bound.
func New(serviceName string, sentryCfg SentryConfig) *slog.Logger {
	level := levelFromEnv()
	jsonHandler := slog.NewJSONHandler(os.Stdout, HandlerOptions(level))
	compHandler := &ComponentHandler{Handler: jsonHandler}
	sentryHandler := NewSentryHandler(compHandler)
	return slog.New(sentryHandler).With("service", serviceName)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
