package optimistic

import (
	"context"
	"log/slog"
	"strings"
)

// Severity classifies a user-visible notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// ParseSeverity maps free-form text to a Severity, defaulting to info.
func ParseSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "ok":
		return SeveritySuccess
	case "error", "err", "failure":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Notifier presents short, ephemeral messages to the user.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, severity Severity, message string)

func (f NotifierFunc) Notify(ctx context.Context, severity Severity, message string) {
	f(ctx, severity, message)
}

// LogNotifier writes notifications to slog. Useful when no screen is attached.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, severity Severity, message string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch severity {
	case SeverityError:
		level = slog.LevelError
	case SeverityWarning:
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "notification", slog.String("severity", string(severity)), slog.String("message", message))
}

// MultiNotifier fans a notification out to every non-nil notifier.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, severity Severity, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, severity, message)
		}
	}
}
