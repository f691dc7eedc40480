package alerting

import (
	"context"
	"log/slog"
)

// ConsoleAlerter writes alerts to the structured log. It is the fallback
// channel and never fails.
type ConsoleAlerter struct {
	logger *slog.Logger
}

// NewConsoleAlerter creates a console alerter.
func NewConsoleAlerter(logger *slog.Logger) *ConsoleAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleAlerter{logger: logger}
}

// Alert logs the alert at a level matching its severity.
func (c *ConsoleAlerter) Alert(_ context.Context, severity Severity, message string, fields ...any) error {
	attrs := append([]any{"severity", severity.String()}, fields...)

	switch severity {
	case SeverityCritical:
		c.logger.Error(message, attrs...)
	case SeverityWarning:
		c.logger.Warn(message, attrs...)
	default:
		c.logger.Info(message, attrs...)
	}
	return nil
}

// Name returns the alerter name.
func (c *ConsoleAlerter) Name() string {
	return "console"
}
