package alerting

import (
	"context"
	"errors"
	"log/slog"
)

// MultiAlerter fans an alert out to several channels. A failing channel
// does not stop delivery to the others.
type MultiAlerter struct {
	alerters []Alerter
	logger   *slog.Logger
}

// NewMultiAlerter creates a multi-alerter from the given channels.
func NewMultiAlerter(logger *slog.Logger, alerters ...Alerter) *MultiAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiAlerter{
		alerters: alerters,
		logger:   logger,
	}
}

// Alert sends the alert to all channels and joins any errors.
func (m *MultiAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	var errs []error
	for _, a := range m.alerters {
		if err := a.Alert(ctx, severity, message, fields...); err != nil {
			m.logger.Warn("alert channel failed",
				"channel", a.Name(),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Name returns the alerter name.
func (m *MultiAlerter) Name() string {
	return "multi"
}
