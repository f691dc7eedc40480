// Package alerting provides operational notifications for the order engine.
package alerting

import (
	"context"
	"fmt"
)

// Severity represents the alert severity level.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning messages.
	SeverityWarning
	// SeverityCritical is for critical alerts requiring immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns an emoji for the severity level.
func (s Severity) Emoji() string {
	switch s {
	case SeverityInfo:
		return "ℹ️"
	case SeverityWarning:
		return "⚠️"
	case SeverityCritical:
		return "🚨"
	default:
		return "❓"
	}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	// Alert sends an alert with the given severity and message. Fields
	// are alternating key/value pairs, slog style.
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	// Name returns the name of the alerter.
	Name() string
}

// FormatFields converts variadic key/value fields to a bullet list.
func FormatFields(fields ...any) string {
	if len(fields) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if result != "" {
			result += "\n"
		}
		result += fmt.Sprintf("• %s: %v", key, fields[i+1])
	}
	return result
}

// AlertEvent represents a pre-defined alert event type.
type AlertEvent string

const (
	// EventOrderTriggered is sent when an order's condition becomes true
	// and a swap was built.
	EventOrderTriggered AlertEvent = "order_triggered"
	// EventOrderFailed is sent when an order exhausts its retries or hits
	// a terminal business error.
	EventOrderFailed AlertEvent = "order_failed"
	// EventFeedDegraded is sent when price fetches fail repeatedly.
	EventFeedDegraded AlertEvent = "feed_degraded"
	// EventEngineStarted is sent on startup.
	EventEngineStarted AlertEvent = "engine_started"
	// EventEngineStopped is sent on shutdown.
	EventEngineStopped AlertEvent = "engine_stopped"
)

// EventSeverity returns the default severity for an event.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventOrderFailed, EventFeedDegraded:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
