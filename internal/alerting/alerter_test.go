package alerting

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSeverityString(t *testing.T) {
	cases := []struct {
		severity Severity
		want     string
	}{
		{SeverityInfo, "INFO"},
		{SeverityWarning, "WARNING"},
		{SeverityCritical, "CRITICAL"},
		{Severity(99), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.severity.String(); got != tc.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tc.severity, got, tc.want)
		}
	}
}

func TestFormatFields(t *testing.T) {
	got := FormatFields("order", "abc123", "kind", "stop_loss", "price", "0.009")
	if !strings.Contains(got, "• order: abc123") {
		t.Errorf("missing order field: %q", got)
	}
	if !strings.Contains(got, "• kind: stop_loss") {
		t.Errorf("missing kind field: %q", got)
	}

	if got := FormatFields(); got != "" {
		t.Errorf("FormatFields() with no fields = %q, want empty", got)
	}
}

func TestFormatFieldsSkipsNonStringKeys(t *testing.T) {
	got := FormatFields(42, "x", "valid", "y")
	if strings.Contains(got, "42") {
		t.Errorf("non-string key should be skipped: %q", got)
	}
	if !strings.Contains(got, "• valid: y") {
		t.Errorf("valid field missing: %q", got)
	}
}

func TestEventSeverity(t *testing.T) {
	if got := EventSeverity(EventOrderFailed); got != SeverityWarning {
		t.Errorf("EventSeverity(order_failed) = %v, want warning", got)
	}
	if got := EventSeverity(EventFeedDegraded); got != SeverityWarning {
		t.Errorf("EventSeverity(feed_degraded) = %v, want warning", got)
	}
	if got := EventSeverity(EventOrderTriggered); got != SeverityInfo {
		t.Errorf("EventSeverity(order_triggered) = %v, want info", got)
	}
}

func TestConsoleAlerterLogsAtMatchingLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := NewConsoleAlerter(logger)

	if err := a.Alert(context.Background(), SeverityCritical, "something broke", "order", "abc"); err != nil {
		t.Fatalf("Alert() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") {
		t.Errorf("critical alert should log at error level: %q", out)
	}
	if !strings.Contains(out, "something broke") {
		t.Errorf("message missing from log: %q", out)
	}
	if !strings.Contains(out, "order=abc") {
		t.Errorf("fields missing from log: %q", out)
	}
}

func TestMultiAlerterFansOut(t *testing.T) {
	a := NewMockAlerter()
	b := NewMockAlerter()
	m := NewMultiAlerter(newTestLogger(), a, b)

	if err := m.Alert(context.Background(), SeverityInfo, "hello"); err != nil {
		t.Fatalf("Alert() error = %v", err)
	}

	if len(a.Alerts()) != 1 || len(b.Alerts()) != 1 {
		t.Errorf("expected both channels to receive the alert, got %d and %d", len(a.Alerts()), len(b.Alerts()))
	}
}

func TestMultiAlerterContinuesPastFailure(t *testing.T) {
	bad := NewMockAlerter()
	bad.SetError(errors.New("channel down"))
	good := NewMockAlerter()
	m := NewMultiAlerter(newTestLogger(), bad, good)

	err := m.Alert(context.Background(), SeverityWarning, "degraded")
	if err == nil {
		t.Fatal("expected error from failing channel")
	}
	if len(good.Alerts()) != 1 {
		t.Errorf("healthy channel should still receive the alert, got %d", len(good.Alerts()))
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}
