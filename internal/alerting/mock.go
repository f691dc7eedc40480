package alerting

import (
	"context"
	"sync"
)

// RecordedAlert captures a single call to MockAlerter.Alert.
type RecordedAlert struct {
	Severity Severity
	Message  string
	Fields   []any
}

// MockAlerter records alerts for tests.
type MockAlerter struct {
	mu     sync.Mutex
	alerts []RecordedAlert
	err    error
}

// NewMockAlerter creates a mock alerter.
func NewMockAlerter() *MockAlerter {
	return &MockAlerter{}
}

// Alert records the call and returns the configured error, if any.
func (m *MockAlerter) Alert(_ context.Context, severity Severity, message string, fields ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, RecordedAlert{
		Severity: severity,
		Message:  message,
		Fields:   fields,
	})
	return m.err
}

// Name returns the alerter name.
func (m *MockAlerter) Name() string {
	return "mock"
}

// SetError makes subsequent Alert calls return err.
func (m *MockAlerter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Alerts returns a copy of the recorded alerts.
func (m *MockAlerter) Alerts() []RecordedAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedAlert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Reset clears the recorded alerts.
func (m *MockAlerter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = nil
}
