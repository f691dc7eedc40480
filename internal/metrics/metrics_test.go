package metrics

import (
	"testing"
	"time"
)

// Recorder methods go through promauto-registered collectors; these tests
// verify the label sets stay consistent (a mismatch panics).

func TestRecorderFeed(t *testing.T) {
	r := NewRecorder()

	r.RecordPriceTick("poll")
	r.RecordPriceTick("push")
	r.RecordFeedError()
	r.RecordWatchedInstruments(3)
	r.RecordUpdateDropped()
}

func TestRecorderMatching(t *testing.T) {
	r := NewRecorder()

	r.RecordEvaluation("LIMIT_BUY")
	r.RecordTrigger("TRAILING_STOP")
	r.RecordExecutionAttempt("success")
	r.RecordExecutionAttempt("transient_error")
	r.RecordExecutionAttempt("terminal_error")
	r.RecordActiveOrders(7)
	r.RecordTerminal("FILLED")
	r.RecordTerminal("FAILED")
	r.RecordReconcile()
}

func TestRecorderEvents(t *testing.T) {
	r := NewRecorder()

	r.RecordEventPublished("triggered")
	r.RecordEventDropped()
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	timer.ObserveExecution()
}
