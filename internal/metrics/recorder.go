package metrics

import "time"

// Recorder provides methods for recording metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordPriceTick records an ingested price observation.
func (r *Recorder) RecordPriceTick(source string) {
	PriceTicksTotal.WithLabelValues(source).Inc()
	HeartbeatTimestamp.Set(float64(time.Now().Unix()))
}

// RecordFeedError records a failed price fetch batch.
func (r *Recorder) RecordFeedError() {
	FeedErrorsTotal.Inc()
}

// RecordWatchedInstruments records the current watch set size.
func (r *Recorder) RecordWatchedInstruments(n int) {
	WatchedInstruments.Set(float64(n))
}

// RecordUpdateDropped records a dropped price update.
func (r *Recorder) RecordUpdateDropped() {
	UpdatesDroppedTotal.Inc()
}

// RecordEvaluation records one order evaluation.
func (r *Recorder) RecordEvaluation(kind string) {
	EvaluationsTotal.WithLabelValues(kind).Inc()
}

// RecordTrigger records an order condition becoming true.
func (r *Recorder) RecordTrigger(kind string) {
	TriggersTotal.WithLabelValues(kind).Inc()
}

// RecordExecutionAttempt records a swap build attempt outcome.
func (r *Recorder) RecordExecutionAttempt(outcome string) {
	ExecutionAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordActiveOrders records the in-memory active set size.
func (r *Recorder) RecordActiveOrders(n int) {
	OrdersActive.Set(float64(n))
}

// RecordTerminal records an order reaching a terminal state.
func (r *Recorder) RecordTerminal(status string) {
	OrdersTerminalTotal.WithLabelValues(status).Inc()
}

// RecordReconcile records a completed reconciliation pass.
func (r *Recorder) RecordReconcile() {
	ReconcileRunsTotal.Inc()
}

// RecordEventPublished records a published lifecycle event.
func (r *Recorder) RecordEventPublished(eventType string) {
	EventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// RecordEventDropped records a dropped lifecycle event.
func (r *Recorder) RecordEventDropped() {
	EventsDroppedTotal.Inc()
}

// Timer measures a duration and records it on observe.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveExecution records the elapsed time as execution latency.
func (t *Timer) ObserveExecution() {
	ExecutionLatency.Observe(time.Since(t.start).Seconds())
}
