package pool

import "time"

// Metrics receives pool telemetry. Implementations must be safe for
// concurrent use; every method is called from worker goroutines.
// observability/prometheus provides a Prometheus-backed implementation.
type Metrics interface {
	RecordTaskDuration(priority int, d time.Duration)
	RecordTaskPanic(priority int)
	RecordTaskRejected(reason string)
	RecordQueueDepth(n int)
	RecordResultsPending(n int)
	RecordWorkers(n int)
}

// Rejection reasons passed to RecordTaskRejected.
const (
	RejectNilFunc         = "nil_func"
	RejectInvalidPriority = "invalid_priority"
)

// NilMetrics discards everything.
type NilMetrics struct{}

func (NilMetrics) RecordTaskDuration(int, time.Duration) {}
func (NilMetrics) RecordTaskPanic(int)                   {}
func (NilMetrics) RecordTaskRejected(string)             {}
func (NilMetrics) RecordQueueDepth(int)                  {}
func (NilMetrics) RecordResultsPending(int)              {}
func (NilMetrics) RecordWorkers(int)                     {}

var _ Metrics = NilMetrics{}
