// Package prometheus exports pool telemetry as Prometheus collectors.
package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/utkarsh5026/lanepool/pool"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter owns the collectors shared by every pool it observes.
// Call ForPool to get the pool.Metrics to hand to pool.WithMetrics.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	taskRejectedTotal   *prom.CounterVec
	queueDepth          *prom.GaugeVec
	resultsPending      *prom.GaugeVec
	workers             *prom.GaugeVec
}

// NewMetricsExporter creates and registers the collectors. Registering twice
// against the same registry reuses the collectors already there.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "lanepool"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"pool", "priority"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"pool", "priority"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of tasks refused by Enqueue.",
	}, []string{"pool", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Tasks waiting in the priority lanes.",
	}, []string{"pool"})
	resultsVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "results_pending",
		Help:      "Stored results not yet popped.",
	}, []string{"pool"})
	workersVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "workers",
		Help:      "Workers of the current run.",
	}, []string{"pool"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if resultsVec, err = registerCollector(reg, resultsVec); err != nil {
		return nil, err
	}
	if workersVec, err = registerCollector(reg, workersVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskPanicTotal:      panicVec,
		taskRejectedTotal:   rejectedVec,
		queueDepth:          queueDepthVec,
		resultsPending:      resultsVec,
		workers:             workersVec,
	}, nil
}

// ForPool returns a pool.Metrics that labels every sample with poolName.
func (m *MetricsExporter) ForPool(poolName string) pool.Metrics {
	return &poolMetrics{exporter: m, name: normalizeLabel(poolName, "unknown")}
}

type poolMetrics struct {
	exporter *MetricsExporter
	name     string
}

var _ pool.Metrics = (*poolMetrics)(nil)

// RecordTaskDuration records task execution duration.
func (p *poolMetrics) RecordTaskDuration(priority int, duration time.Duration) {
	p.exporter.taskDurationSeconds.WithLabelValues(p.name, priorityLabel(priority)).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (p *poolMetrics) RecordTaskPanic(priority int) {
	p.exporter.taskPanicTotal.WithLabelValues(p.name, priorityLabel(priority)).Inc()
}

// RecordTaskRejected records task rejection events.
func (p *poolMetrics) RecordTaskRejected(reason string) {
	p.exporter.taskRejectedTotal.WithLabelValues(p.name, normalizeLabel(reason, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (p *poolMetrics) RecordQueueDepth(depth int) {
	p.exporter.queueDepth.WithLabelValues(p.name).Set(float64(depth))
}

func (p *poolMetrics) RecordResultsPending(n int) {
	p.exporter.resultsPending.WithLabelValues(p.name).Set(float64(n))
}

func (p *poolMetrics) RecordWorkers(n int) {
	p.exporter.workers.WithLabelValues(p.name).Set(float64(n))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func priorityLabel(priority int) string {
	if priority < 0 {
		return "unknown"
	}
	return strconv.Itoa(priority)
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
