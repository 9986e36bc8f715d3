package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// newTestPool builds a pool and closes it when the test ends.
func newTestPool[P, R any](t *testing.T, priorities int, opts ...Option) *ThreadPool[P, R] {
	t.Helper()
	opts = append([]Option{WithStopTimeout(2 * time.Second)}, opts...)
	p, err := New[P, R](priorities, opts...)
	if err != nil {
		t.Fatalf("New(%d) failed: %v", priorities, err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func mustStart[P, R any](t *testing.T, p *ThreadPool[P, R], workers int) {
	t.Helper()
	if err := p.Start(workers); err != nil {
		t.Fatalf("Start(%d) failed: %v", workers, err)
	}
}

func mustEnqueue[P, R any](t *testing.T, p *ThreadPool[P, R], fn TaskFunc[P, R], param P, oneShot bool, priority int) TaskID {
	t.Helper()
	id, err := p.Enqueue(fn, param, oneShot, priority)
	if err != nil {
		t.Fatalf("Enqueue(priority=%d) failed: %v", priority, err)
	}
	return id
}

func waitIdle[P, R any](t *testing.T, p *ThreadPool[P, R]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

func double(_ context.Context, n int) (*int, error) {
	v := n * 2
	return &v, nil
}

func nothing(context.Context, int) (*int, error) {
	return nil, nil
}

var errBoom = errors.New("boom")

func failing(context.Context, int) (*int, error) {
	return nil, errBoom
}

// recorder collects task parameters in execution order.
type recorder struct {
	mu    sync.Mutex
	order []int
}

func (r *recorder) task(_ context.Context, n int) (*int, error) {
	r.mu.Lock()
	r.order = append(r.order, n)
	r.mu.Unlock()
	return nil, nil
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.order...)
}

// fakeMetrics counts every Metrics call.
type fakeMetrics struct {
	mu        sync.Mutex
	durations map[int]int
	panics    map[int]int
	rejected  map[string]int
	workers   []int
	depth     int
	results   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		durations: map[int]int{},
		panics:    map[int]int{},
		rejected:  map[string]int{},
	}
}

func (m *fakeMetrics) RecordTaskDuration(priority int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[priority]++
}

func (m *fakeMetrics) RecordTaskPanic(priority int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics[priority]++
}

func (m *fakeMetrics) RecordTaskRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *fakeMetrics) RecordQueueDepth(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depth = n
}

func (m *fakeMetrics) RecordResultsPending(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = n
}

func (m *fakeMetrics) RecordWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers = append(m.workers, n)
}
