// Package lanes implements the priority queue that feeds the thread pool.
//
// A Queue holds a fixed number of lanes indexed by priority 0..N-1. Every
// lane is an independent FIFO guarded by its own mutex, so producers
// working on different priorities never contend. Dequeue scans from the
// highest priority down and returns the first item it finds, which means a
// lower lane is only served once every higher lane is empty.
package lanes

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/utkarsh5026/lanepool/internal/syncx"
)

var (
	// ErrNoLanes is returned by New when asked for fewer than one lane.
	ErrNoLanes = errors.New("lanes: priority count must be at least 1")

	// ErrInvalidPriority is returned by Enqueue for a priority outside [0, N).
	ErrInvalidPriority = errors.New("lanes: invalid priority")
)

const initialLaneCapacity = 64

type lane[T any] struct {
	mu    syncx.Mutex
	items ring[T]
}

// Queue is a multi-lane strict-priority FIFO. It is safe for concurrent use.
type Queue[T any] struct {
	lanes []lane[T]

	// size mirrors the total number of queued items. It is only used to
	// decide whether another sleeping consumer should be woken; Count is the
	// authoritative (locked) answer.
	size atomic.Int64

	// ready carries at most one wake-up token for DequeueWait callers.
	ready chan struct{}
}

// New creates a queue with priorityCount lanes.
func New[T any](priorityCount int) (*Queue[T], error) {
	if priorityCount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNoLanes, priorityCount)
	}

	q := &Queue[T]{
		lanes: make([]lane[T], priorityCount),
		ready: make(chan struct{}, 1),
	}
	for i := range q.lanes {
		q.lanes[i].items = newRing[T](initialLaneCapacity)
	}
	return q, nil
}

// Priorities returns the number of lanes fixed at construction.
func (q *Queue[T]) Priorities() int {
	return len(q.lanes)
}

// Enqueue appends v to the lane for priority. Only that lane is locked.
func (q *Queue[T]) Enqueue(v T, priority int) error {
	if priority < 0 || priority >= len(q.lanes) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPriority, priority, len(q.lanes))
	}

	l := &q.lanes[priority]
	l.mu.Lock()
	l.items.push(v)
	l.mu.Unlock()

	q.size.Add(1)
	q.signal()
	return nil
}

// Dequeue removes and returns the oldest item of the highest non-empty lane.
// It never blocks; the boolean is false when every lane was empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	for p := len(q.lanes) - 1; p >= 0; p-- {
		l := &q.lanes[p]
		l.mu.Lock()
		v, ok := l.items.pop()
		l.mu.Unlock()

		if ok {
			q.size.Add(-1)
			return v, true
		}
	}

	var zero T
	return zero, false
}

// DequeueWait behaves like Dequeue but blocks until an item is available or
// ctx is done, in which case ctx.Err() is returned.
func (q *Queue[T]) DequeueWait(ctx context.Context) (T, error) {
	for {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}

		if v, ok := q.Dequeue(); ok {
			// pass the token on so another sleeper picks up the remainder
			if q.size.Load() > 0 {
				q.signal()
			}
			return v, nil
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

// Ready returns the channel that receives a token whenever an item is
// enqueued. Consumers that poll with Dequeue may select on it to sleep.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Feed promotes every queued item from lane i to lane min(i+amount, N-1).
// Lanes are walked from the top down so each item moves at most once per
// call. The source and destination lanes are locked in index order. It
// returns the number of items moved.
func (q *Queue[T]) Feed(amount int) int {
	if amount <= 0 || len(q.lanes) < 2 {
		return 0
	}

	top := len(q.lanes) - 1
	moved := 0
	for src := top - 1; src >= 0; src-- {
		dst := min(src+amount, top)

		lo, hi := &q.lanes[src], &q.lanes[dst]
		lo.mu.Lock()
		hi.mu.Lock()
		moved += lo.items.moveTo(&hi.items)
		hi.mu.Unlock()
		lo.mu.Unlock()
	}
	return moved
}

// Count returns the total number of queued items. All lanes are locked in
// index order and released in the same order; concurrent producers and
// consumers may still change the total right after it is read.
func (q *Queue[T]) Count() int {
	for i := range q.lanes {
		q.lanes[i].mu.Lock()
	}

	total := 0
	for i := range q.lanes {
		total += q.lanes[i].items.len()
	}

	for i := range q.lanes {
		q.lanes[i].mu.Unlock()
	}
	return total
}

// IsEmpty reports whether every lane is empty, with the same locking and
// snapshot semantics as Count.
func (q *Queue[T]) IsEmpty() bool {
	for i := range q.lanes {
		q.lanes[i].mu.Lock()
	}

	empty := true
	for i := range q.lanes {
		if q.lanes[i].items.len() > 0 {
			empty = false
			break
		}
	}

	for i := range q.lanes {
		q.lanes[i].mu.Unlock()
	}
	return empty
}

// Len returns the lock-free running total of queued items. It may briefly
// disagree with Count while producers and consumers are mid-operation.
func (q *Queue[T]) Len() int {
	return int(q.size.Load())
}

// LaneLen returns the number of items queued at priority, or 0 for an
// out-of-range priority.
func (q *Queue[T]) LaneLen(priority int) int {
	if priority < 0 || priority >= len(q.lanes) {
		return 0
	}

	l := &q.lanes[priority]
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.len()
}

// Drain empties every lane, passing each removed item to release when it is
// non-nil. release runs after the lane lock is dropped, so it may enqueue.
// It returns the number of items removed.
func (q *Queue[T]) Drain(release func(T)) int {
	var removed []T
	for p := range q.lanes {
		l := &q.lanes[p]
		l.mu.Lock()
		for {
			v, ok := l.items.pop()
			if !ok {
				break
			}
			removed = append(removed, v)
		}
		l.mu.Unlock()
	}

	q.size.Add(-int64(len(removed)))
	if release != nil {
		for _, v := range removed {
			release(v)
		}
	}
	return len(removed)
}
