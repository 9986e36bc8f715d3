package pool

import (
	"context"
	"math"

	"github.com/utkarsh5026/lanepool/internal/syncx"
)

// TaskID identifies an enqueued task. Ids are unique for the lifetime of a
// pool, increase monotonically and start at 1.
type TaskID uint64

// InvalidTaskID is returned alongside an error when Enqueue rejects a task.
// It is never handed out as a real id.
const InvalidTaskID TaskID = math.MaxUint64

// TaskFunc is the unit of work run by a pool worker. ctx is cancelled when
// the pool is stopped; long-running tasks should watch it. A nil value with
// a nil error produces no Result.
type TaskFunc[P, R any] func(ctx context.Context, param P) (*R, error)

// Result is what a task left behind for its caller.
type Result[R any] struct {
	ID       TaskID
	Priority int
	Value    *R
	Err      error
}

type task[P, R any] struct {
	id       TaskID
	fn       TaskFunc[P, R]
	param    P
	priority int
	oneShot  bool
}

type idGenerator struct {
	mu   syncx.Mutex
	last TaskID
}

func (g *idGenerator) next() TaskID {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.last++
	if g.last == InvalidTaskID {
		g.last = 0
	}
	return g.last
}
