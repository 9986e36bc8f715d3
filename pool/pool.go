package pool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/lanepool/internal/algorithms"
	"github.com/utkarsh5026/lanepool/internal/lanes"
	"github.com/utkarsh5026/lanepool/internal/syncx"
)

// ThreadPool runs tasks on a fixed set of workers, always picking the
// oldest task of the highest non-empty priority lane. Results are kept
// until popped by id.
//
// Type parameters:
//   - P: The task parameter type
//   - R: The result type; tasks return *R
type ThreadPool[P, R any] struct {
	cfg     *poolConfig
	log     *zap.Logger
	metrics Metrics

	queue   *lanes.Queue[*task[P, R]]
	results *resultStore[R]
	ids     idGenerator

	// completed fires after every task execution.
	completed *broadcast

	running atomic.Bool

	// outstanding counts tasks queued or executing. A looping task stays
	// counted across its re-enqueue.
	outstanding atomic.Int64

	// mu serialises Start and Stop and guards gen and stopping. It is not
	// held while Stop joins the workers.
	mu       syncx.Mutex
	gen      *generation
	stopping bool

	// closeMu guards closing. Once set, tasks finishing on abandoned workers
	// go to its hooks instead of back into the queue or the result store.
	closeMu syncx.Mutex
	closing *closeHooks[P, R]
}

type closeHooks[P, R any] struct {
	param  func(P)
	result func(Result[R])
}

func (h *closeHooks[P, R]) releaseParam(v P) {
	if h.param != nil {
		h.param(v)
	}
}

func (h *closeHooks[P, R]) releaseResult(r Result[R]) {
	if h.result != nil {
		h.result(r)
	}
}

// generation is one Start..Stop run of the workers.
type generation struct {
	ctx     context.Context
	cancel  context.CancelFunc
	group   errgroup.Group
	done    chan struct{}
	workers int
	active  atomic.Int64
}

// New creates a stopped pool with priorityCount lanes. Tasks may be enqueued
// before Start; they run once workers exist.
func New[P, R any](priorityCount int, opts ...Option) (*ThreadPool[P, R], error) {
	q, err := lanes.New[*task[P, R]](priorityCount)
	if err != nil {
		return nil, err
	}

	cfg := createConfig(opts...)
	return &ThreadPool[P, R]{
		cfg:       cfg,
		log:       cfg.logger.With(zap.String("pool", cfg.name)),
		metrics:   cfg.metrics,
		queue:     q,
		results:   newResultStore[R](),
		completed: newBroadcast(),
	}, nil
}

// Start launches threadCount workers, or the configured worker count when
// threadCount <= 0. It fails with ErrAlreadyRunning if workers are already
// running, leaving them untouched, and with ErrStopping while a Stop is
// still joining the previous workers. Starting a closed pool reopens it.
func (p *ThreadPool[P, R]) Start(threadCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gen != nil {
		return ErrAlreadyRunning
	}
	if p.stopping {
		return ErrStopping
	}

	p.closeMu.Lock()
	p.closing = nil
	p.closeMu.Unlock()

	n := threadCount
	if n <= 0 {
		n = p.cfg.workerCount
	}

	ctx, cancel := context.WithCancel(context.Background())
	gen := &generation{
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		workers: n,
	}

	p.running.Store(true)
	for i := range n {
		gen.active.Add(1)
		gen.group.Go(func() error {
			defer gen.active.Add(-1)
			return p.runWorker(gen, i)
		})
	}

	if p.cfg.feedInterval > 0 {
		gen.group.Go(func() error {
			return p.feedLoop(gen)
		})
	}

	go func() {
		if err := gen.group.Wait(); err != nil {
			p.log.Error("worker group exited with error", zap.Error(err))
		}
		close(gen.done)
	}()

	p.gen = gen
	p.metrics.RecordWorkers(n)
	p.log.Info("pool started",
		zap.Int("workers", n),
		zap.Int("priorities", p.queue.Priorities()),
		zap.Int("pending", p.queue.Len()),
	)
	return nil
}

// Stop asks every worker to exit and waits up to timeout for them to do
// so; a zero timeout waits forever. Workers finish the task in hand first.
// Workers still busy at the deadline are abandoned, never killed, and Stop
// returns ErrShutdownTimeout. Stopping a stopped pool, or one another Stop
// is already joining, returns nil. A task stopping its own pool must pass a
// non-zero timeout, since it counts as a busy worker.
//
// Queued tasks, including looping ones, stay queued for the next Start.
func (p *ThreadPool[P, R]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	gen := p.gen
	if gen == nil {
		p.mu.Unlock()
		return nil
	}
	p.gen = nil
	p.stopping = true
	p.running.Store(false)
	p.mu.Unlock()

	gen.cancel()
	p.results.appended.notify()
	p.completed.notify()
	p.metrics.RecordWorkers(0)

	err := waitUntil(gen.done, timeout)

	p.mu.Lock()
	p.stopping = false
	p.mu.Unlock()

	if err != nil {
		abandoned := gen.active.Load()
		p.log.Warn("stop deadline exceeded",
			zap.Duration("timeout", timeout),
			zap.Int64("abandoned", abandoned),
		)
		return fmt.Errorf("%w: %d worker(s) still running after %v", err, abandoned, timeout)
	}

	p.log.Info("pool stopped", zap.Int("workers", gen.workers), zap.Int("pending", p.queue.Len()))
	return nil
}

// Close stops the pool with the configured stop timeout and discards every
// queued task and unclaimed result.
func (p *ThreadPool[P, R]) Close() error {
	return p.CloseWith(nil, nil)
}

// CloseWith is Close with release hooks: releaseParam receives the parameter
// of every task still queued and releaseResult every result never popped.
// Either may be nil. Tasks still running on workers abandoned by the stop
// timeout release their looping param and result through the same hooks when
// they return, possibly after CloseWith itself has returned, so the hooks
// must be safe for concurrent use.
func (p *ThreadPool[P, R]) CloseWith(releaseParam func(P), releaseResult func(Result[R])) error {
	p.closeMu.Lock()
	p.closing = &closeHooks[P, R]{param: releaseParam, result: releaseResult}
	p.closeMu.Unlock()

	err := p.Stop(p.cfg.stopTimeout)

	dropped := p.queue.Drain(func(t *task[P, R]) {
		if releaseParam != nil {
			releaseParam(t.param)
		}
	})
	p.outstanding.Add(-int64(dropped))

	unclaimed := p.results.drain(releaseResult)
	p.completed.notify()

	p.metrics.RecordQueueDepth(0)
	p.metrics.RecordResultsPending(0)
	p.log.Debug("pool closed", zap.Int("dropped_tasks", dropped), zap.Int("dropped_results", unclaimed))
	return err
}

// Enqueue queues fn(param) at priority and returns its id. A looping task
// (oneShot false) is re-queued at the same priority, under the same id,
// after each run. On error the id is InvalidTaskID.
func (p *ThreadPool[P, R]) Enqueue(fn TaskFunc[P, R], param P, oneShot bool, priority int) (TaskID, error) {
	if fn == nil {
		p.metrics.RecordTaskRejected(RejectNilFunc)
		return InvalidTaskID, ErrNilFunc
	}

	if priority < 0 || priority >= p.queue.Priorities() {
		p.metrics.RecordTaskRejected(RejectInvalidPriority)
		return InvalidTaskID, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPriority, priority, p.queue.Priorities())
	}

	t := &task[P, R]{
		id:       p.ids.next(),
		fn:       fn,
		param:    param,
		priority: priority,
		oneShot:  oneShot,
	}

	p.outstanding.Add(1)
	if err := p.queue.Enqueue(t, priority); err != nil {
		p.outstanding.Add(-1)
		return InvalidTaskID, err
	}

	p.metrics.RecordQueueDepth(p.queue.Len())
	return t.id, nil
}

// HasResult reports whether a result for id is waiting to be popped.
func (p *ThreadPool[P, R]) HasResult(id TaskID) bool {
	return p.results.has(id)
}

// PopResult removes and returns the oldest stored result for id.
func (p *ThreadPool[P, R]) PopResult(id TaskID) (Result[R], bool) {
	r, ok := p.results.pop(id)
	if ok {
		p.metrics.RecordResultsPending(p.results.len())
	}
	return r, ok
}

// AwaitResult blocks until a result for id is stored and pops it. It
// returns false without waiting further once the pool is not running.
func (p *ThreadPool[P, R]) AwaitResult(id TaskID) (Result[R], bool) {
	r, err := p.AwaitResultContext(context.Background(), id)
	return r, err == nil
}

// AwaitResultContext is AwaitResult bounded by ctx. It returns
// ErrPoolStopped when the pool is not running and no result is stored, or
// ctx.Err() when ctx is done first.
func (p *ThreadPool[P, R]) AwaitResultContext(ctx context.Context, id TaskID) (Result[R], error) {
	for {
		wake := p.results.appended.wait()

		if r, ok := p.PopResult(id); ok {
			return r, nil
		}
		if !p.running.Load() {
			return Result[R]{}, ErrPoolStopped
		}

		select {
		case <-ctx.Done():
			return Result[R]{}, ctx.Err()
		case <-wake:
		}
	}
}

// Await blocks while the pool is running, checking on a growing interval.
// It returns nil once the pool is stopped, or ctx.Err().
func (p *ThreadPool[P, R]) Await(ctx context.Context) error {
	b := algorithms.NewBackoff(algorithms.BackoffExponential, p.cfg.awaitInitial, p.cfg.awaitMax)
	for p.running.Load() {
		if !b.Sleep(ctx.Done()) {
			return ctx.Err()
		}
	}
	return nil
}

// WaitIdle blocks until no task is queued or executing. It returns
// ErrPoolStopped if the pool stops with work outstanding, so it never
// returns nil while a looping task exists.
func (p *ThreadPool[P, R]) WaitIdle(ctx context.Context) error {
	for {
		wake := p.completed.wait()

		if p.outstanding.Load() == 0 {
			return nil
		}
		if !p.running.Load() {
			return ErrPoolStopped
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

// Feed promotes every queued task by amount lanes, capped at the highest
// priority, and returns how many moved. Use it to bound the wait of
// low-priority tasks under sustained high-priority load.
func (p *ThreadPool[P, R]) Feed(amount int) int {
	moved := p.queue.Feed(amount)
	if moved > 0 {
		p.log.Debug("starvation feed", zap.Int("amount", amount), zap.Int("moved", moved))
	}
	return moved
}

func (p *ThreadPool[P, R]) feedLoop(gen *generation) error {
	ticker := time.NewTicker(p.cfg.feedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gen.ctx.Done():
			return nil
		case <-ticker.C:
			p.Feed(p.cfg.feedAmount)
		}
	}
}

// IsRunning reports whether workers have been started and not stopped.
func (p *ThreadPool[P, R]) IsRunning() bool {
	return p.running.Load()
}

// Workers returns the number of workers of the current run, 0 when stopped.
func (p *ThreadPool[P, R]) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gen == nil {
		return 0
	}
	return p.gen.workers
}

// Pending returns the number of queued tasks.
func (p *ThreadPool[P, R]) Pending() int {
	return p.queue.Count()
}

// Results returns the number of stored, unpopped results.
func (p *ThreadPool[P, R]) Results() int {
	return p.results.len()
}

// Outstanding returns the number of tasks queued or executing.
func (p *ThreadPool[P, R]) Outstanding() int {
	return int(p.outstanding.Load())
}

// Priorities returns the lane count fixed at construction.
func (p *ThreadPool[P, R]) Priorities() int {
	return p.queue.Priorities()
}

// Name returns the pool label used in logs and metrics.
func (p *ThreadPool[P, R]) Name() string {
	return p.cfg.name
}

// IsShutdownTimeout reports whether err came from a Stop whose deadline
// passed with workers still running.
func IsShutdownTimeout(err error) bool {
	return errors.Is(err, ErrShutdownTimeout)
}
