package pool

import (
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/lanepool/internal/algorithms"
	"github.com/utkarsh5026/lanepool/internal/cpu"
)

// runWorker is the loop of one worker: take the highest-priority task, run
// it, store its result, re-queue it if it loops, and announce completion.
// Cancellation of the generation is checked before every dequeue; a task
// already running is never interrupted except through its ctx.
func (p *ThreadPool[P, R]) runWorker(gen *generation, workerID int) error {
	if p.cfg.lockOSThread {
		release, err := cpu.Bind(workerID, p.cfg.pinCPU)
		defer release()
		if err != nil {
			p.log.Warn("cpu pinning failed", zap.Int("worker", workerID), zap.Error(err))
		}
	}

	p.log.Debug("worker started", zap.Int("worker", workerID))
	defer p.log.Debug("worker exited", zap.Int("worker", workerID))

	var idle *algorithms.Backoff
	if p.cfg.polling {
		idle = algorithms.NewBackoff(p.cfg.idleBackoff, p.cfg.idleInitial, p.cfg.idleMax)
	}

	for {
		if gen.ctx.Err() != nil {
			return nil
		}

		t, ok := p.next(gen, idle)
		if !ok {
			return nil
		}

		if p.cfg.rateLimiter != nil {
			if err := p.cfg.rateLimiter.Wait(gen.ctx); err != nil {
				// stopping; hand the task back untouched for the next run
				p.handBack(t)
				return nil
			}
		}

		p.execute(gen, workerID, t)
	}
}

// next blocks on the queue's wake-up signal, or polls with the idle backoff
// when polling mode is configured. It returns false once gen is cancelled.
func (p *ThreadPool[P, R]) next(gen *generation, idle *algorithms.Backoff) (*task[P, R], bool) {
	if idle == nil {
		t, err := p.queue.DequeueWait(gen.ctx)
		return t, err == nil
	}

	for {
		if t, ok := p.queue.Dequeue(); ok {
			idle.Reset()
			return t, true
		}
		if !idle.Sleep(gen.ctx.Done()) {
			return nil, false
		}
	}
}

func (p *ThreadPool[P, R]) execute(gen *generation, workerID int, t *task[P, R]) {
	start := time.Now()
	value, panicked, err := runWithRecovery(gen.ctx, t)
	p.metrics.RecordTaskDuration(t.priority, time.Since(start))

	if panicked {
		p.metrics.RecordTaskPanic(t.priority)
		p.log.Error("task panicked",
			zap.Uint64("task_id", uint64(t.id)),
			zap.Int("priority", t.priority),
			zap.Int("worker", workerID),
			zap.Error(err),
		)
	}

	res := Result[R]{ID: t.id, Priority: t.priority, Value: value, Err: err}
	requeued := p.settle(t, res, value != nil || err != nil)

	if !requeued {
		p.outstanding.Add(-1)
	}

	p.metrics.RecordQueueDepth(p.queue.Len())
	p.completed.notify()
}

// settle re-queues a looping task and stores its result. Once Close has
// begun both go to the close hooks instead.
func (p *ThreadPool[P, R]) settle(t *task[P, R], res Result[R], store bool) (requeued bool) {
	p.closeMu.Lock()
	hooks := p.closing
	if hooks == nil {
		// looping tasks go back even while stopping so the next Start resumes them
		requeued = !t.oneShot && p.queue.Enqueue(t, t.priority) == nil
		if store {
			p.metrics.RecordResultsPending(p.results.put(res))
		}
	}
	p.closeMu.Unlock()

	if hooks != nil {
		if !t.oneShot {
			hooks.releaseParam(t.param)
		}
		if store {
			hooks.releaseResult(res)
		}
	}
	return requeued
}

// handBack returns a dequeued task that never ran to its lane, or to the
// close hooks once Close has begun.
func (p *ThreadPool[P, R]) handBack(t *task[P, R]) {
	p.closeMu.Lock()
	hooks := p.closing
	if hooks == nil {
		_ = p.queue.Enqueue(t, t.priority)
	}
	p.closeMu.Unlock()

	if hooks != nil {
		hooks.releaseParam(t.param)
		p.outstanding.Add(-1)
		p.completed.notify()
	}
}
