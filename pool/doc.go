// Package pool provides a generic, priority-scheduled thread pool.
//
// A ThreadPool[P, R] owns a fixed number of priority lanes chosen at
// construction. Enqueue places a task in a lane and returns a TaskID; each
// worker repeatedly takes the oldest task of the highest non-empty lane, so
// lower lanes run only when every higher lane is empty. What a task returns
// is stored as a Result until the caller pops it by id.
//
// # Basic Usage
//
//	p, err := pool.New[string, int](4)
//	if err != nil {
//	    return err
//	}
//	if err := p.Start(0); err != nil { // GOMAXPROCS workers
//	    return err
//	}
//	defer p.Close()
//
//	id, _ := p.Enqueue(func(ctx context.Context, s string) (*int, error) {
//	    n := len(s)
//	    return &n, nil
//	}, "hello", true, 3)
//
//	res, ok := p.AwaitResult(id)
//
// # Looping Tasks
//
// A task enqueued with oneShot set to false is put back in its lane, under
// the same id, every time it finishes. Looping tasks survive Stop and resume
// on the next Start; Close discards them.
//
// # Starvation
//
// Strict priority can starve low lanes. Feed moves every queued task up by
// a number of lanes; WithStarvationFeed does so periodically.
//
// # Shutdown
//
// Stop is cooperative. It cancels the ctx passed to running tasks and waits
// up to a timeout for workers to return. Workers that do not return in time
// are abandoned and reported through ErrShutdownTimeout; they are never
// killed and exit after their current task.
//
// # Configuration Options
//
//   - WithWorkerCount(n): workers used by Start(0) (default: GOMAXPROCS)
//   - WithName(name): label for logs and metrics
//   - WithLogger(l): zap logger (default: no-op)
//   - WithMetrics(m): telemetry sink (default: NilMetrics)
//   - WithRateLimit(tasksPerSecond, burst): throttle task starts
//   - WithPollingIdle(kind, initial, max): poll the queue with backoff when idle
//   - WithAwaitInterval(initial, max): Await's check interval
//   - WithStopTimeout(d): timeout used by Close (default: 5s)
//   - WithStarvationFeed(interval, amount): periodic Feed
//   - WithOSThreads(), WithCPUPinning(): OS thread locking and core affinity
package pool
