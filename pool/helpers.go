package pool

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// waitUntil blocks until either the done channel is closed or the timeout is reached.
// A non-positive timeout waits forever.
func waitUntil(d <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		<-d
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-d:
		return nil
	case <-timer.C:
		return ErrShutdownTimeout
	}
}

// runWithRecovery calls the task function, converting a panic into an error
// that wraps ErrTaskPanic and carries the stack trace.
func runWithRecovery[P, R any](ctx context.Context, t *task[P, R]) (value *R, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			value, panicked = nil, true
			err = fmt.Errorf("%w: %v\nstack trace:\n%s", ErrTaskPanic, r, buf[:n])
		}
	}()

	value, err = t.fn(ctx, t.param)
	return value, false, err
}
