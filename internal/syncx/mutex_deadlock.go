//go:build deadlock

package syncx

import (
	"log"
	"runtime"
	"time"

	"github.com/sasha-s/go-deadlock"
)

func init() {
	deadlock.Opts.DeadlockTimeout = 2 * time.Second
	deadlock.Opts.OnPotentialDeadlock = func() {
		buf := make([]byte, 1<<16)
		n := runtime.Stack(buf, true)
		log.Printf("lanepool: potential deadlock detected\n%s", buf[:n])
	}
}

// Mutex is the lock guarding a single lane, the result store or the pool state.
type Mutex = deadlock.Mutex

// DeadlockDetection reports whether lock tracking is compiled in.
const DeadlockDetection = true
