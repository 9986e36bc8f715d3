// Package cpu binds pool workers to OS threads and, where the platform
// allows it, to individual CPU cores.
package cpu

import (
	"errors"
	"runtime"
)

// ErrPinningUnsupported is returned by Bind when core pinning was requested
// on a platform without thread affinity support. The thread lock still holds.
var ErrPinningUnsupported = errors.New("cpu: core pinning not supported on " + runtime.GOOS)

// NumCPU returns the number of logical CPUs usable by the process.
func NumCPU() int {
	return runtime.NumCPU()
}

// CoreFor maps a worker index onto a core index in [0, NumCPU).
func CoreFor(workerID int) int {
	n := NumCPU()
	core := workerID % n
	if core < 0 {
		core += n
	}
	return core
}

// Bind locks the calling goroutine to its OS thread and, when pin is true,
// restricts that thread to CoreFor(workerID). The returned release func
// unlocks the thread and must run on the same goroutine. A pinning error
// leaves the thread locked; callers may log it and carry on.
func Bind(workerID int, pin bool) (release func(), err error) {
	runtime.LockOSThread()
	release = runtime.UnlockOSThread

	if pin {
		err = pinToCore(CoreFor(workerID))
	}
	return release, err
}
