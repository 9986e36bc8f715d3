//go:build !deadlock

// Package syncx selects the mutex implementation used by the lanes and the
// pool. Normal builds use the standard library types; building with
// -tags deadlock swaps in github.com/sasha-s/go-deadlock so lock-order
// violations and stuck locks are reported at runtime.
package syncx

import "sync"

// Mutex is the lock guarding a single lane, the result store or the pool state.
type Mutex = sync.Mutex

// DeadlockDetection reports whether lock tracking is compiled in.
const DeadlockDetection = false
