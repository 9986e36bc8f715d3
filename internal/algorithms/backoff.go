// Package algorithms holds the delay schedules used when a pool goroutine has
// nothing to do: polling-mode workers that found every lane empty, and Await
// callers checking whether the pool is still running.
package algorithms

import (
	"math/rand/v2"
	"time"
)

// shift bound for 2^n growth; anything above saturates at max
const maxShift = 62

// BackoffType selects the delay schedule.
type BackoffType int

const (
	// BackoffExponential doubles the delay on every idle round (default).
	BackoffExponential BackoffType = iota
	// BackoffJittered is exponential growth scaled by a random factor in
	// [1-jitter, 1+jitter], so idle workers do not wake in lockstep.
	BackoffJittered
	// BackoffDecorrelated picks each delay in [initial, 3*previous].
	BackoffDecorrelated
	// BackoffConstant always waits the initial delay.
	BackoffConstant
)

func (t BackoffType) String() string {
	switch t {
	case BackoffExponential:
		return "exponential"
	case BackoffJittered:
		return "jittered"
	case BackoffDecorrelated:
		return "decorrelated"
	case BackoffConstant:
		return "constant"
	default:
		return "unknown"
	}
}

// ParseBackoffType maps a name produced by String back to its type.
func ParseBackoffType(name string) (BackoffType, bool) {
	for _, t := range []BackoffType{BackoffExponential, BackoffJittered, BackoffDecorrelated, BackoffConstant} {
		if t.String() == name {
			return t, true
		}
	}
	return BackoffExponential, false
}

// DefaultJitter is the jitter factor used by BackoffJittered.
const DefaultJitter = 0.2

// Backoff produces successive idle delays. Each Next call advances the
// schedule; Reset returns it to the first delay once work is found again.
// A Backoff belongs to a single goroutine and is not safe for concurrent use.
type Backoff struct {
	kind    BackoffType
	initial time.Duration
	max     time.Duration
	jitter  float64

	attempt int
	prev    time.Duration
}

// NewBackoff builds a schedule of the given kind. A non-positive initial
// delay becomes 1ms and maxDelay is raised to at least initial.
func NewBackoff(kind BackoffType, initial, maxDelay time.Duration) *Backoff {
	if initial <= 0 {
		initial = time.Millisecond
	}
	if maxDelay < initial {
		maxDelay = initial
	}

	return &Backoff{
		kind:    kind,
		initial: initial,
		max:     maxDelay,
		jitter:  DefaultJitter,
		prev:    initial,
	}
}

// Next returns the delay to sleep before the next idle check.
func (b *Backoff) Next() time.Duration {
	var d time.Duration

	switch b.kind {
	case BackoffConstant:
		d = b.initial

	case BackoffJittered:
		base := exponential(b.attempt, b.initial, b.max)
		scale := 1 + (rand.Float64()*2-1)*b.jitter // #nosec G404 -- jitter only
		d = min(time.Duration(float64(base)*scale), b.max)

	case BackoffDecorrelated:
		if b.attempt == 0 {
			d = b.initial
			break
		}
		upper := min(b.prev*3, b.max)
		if span := upper - b.initial; span > 0 {
			d = b.initial + time.Duration(rand.Int64N(int64(span))) // #nosec G404 -- jitter only
		} else {
			d = b.initial
		}

	default:
		d = exponential(b.attempt, b.initial, b.max)
	}

	b.attempt++
	b.prev = d
	return d
}

// Attempt reports how many delays have been handed out since the last Reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Reset restarts the schedule at the initial delay.
func (b *Backoff) Reset() {
	b.attempt = 0
	b.prev = b.initial
}

// Sleep waits for the next delay or until done is closed, whichever is first.
// It reports false when done fired.
func (b *Backoff) Sleep(done <-chan struct{}) bool {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-done:
		return false
	case <-timer.C:
		return true
	}
}

func exponential(attempt int, initial, ceiling time.Duration) time.Duration {
	if attempt <= 0 {
		return initial
	}
	if attempt >= maxShift {
		return ceiling
	}

	d := initial << uint(attempt)
	if d <= 0 || d > ceiling || d>>uint(attempt) != initial {
		return ceiling
	}
	return d
}
