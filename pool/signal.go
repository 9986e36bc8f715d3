package pool

import "github.com/utkarsh5026/lanepool/internal/syncx"

// broadcast wakes every goroutine currently waiting on it. A waiter grabs
// the channel from wait before checking its condition, then blocks on it;
// notify closes that channel and installs a fresh one, so a notification
// that lands between the check and the block is never lost.
type broadcast struct {
	mu syncx.Mutex
	ch chan struct{}
}

func newBroadcast() *broadcast {
	return &broadcast{ch: make(chan struct{})}
}

func (b *broadcast) wait() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch
}

func (b *broadcast) notify() {
	b.mu.Lock()
	close(b.ch)
	b.ch = make(chan struct{})
	b.mu.Unlock()
}
