package pool

import "github.com/utkarsh5026/lanepool/internal/syncx"

// resultStore keeps finished results in completion order until their
// caller pops them. Lookups are a linear scan by id; the store is expected
// to stay small because callers pop what they await.
type resultStore[R any] struct {
	mu       syncx.Mutex
	items    []Result[R]
	appended *broadcast
}

func newResultStore[R any]() *resultStore[R] {
	return &resultStore[R]{appended: newBroadcast()}
}

func (s *resultStore[R]) put(r Result[R]) int {
	s.mu.Lock()
	s.items = append(s.items, r)
	n := len(s.items)
	s.mu.Unlock()

	s.appended.notify()
	return n
}

func (s *resultStore[R]) has(id TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id) >= 0
}

// pop removes the oldest result for id.
func (s *resultStore[R]) pop(id TaskID) (Result[R], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Result[R]{}, false
	}

	r := s.items[i]
	copy(s.items[i:], s.items[i+1:])
	s.items[len(s.items)-1] = Result[R]{}
	s.items = s.items[:len(s.items)-1]
	return r, true
}

func (s *resultStore[R]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// drain empties the store and hands every result to release, outside the lock.
func (s *resultStore[R]) drain(release func(Result[R])) int {
	s.mu.Lock()
	items := s.items
	s.items = nil
	s.mu.Unlock()

	if release != nil {
		for _, r := range items {
			release(r)
		}
	}
	return len(items)
}

func (s *resultStore[R]) indexOf(id TaskID) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
