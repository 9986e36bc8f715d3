package lanes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func mustNew[T any](t *testing.T, n int) *Queue[T] {
	t.Helper()
	q, err := New[T](n)
	if err != nil {
		t.Fatalf("New(%d) failed: %v", n, err)
	}
	return q
}

func TestNew(t *testing.T) {
	t.Run("zero lanes is rejected", func(t *testing.T) {
		q, err := New[int](0)
		if !errors.Is(err, ErrNoLanes) {
			t.Errorf("expected ErrNoLanes, got %v", err)
		}
		if q != nil {
			t.Error("expected nil queue on error")
		}
	})

	t.Run("negative lanes is rejected", func(t *testing.T) {
		if _, err := New[int](-3); !errors.Is(err, ErrNoLanes) {
			t.Errorf("expected ErrNoLanes, got %v", err)
		}
	})

	t.Run("lanes are fixed at construction", func(t *testing.T) {
		q := mustNew[int](t, 8)
		if q.Priorities() != 8 {
			t.Errorf("expected 8 priorities, got %d", q.Priorities())
		}
		if !q.IsEmpty() {
			t.Error("new queue should be empty")
		}
	})
}

func TestQueue_Enqueue(t *testing.T) {
	q := mustNew[int](t, 4)

	tests := []struct {
		name     string
		priority int
		wantErr  bool
	}{
		{"lowest lane", 0, false},
		{"highest lane", 3, false},
		{"equal to count", 4, true},
		{"far above count", 100, true},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := q.Enqueue(1, tt.priority)
			if tt.wantErr && !errors.Is(err, ErrInvalidPriority) {
				t.Errorf("expected ErrInvalidPriority, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	if q.Count() != 2 {
		t.Errorf("expected 2 queued items, got %d", q.Count())
	}
}

func TestQueue_Dequeue(t *testing.T) {
	t.Run("empty queue", func(t *testing.T) {
		q := mustNew[string](t, 3)
		v, ok := q.Dequeue()
		if ok {
			t.Errorf("expected no item, got %q", v)
		}
	})

	t.Run("returns the enqueued item", func(t *testing.T) {
		q := mustNew[string](t, 3)
		_ = q.Enqueue("a", 1)
		v, ok := q.Dequeue()
		if !ok || v != "a" {
			t.Errorf("expected (a, true), got (%q, %v)", v, ok)
		}
	})

	t.Run("fifo within a lane", func(t *testing.T) {
		q := mustNew[int](t, 2)
		for i := range 100 {
			_ = q.Enqueue(i, 0)
		}
		for i := range 100 {
			v, ok := q.Dequeue()
			if !ok || v != i {
				t.Fatalf("position %d: expected %d, got %d (ok=%v)", i, i, v, ok)
			}
		}
	})

	t.Run("strictly descending priority", func(t *testing.T) {
		q := mustNew[int](t, 16)

		input := []struct{ value, priority int }{
			{0, 0}, {1, 0}, {2, 2}, {3, 6}, {5, 5}, {42, 7}, {69, 9}, {420, 10},
		}
		for _, in := range input {
			if err := q.Enqueue(in.value, in.priority); err != nil {
				t.Fatalf("enqueue %d: %v", in.value, err)
			}
		}

		want := []int{420, 69, 42, 3, 5, 2, 0, 1}
		for i, w := range want {
			got, ok := q.Dequeue()
			if !ok || got != w {
				t.Errorf("dequeue %d: expected %d, got %d (ok=%v)", i, w, got, ok)
			}
		}

		if q.Count() != 0 {
			t.Errorf("expected empty queue, got count %d", q.Count())
		}
	})

	t.Run("higher lane added later still wins", func(t *testing.T) {
		q := mustNew[int](t, 3)
		_ = q.Enqueue(1, 0)
		_ = q.Enqueue(2, 0)
		first, _ := q.Dequeue()
		_ = q.Enqueue(3, 2)
		second, _ := q.Dequeue()

		if first != 1 || second != 3 {
			t.Errorf("expected 1 then 3, got %d then %d", first, second)
		}
	})
}

func TestQueue_DequeueWait(t *testing.T) {
	t.Run("returns immediately when items exist", func(t *testing.T) {
		q := mustNew[int](t, 2)
		_ = q.Enqueue(7, 1)

		v, err := q.DequeueWait(context.Background())
		if err != nil || v != 7 {
			t.Errorf("expected (7, nil), got (%d, %v)", v, err)
		}
	})

	t.Run("wakes on enqueue", func(t *testing.T) {
		q := mustNew[int](t, 2)
		got := make(chan int, 1)

		go func() {
			v, err := q.DequeueWait(context.Background())
			if err == nil {
				got <- v
			}
		}()

		time.Sleep(20 * time.Millisecond)
		_ = q.Enqueue(11, 0)

		select {
		case v := <-got:
			if v != 11 {
				t.Errorf("expected 11, got %d", v)
			}
		case <-time.After(time.Second):
			t.Fatal("DequeueWait did not wake up")
		}
	})

	t.Run("honours context cancellation", func(t *testing.T) {
		q := mustNew[int](t, 2)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		_, err := q.DequeueWait(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", err)
		}
	})

	t.Run("many sleepers drain a burst", func(t *testing.T) {
		q := mustNew[int](t, 4)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		const consumers, items = 8, 400
		var received atomic.Int64
		var wg sync.WaitGroup

		for range consumers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					if _, err := q.DequeueWait(ctx); err != nil {
						return
					}
					received.Add(1)
				}
			}()
		}

		for i := range items {
			_ = q.Enqueue(i, i%4)
		}

		deadline := time.Now().Add(2 * time.Second)
		for received.Load() < items && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
		wg.Wait()

		if received.Load() != items {
			t.Errorf("expected %d items received, got %d", items, received.Load())
		}
	})
}

func TestQueue_Feed(t *testing.T) {
	t.Run("promotes by amount", func(t *testing.T) {
		q := mustNew[int](t, 4)
		_ = q.Enqueue(10, 0)
		_ = q.Enqueue(11, 1)

		moved := q.Feed(1)
		if moved != 2 {
			t.Errorf("expected 2 moved, got %d", moved)
		}
		if q.LaneLen(1) != 1 || q.LaneLen(2) != 1 || q.LaneLen(0) != 0 {
			t.Errorf("unexpected lane sizes: %d %d %d %d", q.LaneLen(0), q.LaneLen(1), q.LaneLen(2), q.LaneLen(3))
		}
	})

	t.Run("clamps to the top lane", func(t *testing.T) {
		q := mustNew[int](t, 3)
		_ = q.Enqueue(1, 0)
		_ = q.Enqueue(2, 1)
		_ = q.Enqueue(3, 2)

		q.Feed(5)
		if q.LaneLen(2) != 3 {
			t.Errorf("expected all items in top lane, got %d", q.LaneLen(2))
		}

		// the original top item keeps its place at the front
		v, _ := q.Dequeue()
		if v != 3 {
			t.Errorf("expected 3 first, got %d", v)
		}
	})

	t.Run("each item moves once per call", func(t *testing.T) {
		q := mustNew[int](t, 5)
		_ = q.Enqueue(1, 0)
		q.Feed(1)
		if q.LaneLen(1) != 1 {
			t.Errorf("expected item in lane 1, lanes: %d %d %d", q.LaneLen(0), q.LaneLen(1), q.LaneLen(2))
		}
	})

	t.Run("non-positive amount is a no-op", func(t *testing.T) {
		q := mustNew[int](t, 3)
		_ = q.Enqueue(1, 0)
		if q.Feed(0) != 0 || q.Feed(-2) != 0 {
			t.Error("expected no items moved")
		}
		if q.LaneLen(0) != 1 {
			t.Error("item should stay in lane 0")
		}
	})

	t.Run("single lane", func(t *testing.T) {
		q := mustNew[int](t, 1)
		_ = q.Enqueue(1, 0)
		if q.Feed(1) != 0 {
			t.Error("expected nothing to move with one lane")
		}
	})
}

func TestQueue_Drain(t *testing.T) {
	q := mustNew[int](t, 3)
	for i := range 9 {
		_ = q.Enqueue(i, i%3)
	}

	var released []int
	n := q.Drain(func(v int) { released = append(released, v) })

	if n != 9 || len(released) != 9 {
		t.Errorf("expected 9 released, got n=%d len=%d", n, len(released))
	}
	if !q.IsEmpty() {
		t.Error("queue should be empty after drain")
	}

	if q.Drain(nil) != 0 {
		t.Error("second drain should remove nothing")
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := mustNew[int](t, 8)

	const producers, perProducer = 8, 500
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := range perProducer {
				_ = q.Enqueue(p*perProducer+i, (p+i)%8)
			}
		}(p)
	}

	var countWg sync.WaitGroup
	countWg.Add(1)
	go func() {
		defer countWg.Done()
		for range 100 {
			_ = q.Count()
			_ = q.IsEmpty()
		}
	}()

	wg.Wait()
	countWg.Wait()

	if q.Count() != producers*perProducer {
		t.Fatalf("expected %d items, got %d", producers*perProducer, q.Count())
	}

	seen := make(map[int]bool, producers*perProducer)
	lastPriority := 8
	for {
		before := q.highestNonEmpty()
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		if before > lastPriority {
			t.Fatalf("priority went up from %d to %d", lastPriority, before)
		}
		lastPriority = before
		if seen[v] {
			t.Fatalf("item %d dequeued twice", v)
		}
		seen[v] = true
	}

	if len(seen) != producers*perProducer {
		t.Errorf("expected %d distinct items, got %d", producers*perProducer, len(seen))
	}
}

// highestNonEmpty is a test helper returning the top non-empty lane or -1.
func (q *Queue[T]) highestNonEmpty() int {
	for p := len(q.lanes) - 1; p >= 0; p-- {
		if q.LaneLen(p) > 0 {
			return p
		}
	}
	return -1
}

func TestQueue_DequeueWaitCancelledFirst(t *testing.T) {
	q := mustNew[int](t, 1)
	_ = q.Enqueue(1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.DequeueWait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected Canceled, got %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("item should stay queued, Len=%d", q.Len())
	}
}
