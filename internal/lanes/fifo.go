package lanes

const minRingCapacity = 16

// ring is an unbounded FIFO backed by a power-of-two circular buffer.
// It is not safe for concurrent use; every lane guards its ring with the
// lane mutex.
type ring[T any] struct {
	buf  []T
	head int
	size int
	mask int
}

func newRing[T any](capacity int) ring[T] {
	capacity = nextPowerOfTwo(max(capacity, minRingCapacity))
	return ring[T]{
		buf:  make([]T, capacity),
		mask: capacity - 1,
	}
}

// nextPowerOfTwo returns the next power of 2 >= n
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	if n&(n-1) == 0 {
		return n
	}

	power := 1
	for power < n {
		power *= 2
	}
	return power
}

func (r *ring[T]) len() int { return r.size }

func (r *ring[T]) push(v T) {
	if r.size == len(r.buf) {
		r.grow()
	}
	r.buf[(r.head+r.size)&r.mask] = v
	r.size++
}

func (r *ring[T]) pop() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}

	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) & r.mask
	r.size--
	return v, true
}

// grow doubles the buffer, unwrapping the live window to start at index 0.
func (r *ring[T]) grow() {
	newCap := len(r.buf) << 1
	buf := make([]T, newCap)

	for i := range r.size {
		buf[i] = r.buf[(r.head+i)&r.mask]
	}

	r.buf = buf
	r.head = 0
	r.mask = newCap - 1
}

// moveTo appends every element of r to dst in FIFO order and empties r.
func (r *ring[T]) moveTo(dst *ring[T]) int {
	n := r.size
	for {
		v, ok := r.pop()
		if !ok {
			break
		}
		dst.push(v)
	}
	return n
}
