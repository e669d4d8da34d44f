package edge

// ring is a growable circular FIFO. It is not safe for concurrent use.
type ring[T any] struct {
	data []T
	head int
	tail int
	n    int
}

func newRing[T any](size int) *ring[T] {
	// if we have a useless buffer, make one that is at least useful
	if size < 4 {
		size = 4
	}
	return &ring[T]{data: make([]T, size)}
}

func (r *ring[T]) Len() int { return r.n }

// Push adds v at the tail, doubling the buffer when it is full.
func (r *ring[T]) Push(v T) {
	if r.n == len(r.data) {
		buf := make([]T, len(r.data)*2)
		if r.head < r.tail {
			copy(buf, r.data[r.head:r.tail])
		} else {
			partial := copy(buf, r.data[r.head:])
			copy(buf[partial:], r.data[:r.tail])
		}
		r.head = 0
		r.tail = r.n
		r.data = buf
	}
	r.data[r.tail] = v
	r.tail++
	if r.tail == len(r.data) {
		r.tail = 0
	}
	r.n++
}

// Pop removes and returns the head. ok is false when the ring is empty.
func (r *ring[T]) Pop() (v T, ok bool) {
	if r.n == 0 {
		return v, false
	}
	var fill T
	v = r.data[r.head]
	r.data[r.head] = fill
	r.head++
	if r.head == len(r.data) {
		r.head = 0
	}
	r.n--
	if r.n == 0 {
		r.head = 0
		r.tail = 0
	}
	return v, true
}
