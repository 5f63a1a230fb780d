// internal/monitor/ring.go
package monitor

// ring is a fixed-capacity FIFO that overwrites its oldest element when full
type ring[T any] struct {
	buf   []T
	start int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

// push appends v, evicting the oldest element when at capacity
func (r *ring[T]) push(v T) {
	if len(r.buf) == 0 {
		return
	}
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring[T]) len() int { return r.size }

func (r *ring[T]) cap() int { return len(r.buf) }

// at returns the i-th element counting from the oldest
func (r *ring[T]) at(i int) T {
	return r.buf[(r.start+i)%len(r.buf)]
}

// slice copies the contents oldest first
func (r *ring[T]) slice() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.at(i)
	}
	return out
}

func (r *ring[T]) clear() {
	r.start = 0
	r.size = 0
}
