package http

import (
	"errors"
	"math/bits"
)

var (
	errRingFull  = errors.New("ring buffer is full")
	errRingEmpty = errors.New("ring buffer is empty")
)

// ring is a FIFO queue backed by a power-of-two buffer that doubles when
// full. It is not safe for concurrent use; every instance belongs to the
// dispatcher goroutine.
type ring[T any] struct {
	buffer []T
	mask   uint64
	enqPos uint64
	deqPos uint64
	limit  int // maximum length, 0 for unbounded
}

func newRing[T any](size, limit int) ring[T] {
	size = roundPow2(max(size, 1))
	return ring[T]{
		buffer: make([]T, size),
		mask:   uint64(size - 1),
		limit:  limit,
	}
}

func (q *ring[T]) Len() int {
	return int(q.enqPos - q.deqPos)
}

// Enqueue adds an item to the back of the queue
func (q *ring[T]) Enqueue(val T) error {
	if q.limit > 0 && q.Len() >= q.limit {
		return errRingFull
	}
	if q.Len() == len(q.buffer) {
		q.grow()
	}

	q.buffer[q.enqPos&q.mask] = val
	q.enqPos++
	return nil
}

// Dequeue removes and returns the oldest item
func (q *ring[T]) Dequeue() (T, error) {
	var zero T
	if q.Len() == 0 {
		return zero, errRingEmpty
	}

	slot := &q.buffer[q.deqPos&q.mask]
	val := *slot
	*slot = zero
	q.deqPos++
	return val, nil
}

func (q *ring[T]) grow() {
	n := q.Len()
	buffer := make([]T, len(q.buffer)*2)
	for i := range n {
		buffer[i] = q.buffer[(q.deqPos+uint64(i))&q.mask]
	}

	q.buffer = buffer
	q.mask = uint64(len(buffer) - 1)
	q.deqPos = 0
	q.enqPos = uint64(n)
}

func roundPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
