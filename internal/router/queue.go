package router

import "github.com/rickgao/mediaroute/internal/model"

// routeQueue is a FIFO ring buffer of messages for a single route. It
// doubles its capacity when it reaches 70% full and keeps running totals
// so removing a whole queue never needs a rescan.
//
// routeQueue is not safe for concurrent use; the Sender's lock guards it.
type routeQueue struct {
	buf      []model.RouteMessage
	head     int // read position
	tail     int // write position
	count    int
	capacity int

	// Totals for the messages currently held
	charLen     int
	binaryCount int

	resizeCount int
}

func newRouteQueue(initialCapacity int) *routeQueue {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &routeQueue{
		buf:      make([]model.RouteMessage, initialCapacity),
		capacity: initialCapacity,
	}
}

// push appends a message, growing first if the queue would reach 70% capacity.
func (q *routeQueue) push(msg model.RouteMessage) {
	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = msg
	q.tail = (q.tail + 1) % q.capacity
	q.count++

	if msg.IsBinary() {
		q.binaryCount++
	} else {
		q.charLen += msg.CharLen()
	}
}

// drain removes and returns every message in delivery order.
func (q *routeQueue) drain() []model.RouteMessage {
	if q.count == 0 {
		return nil
	}

	result := make([]model.RouteMessage, q.count)
	var zero model.RouteMessage
	for i := range result {
		result[i] = q.buf[q.head]
		q.buf[q.head] = zero // Clear reference for GC
		q.head = (q.head + 1) % q.capacity
	}
	q.count = 0
	q.head = 0
	q.tail = 0
	q.charLen = 0
	q.binaryCount = 0

	return result
}

// items returns a copy of the queued messages without removing them.
func (q *routeQueue) items() []model.RouteMessage {
	result := make([]model.RouteMessage, q.count)
	idx := q.head
	for i := range result {
		result[i] = q.buf[idx]
		idx = (idx + 1) % q.capacity
	}
	return result
}

func (q *routeQueue) len() int {
	return q.count
}

// grow doubles the capacity, unwrapping the ring into the new slice.
func (q *routeQueue) grow() {
	newCapacity := q.capacity * 2
	newBuf := make([]model.RouteMessage, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			// Contiguous: [head...tail)
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizeCount++
}
