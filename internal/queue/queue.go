// Package queue implements the bounded, thread-safe submission queue
// that decouples producers from the committer. It is a
// multi-producer/single-consumer FIFO: any number of goroutines may
// Put concurrently, but DrainNonBlocking is meant to be called from a
// single committer goroutine.
package queue

import "github.com/duralog/duralog/internal/record"

// DefaultCapacity is the queue capacity used when none is configured.
const DefaultCapacity = 100000

// Queue is a bounded FIFO of un-encoded record values. A buffered Go
// channel is the natural fit for a bounded producer/consumer queue:
// Put blocks when the buffer is full (the channel send blocks), and
// DrainNonBlocking pulls everything currently available in one
// non-blocking sweep.
type Queue struct {
	ch chan record.Value
}

// New creates a Queue with the given capacity. A non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan record.Value, capacity)}
}

// Put enqueues v, blocking only when the queue is at capacity.
func (q *Queue) Put(v record.Value) {
	q.ch <- v
}

// DrainNonBlocking removes and returns every value currently buffered,
// without blocking. It returns nil (not an error) when the queue is
// empty -- the "empty" sentinel the committer's commit cycle checks
// for before deciding there is nothing to encode.
func (q *Queue) DrainNonBlocking() []record.Value {
	var out []record.Value
	for {
		select {
		case v := <-q.ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
