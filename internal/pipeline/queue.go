package pipeline

import (
	"sync"

	"github.com/roach88/arcplan/internal/config"
)

// job is one queued run.
type job struct {
	ID     string
	Config config.RunConfig
}

// jobQueue is a thread-safe FIFO of submitted runs.
//
// Submit enqueues from any goroutine while the Dispatcher's Run loop
// dequeues. The signal channel lets the Run loop wait on the queue and a
// context at the same time.
type jobQueue struct {
	mu     sync.Mutex
	jobs   []job
	closed bool
	signal chan struct{} // buffered, size 1
}

func newJobQueue() *jobQueue {
	return &jobQueue{signal: make(chan struct{}, 1)}
}

// Enqueue adds a job to the back of the queue.
// Returns false if the queue is closed.
func (q *jobQueue) Enqueue(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, j)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front job without blocking.
func (q *jobQueue) TryDequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}
	j := q.jobs[0]
	q.jobs[0] = job{}
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	return j, true
}

// Wait returns a channel that signals when jobs may be available. It is
// closed when the queue is closed.
func (q *jobQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops further enqueues and wakes the Run loop. Jobs already queued
// are still drained.
func (q *jobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// isDrained reports whether the queue is closed and empty.
func (q *jobQueue) isDrained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.jobs) == 0
}
