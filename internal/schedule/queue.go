package schedule

import (
	"sync"
	"sync/atomic"
)

// pending is a queued task. Deferred tasks sit in two places at once (the
// deferred queue and a maxWait timer), so whoever runs them first must
// claim them.
type pending struct {
	task    Task
	claimed atomic.Bool
}

// claim reports whether the caller won the right to run the task.
func (p *pending) claim() bool {
	return p.claimed.CompareAndSwap(false, true)
}

// taskQueue is a thread-safe, unbounded FIFO of tasks.
//
// Availability is signalled through a buffered channel of size 1 so the
// Loop can wait on it together with ctx.Done().
type taskQueue struct {
	mu     sync.Mutex
	items  []*pending
	closed bool
	signal chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		items:  make([]*pending, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds p to the back of the queue. Returns false if the queue is
// closed.
func (q *taskQueue) Enqueue(p *pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, p)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the front item without blocking.
func (q *taskQueue) TryDequeue() (*pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	p := q.items[0]
	// Release the slot so the task closure can be collected.
	q.items[0] = nil
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return p, true
}

// Wait returns a channel that signals when items may be available. The
// channel is closed when the queue is closed.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued items.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting items and wakes waiters.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *taskQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
