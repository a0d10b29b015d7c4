package realtime

import (
	"sync"
)

// changeQueue is an unbounded FIFO drained by one delivery goroutine.
// Publishers never block on a slow handler.
type changeQueue struct {
	mu      sync.Mutex
	changes []Change
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newChangeQueue() *changeQueue {
	return &changeQueue{
		changes: make([]Change, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a change to the back of the queue. Returns false once closed.
func (q *changeQueue) Enqueue(ch Change) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.changes = append(q.changes, ch)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front change without blocking. A closed queue
// yields nothing even if changes remain.
func (q *changeQueue) TryDequeue() (Change, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.changes) == 0 {
		return Change{}, false
	}
	ch := q.changes[0]
	q.changes[0] = Change{}
	if len(q.changes) == 1 {
		q.changes = q.changes[:0]
	} else {
		q.changes = q.changes[1:]
	}
	return ch, true
}

// Wait returns a channel that fires when changes may be available.
// It is closed when the queue closes.
func (q *changeQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *changeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

func (q *changeQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops delivery and wakes the waiting goroutine
func (q *changeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.changes = nil
	close(q.signal)
}
