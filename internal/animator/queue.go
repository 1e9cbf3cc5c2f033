package animator

import "sync"

// op is one unit of work on an animation's serialized schedule.
type op struct {
	run func()
}

// opQueue is a thread-safe FIFO queue of schedule units.
//
// The queue is unbounded so that background work (stream refills, undo
// sequences) can enqueue without blocking the goroutines that submit it.
//
// Thread-safety is provided for external enqueuing while the animation's
// run loop dequeues. The queue uses a channel for signaling to enable
// context-aware waiting in the run loop.
type opQueue struct {
	mu     sync.Mutex
	ops    []op
	closed bool
	signal chan struct{} // buffered size 1; coalesces multiple signals
}

func newOpQueue() *opQueue {
	return &opQueue{
		ops:    make([]op, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an op to the back of the queue.
// Returns false if the queue is closed.
func (q *opQueue) Enqueue(o op) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.ops = append(q.ops, o)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (op{}, false) if the queue is empty.
func (q *opQueue) TryDequeue() (op, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return op{}, false
	}

	o := q.ops[0]

	// Nil out the slot so the closure (and everything it captures) can be
	// collected before the array is reallocated.
	q.ops[0] = op{}

	if len(q.ops) == 1 {
		q.ops = q.ops[:0]
	} else {
		q.ops = q.ops[1:]
	}

	return o, true
}

// Wait returns a channel that signals when ops may be available. The channel
// closes when the queue is closed.
func (q *opQueue) Wait() <-chan struct{} {
	return q.signal
}

// Drained reports whether the queue has been closed and fully consumed.
func (q *opQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.ops) == 0
}

// Close signals that no more ops will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *opQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
