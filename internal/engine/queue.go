package engine

import "sync"

// event is the closed set of messages processed by the cascade's Run
// loop. Concrete event types live in cascade.go next to their handlers.
type event interface {
	isEvent()
}

// eventQueue is a thread-safe FIFO queue for cascade events.
//
// The queue is unbounded so that transform completions and settle
// callbacks can enqueue follow-on events without ever blocking; a
// blocking enqueue from inside a settle callback would deadlock the
// loop that has to drain it.
//
// Thread-safety is provided for external enqueuing (API methods, load
// and transform goroutines) while the cascade's Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware
// waiting in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (nil, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil, false
	}

	e := q.events[0]

	// Nil out the slot so the underlying array does not retain the
	// event's pointers until reallocation.
	q.events[0] = nil

	if len(q.events) == 1 {
		// Last element - reset to empty slice with original capacity
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return // Already closed
	}

	q.closed = true
	close(q.signal) // Wakes all waiters
}
