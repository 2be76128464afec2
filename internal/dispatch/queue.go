package dispatch

import "sync"

// Queue is an unbounded strict-FIFO queue shared between many producer
// goroutines and a single consumer (the Dispatcher). Push never blocks and
// never fails; unbounded capacity is deliberate so user requests are never
// dropped under load.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	wake    chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Push appends an entry to the tail and signals the consumer.
func (q *Queue) Push(e Entry) {
	q.mu.Lock()
	q.entries = append(q.entries, e)
	q.mu.Unlock()

	// Non-blocking: a single pending wake is enough, the consumer drains
	// the queue fully before waiting again.
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes and returns the head entry. The second return value is false
// when the queue is empty.
func (q *Queue) Pop() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head, true
}

// Len returns the current number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Wake returns the channel signalled on Push. It carries at most one
// pending signal; consumers must re-check the queue after draining it.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}
