package engine

import "sync"

// mailbox is an unbounded, thread-safe FIFO of messages.
//
// Any goroutine may Enqueue; exactly one goroutine drains it with
// TryDequeue and Wait. The signal channel lets the owner wait on its
// mailbox and its context in one select.
type mailbox struct {
	mu     sync.Mutex
	msgs   []Msg
	closed bool
	signal chan struct{} // buffered, size 1
}

func newMailbox() *mailbox {
	return &mailbox{
		msgs:   make([]Msg, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds m to the back of the mailbox.
// Returns false if the mailbox is closed.
func (q *mailbox) Enqueue(m Msg) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.msgs = append(q.msgs, m)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front message without blocking.
func (q *mailbox) TryDequeue() (Msg, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.msgs) == 0 {
		return nil, false
	}

	m := q.msgs[0]
	q.msgs[0] = nil

	if len(q.msgs) == 1 {
		q.msgs = q.msgs[:0]
	} else {
		q.msgs = q.msgs[1:]
	}

	return m, true
}

// Wait returns a channel that fires when messages may be available. It is
// closed once the mailbox is closed.
func (q *mailbox) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued messages.
func (q *mailbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// Drained reports whether the mailbox is closed and empty.
func (q *mailbox) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.msgs) == 0
}

// Close rejects further messages and wakes the owner.
func (q *mailbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
