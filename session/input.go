package session

import (
	"sync"

	"github.com/mensylisir/xmremote/common"
)

// Key is the kind of keystroke handed to PushKey.
type Key int

const (
	KeyText Key = iota
	KeyEnter
	KeyBackspace
)

// KeyFragment maps a keystroke to the bytes relayed to the remote shell.
func KeyFragment(key Key, text string) string {
	switch key {
	case KeyEnter:
		return "\n"
	case KeyBackspace:
		return common.KeyBackspace
	default:
		return text
	}
}

// InputQueue is the FIFO of keystroke fragments waiting to be written to
// one session's shell. Any goroutine may push; only the session's worker
// drains.
type InputQueue struct {
	mu     sync.Mutex
	items  []string
	closed bool
	ready  chan struct{}
}

func newInputQueue() *InputQueue {
	return &InputQueue{ready: make(chan struct{}, 1)}
}

// Push enqueues fragment. It returns false for an empty fragment or once
// the session has ended.
func (q *InputQueue) Push(fragment string) bool {
	if fragment == "" {
		return false
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, fragment)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

func (q *InputQueue) PushKey(key Key, text string) bool {
	return q.Push(KeyFragment(key, text))
}

// Ready is signalled after a push. A signal may cover several fragments.
func (q *InputQueue) Ready() <-chan struct{} {
	return q.ready
}

// Drain removes and returns all pending fragments in push order.
func (q *InputQueue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *InputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *InputQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
}
