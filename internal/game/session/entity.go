// Package session tracks which players currently hold a live connection and
// owns the outbound message queue for each of them.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Outbox queues display lines for one player. The host drains Messages() and
// renders each line (action bar, chat) however it sees fit. When the queue is
// full the oldest line gives way, so a slow or absent reader always sees the
// latest status.
type Outbox struct {
	id       uuid.UUID
	messages chan string
	mu       sync.Mutex
	closed   bool
	dropped  uint64
}

// NewOutbox creates an Outbox for the given player.
//
// Postcondition: Returns an Outbox with an open channel of at least 1 slot.
func NewOutbox(id uuid.UUID, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Outbox{
		id:       id,
		messages: make(chan string, bufferSize),
	}
}

// ID returns the owning player's id.
func (o *Outbox) ID() uuid.UUID {
	return o.id
}

// Push enqueues line without blocking, evicting the oldest queued line when
// the buffer is full.
//
// Postcondition: Returns an error only if the outbox is closed; otherwise line
// is the newest queued entry.
func (o *Outbox) Push(line string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.id)
	}
	for {
		select {
		case o.messages <- line:
			return nil
		default:
		}
		select {
		case <-o.messages:
			o.dropped++
		default:
		}
	}
}

// Dropped returns how many queued lines were evicted to make room.
func (o *Outbox) Dropped() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// Messages returns the read side of the queue.
func (o *Outbox) Messages() <-chan string {
	return o.messages
}

// Close closes the queue. Safe to call more than once.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.messages)
	}
}
