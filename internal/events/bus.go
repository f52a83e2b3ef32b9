// Package events provides a simple publish-subscribe bus that fans counter
// updates out to UI subscribers.
package events

import (
	"sync"

	"github.com/micro-nova/defect-tally/internal/models"
)

const subBufferSize = 8

// Update is one published state of the counter set. Seq increases by one
// per Publish, so a subscriber can tell when it missed an update.
type Update struct {
	Seq      uint64
	Counters []models.Counter
}

// Bus is a non-blocking publish-subscribe event bus.
// Subscribers that are slow to consume events will have events dropped rather
// than blocking publishers.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]chan Update
	seq    uint64
	closed bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan Update),
	}
}

// Subscribe creates a new subscription with the given ID.
// Call Unsubscribe when done to clean up. After Close the returned channel
// is already closed.
func (b *Bus) Subscribe(id string) <-chan Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Update, subBufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends the counters to all subscribers. Each subscriber gets its
// own copy. If a subscriber's channel is full, the event is dropped.
func (b *Bus) Publish(counters []models.Counter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.seq++
	for _, ch := range b.subs {
		cp := make([]models.Counter, len(counters))
		copy(cp, counters)
		select {
		case ch <- Update{Seq: b.seq, Counters: cp}:
		default:
			// Drop if subscriber is slow
		}
	}
}

// Seq returns the sequence number of the last Publish.
func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Close ends every subscription. Later Publish calls are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
