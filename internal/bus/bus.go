// Package bus provides fan-out delivery of domain events to external
// subscribers (the presentation layer, the SSE feed, tests).
//
// Delivery is synchronous and in subscription order. Handlers must not
// block; anything slow should hand off to its own goroutine or channel.
package bus

import (
	"log"
	"sync"
	"time"

	"github.com/crumbnet/crumb/internal/domain"
)

// Handler receives every published event.
type Handler func(ev domain.Event)

type subscriber struct {
	id int
	fn Handler
}

// Bus is a minimal publish/subscribe hub for domain events.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all events and returns a cancel
// function that removes it.
func (b *Bus) Subscribe(h Handler) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscriber{id: id, fn: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to every subscriber. A panicking handler is
// logged and skipped; it cannot take the bus down.
func (b *Bus) Publish(name domain.EventName, payload interface{}) {
	ev := domain.Event{Name: name, At: time.Now(), Payload: payload}

	b.mu.RLock()
	handlers := make([]Handler, len(b.subs))
	for i, s := range b.subs {
		handlers[i] = s.fn
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, ev)
	}
}

func deliver(h Handler, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[bus] subscriber panic on %s: %v", ev.Name, r)
		}
	}()
	h(ev)
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
