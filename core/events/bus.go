// Package events provides the in-process pub/sub bus the account kernel
// publishes its observable side effects on: module installs and uninstalls,
// per-unit failures under try semantics, and the re-delegation purge report.
package events

import (
	"context"
	"sync"
)

// Event is a typed payload published on a topic.
type Event interface {
	// Topic returns the string identifier the event is published under.
	Topic() string
}

// Bus is a minimal pub/sub bus over Go channels. Delivery is best effort:
// a slow subscriber drops events rather than blocking the publisher, since
// publication happens inline with kernel operations.
type Bus interface {
	Subscribe(topic string) (<-chan Event, func(), error)
	Publish(ctx context.Context, ev Event)
	Close()
}

type bus struct {
	mu     sync.RWMutex
	topics map[string]map[chan Event]struct{}
	buffer int
	closed bool
}

// New returns a new bus. buffer sets the per-subscriber channel depth; a
// non-positive value falls back to 16.
func New(buffer int) Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &bus{topics: make(map[string]map[chan Event]struct{}), buffer: buffer}
}

func (b *bus) Subscribe(topic string) (<-chan Event, func(), error) {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}, nil
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[chan Event]struct{})
		b.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.topics[topic]; ok {
			if _, exists := subs[ch]; exists {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(b.topics, topic)
				}
			}
		}
	}
	return ch, cancel, nil
}

func (b *bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := b.topics[ev.Topic()]
	// Copy channels to avoid holding the lock while sending.
	chs := make([]chan Event, 0, len(subs))
	for ch := range subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()
	for _, ch := range chs {
		select {
		case ch <- ev:
		case <-ctx.Done():
			return
		default:
			// drop if subscriber is slow
		}
	}
}

func (b *bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.topics {
		for ch := range subs {
			close(ch)
		}
		delete(b.topics, topic)
	}
}
