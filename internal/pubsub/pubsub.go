package pubsub

import (
	"context"
	"sync"
)

// Publisher delivers an event to whoever is listening. The queue
// controller publishes synchronously after each committed mutation.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Handler consumes one event. Errors are the subscriber's problem;
// delivery to other subscribers continues regardless.
type Handler func(ctx context.Context, topic string, payload any)

// TopicAll subscribes a handler to every topic.
const TopicAll = "*"

// Broker is an in-process publisher with per-topic subscriber lists.
// Delivery is synchronous and in subscription order.
type Broker struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]Handler)}
}

// Subscribe registers a handler for a topic (or TopicAll).
func (b *Broker) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], h)
}

func (b *Broker) Publish(ctx context.Context, topic string, payload any) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic])+len(b.subs[TopicAll]))
	handlers = append(handlers, b.subs[topic]...)
	handlers = append(handlers, b.subs[TopicAll]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, topic, payload)
	}
	return nil
}
