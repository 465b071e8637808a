// Package memory implements a single-process pubsub.Adapter: an in-process
// topic map guarded by a mutex, with publishes dropped (not blocked)
// against a full delivery channel.
//
// The adapter tracks subscriber identity (clientID) rather than an opaque
// callback, so it can report an exact subscriber count on every publish;
// actual frame delivery to local connections is done by the router, which
// drains Events() and matches against its own per-connection topic
// membership.
package memory

import (
	"context"
	"sync"

	"github.com/wsrouter/wsrouter/pubsub"
)

// Adapter is an in-memory pubsub.Adapter suitable for single-process
// deployments and tests.
type Adapter struct {
	mu     sync.RWMutex
	topics map[string]map[string]struct{} // topic -> clientIDs
	events chan pubsub.AdapterEvent
	closed bool
}

// New constructs an Adapter. eventBuffer sizes the Events() channel;
// publishes to a full channel are dropped rather than blocking the
// publisher.
func New(eventBuffer int) *Adapter {
	if eventBuffer <= 0 {
		eventBuffer = 256
	}
	return &Adapter{
		topics: make(map[string]map[string]struct{}),
		events: make(chan pubsub.AdapterEvent, eventBuffer),
	}
}

func (a *Adapter) Subscribe(ctx context.Context, clientID, topic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.topics[topic] == nil {
		a.topics[topic] = make(map[string]struct{})
	}
	a.topics[topic][clientID] = struct{}{}
	return nil
}

func (a *Adapter) Unsubscribe(ctx context.Context, clientID, topic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if subs, ok := a.topics[topic]; ok {
		delete(subs, clientID)
		if len(subs) == 0 {
			delete(a.topics, topic)
		}
	}
	return nil
}

func (a *Adapter) Publish(ctx context.Context, topic string, payload []byte, opts pubsub.PublishOpts) (pubsub.PublishAck, error) {
	a.mu.RLock()
	count := len(a.topics[topic])
	a.mu.RUnlock()

	msgCopy := make([]byte, len(payload))
	copy(msgCopy, payload)

	select {
	case a.events <- pubsub.AdapterEvent{Topic: topic, Payload: msgCopy}:
	default:
		// Delivery channel full: drop rather than block the publisher.
	}

	return pubsub.PublishAck{Capability: pubsub.CapabilityExact, Matched: &count}, nil
}

func (a *Adapter) Events() <-chan pubsub.AdapterEvent {
	return a.events
}

// Close shuts the adapter's event channel down. Safe to call once.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	close(a.events)
}

var _ pubsub.Adapter = (*Adapter)(nil)
