// Package redisps implements a multi-node pubsub.Adapter over Redis
// PUBLISH/SUBSCRIBE: the in-process topic map wsrouter/pubsub/memory keeps
// becomes a shared channel namespace visible to every process sharing the
// same Redis instance.
//
// Redis PUBLISH only reports the number of clients that received the
// message on the node that issued the command, not the cluster-wide
// subscriber count, so every publish ack here carries
// pubsub.CapabilityEstimate rather than CapabilityExact.
package redisps

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/wsrouter/wsrouter/pubsub"
)

// Adapter is a Redis-backed pubsub.Adapter.
type Adapter struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	subs   map[string]*redis.PubSub // topic -> subscription
	counts map[string]int           // topic -> local subscriber count

	events chan pubsub.AdapterEvent
	done   chan struct{}
}

// New constructs an Adapter over an existing *redis.Client. channelPrefix is
// prepended to every topic name to namespace it within a shared Redis
// instance.
func New(client *redis.Client, channelPrefix string) *Adapter {
	a := &Adapter{
		client: client,
		prefix: channelPrefix,
		subs:   make(map[string]*redis.PubSub),
		counts: make(map[string]int),
		events: make(chan pubsub.AdapterEvent, 256),
		done:   make(chan struct{}),
	}
	return a
}

func (a *Adapter) channel(topic string) string {
	return a.prefix + topic
}

func (a *Adapter) Subscribe(ctx context.Context, clientID, topic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counts[topic]++
	if _, exists := a.subs[topic]; exists {
		return nil
	}

	ps := a.client.Subscribe(ctx, a.channel(topic))
	a.subs[topic] = ps
	ch := ps.Channel()

	go func(topic string, ch <-chan *redis.Message) {
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case a.events <- pubsub.AdapterEvent{Topic: topic, Payload: []byte(msg.Payload)}:
				default:
				}
			case <-a.done:
				return
			}
		}
	}(topic, ch)

	return nil
}

func (a *Adapter) Unsubscribe(ctx context.Context, clientID, topic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.counts[topic] > 0 {
		a.counts[topic]--
	}
	if a.counts[topic] > 0 {
		return nil
	}

	ps, ok := a.subs[topic]
	if !ok {
		return nil
	}
	delete(a.subs, topic)
	delete(a.counts, topic)
	return ps.Close()
}

func (a *Adapter) Publish(ctx context.Context, topic string, payload []byte, opts pubsub.PublishOpts) (pubsub.PublishAck, error) {
	received, err := a.client.Publish(ctx, a.channel(topic), payload).Result()
	if err != nil {
		return pubsub.PublishAck{}, err
	}
	matched := int(received)
	return pubsub.PublishAck{Capability: pubsub.CapabilityEstimate, Matched: &matched}, nil
}

func (a *Adapter) Events() <-chan pubsub.AdapterEvent {
	return a.events
}

// Close stops every underlying Redis subscription and the adapter's event
// delivery goroutines.
func (a *Adapter) Close() error {
	close(a.done)
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for topic, ps := range a.subs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(a.subs, topic)
	}
	close(a.events)
	return firstErr
}

var _ pubsub.Adapter = (*Adapter)(nil)
