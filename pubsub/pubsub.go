// Package pubsub defines the adapter interface wsrouter's pub/sub
// coordination is built against. It has no dependency on the root package;
// wsrouter imports pubsub for these types, never the reverse.
package pubsub

import "context"

// Capability describes how trustworthy an adapter's subscriber count is.
type Capability string

const (
	// CapabilityExact means Matched is a precise count (single-process
	// adapters can always know this).
	CapabilityExact Capability = "exact"
	// CapabilityEstimate means Matched is an approximation (e.g. Redis
	// PUBLISH only reports the receiving-client count on the node the
	// command was issued to).
	CapabilityEstimate Capability = "estimate"
	// CapabilityUnknown means the adapter cannot report a count at all.
	CapabilityUnknown Capability = "unknown"
)

// PublishOpts carries the effective publish-time configuration down to the
// adapter.
type PublishOpts struct {
	// ExcludeClientID, if set, names the publishing connection. The memory
	// and redisps adapters ignore it, and AdapterEvent does not carry it, so
	// the router delivers to every local subscriber regardless.
	ExcludeClientID string
}

// PublishAck is what an adapter returns on a successful publish.
type PublishAck struct {
	Capability Capability
	Matched    *int // nil unless Capability == CapabilityExact or CapabilityEstimate
}

// AdapterEvent is pushed from Events() for adapters that support
// out-of-band delivery notifications (used by multi-node adapters to learn
// about messages published on other nodes).
type AdapterEvent struct {
	Topic   string
	Payload []byte
}

// Adapter is the external collaborator behind Router.Publish and
// Topics.Subscribe/Unsubscribe. wsrouter/pubsub/memory and
// wsrouter/pubsub/redisps are reference implementations.
type Adapter interface {
	Publish(ctx context.Context, topic string, payload []byte, opts PublishOpts) (PublishAck, error)
	Subscribe(ctx context.Context, clientID, topic string) error
	Unsubscribe(ctx context.Context, clientID, topic string) error
	// Events returns a channel of inbound deliveries for topics this
	// adapter instance has subscribed to, or nil if the adapter delivers
	// synchronously through some other mechanism.
	Events() <-chan AdapterEvent
}
