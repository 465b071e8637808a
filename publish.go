package wsrouter

import (
	"github.com/wsrouter/wsrouter/errs"
	"github.com/wsrouter/wsrouter/lifecycle"
)

// PublishResult is the discriminated outcome of Router.Publish. Exactly one
// of the success fields (Capability/Matched) or the failure fields
// (Error/Retryable/...) is meaningful, selected by Ok.
type PublishResult struct {
	Ok bool

	// Success fields.
	Capability string // "exact" | "estimate" | "unknown"
	Matched    *int

	// Failure fields.
	Error     errs.Code
	Retryable bool
	Adapter   string
	Details   any
	Cause     error
}

// PublishOpts configures one Publish call.
type PublishOpts struct {
	ExcludeClientID string
}

// PublishOpt mutates PublishOpts.
type PublishOpt func(*PublishOpts)

// ExcludeClientID passes clientID to the adapter as PublishOpts.ExcludeClientID.
// Neither reference adapter nor the router's local delivery acts on it: a
// subscribed clientID still receives the message.
func ExcludeClientID(clientID string) PublishOpt {
	return func(o *PublishOpts) { o.ExcludeClientID = clientID }
}

// Publish broadcasts payload under schemaInstance's wire type to every
// subscriber of topic. Requires the pub/sub capability; calling it without
// a pub/sub plugin applied is a configuration-time panic, since that is a
// startup wiring mistake rather than a runtime condition.
func (r *Router) Publish(topic string, schemaInstance any, payload any, opts ...PublishOpt) PublishResult {
	if !r.capabilities.Has(CapPubSub) || r.publishFn == nil {
		errs.ConfigPanic("wsrouter: Publish called with no pub/sub plugin applied")
	}
	result := r.publishFn(topic, schemaInstance, payload, opts...)
	r.observers.EmitPublish(lifecycle.PublishEvent{Topic: topic, Ok: result.Ok, Matched: result.Matched})
	return result
}

// Topics is the per-connection facet for subscription management, exposed
// from a dispatch Context via ctx.Topics(). Spec naming treats "Topics" and
// "Subscriptions" as one entity; this type is the sole name used for it.
type Topics struct {
	ctx *Context
}

// Topics returns the Topics facet bound to this dispatch's connection.
func (ctx *Context) Topics() Topics {
	return Topics{ctx: ctx}
}

func (t Topics) router() *Router { return t.ctx.router }

// Subscribe validates topic, authorizes it (if a hook is installed),
// subscribes through the adapter, and records local membership.
func (t Topics) Subscribe(topic string) error {
	return t.router().subscribeTopic(t.ctx, topic)
}

// Unsubscribe is a soft no-op if topic was never subscribed.
func (t Topics) Unsubscribe(topic string) error {
	return t.router().unsubscribeTopic(t.ctx, topic)
}

// SubscribeMany subscribes to every topic, short-circuiting on the first
// error.
func (t Topics) SubscribeMany(topics ...string) error {
	for _, topic := range topics {
		if err := t.Subscribe(topic); err != nil {
			return err
		}
	}
	return nil
}

// UnsubscribeMany unsubscribes from every topic.
func (t Topics) UnsubscribeMany(topics ...string) error {
	for _, topic := range topics {
		if err := t.Unsubscribe(topic); err != nil {
			return err
		}
	}
	return nil
}

// Replace clears existing subscriptions and subscribes to exactly topics.
func (t Topics) Replace(topics ...string) error {
	t.Clear()
	return t.SubscribeMany(topics...)
}

// Clear unsubscribes from every currently-subscribed topic.
func (t Topics) Clear() {
	for _, topic := range t.List() {
		_ = t.Unsubscribe(topic)
	}
}

// Has reports whether the connection is subscribed to topic.
func (t Topics) Has(topic string) bool {
	return t.ctx.conn.hasTopic(topic)
}

// List returns every topic the connection is currently subscribed to.
func (t Topics) List() []string {
	return t.ctx.conn.listTopics()
}
