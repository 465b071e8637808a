// Package pubsubplugin activates the pub/sub capability on a Router: it
// installs the Publish closure and, if a validation plugin is also applied,
// participates in outbound schema validation for broadcast payloads.
package pubsubplugin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wsrouter/wsrouter"
	"github.com/wsrouter/wsrouter/errs"
	"github.com/wsrouter/wsrouter/pubsub"
	"github.com/wsrouter/wsrouter/schema"
)

// Plugin activates Router.Publish and Topics.Subscribe/Unsubscribe over a
// pubsub.Adapter.
type Plugin struct {
	adapter pubsub.Adapter
	hooks   wsrouter.TopicHooks
}

// Option configures the plugin at construction time.
type Option func(*Plugin)

// WithTopicHooks installs normalization/authorization/lifecycle hooks around
// topic subscribe, unsubscribe, and publish.
func WithTopicHooks(hooks wsrouter.TopicHooks) Option {
	return func(p *Plugin) { p.hooks = hooks }
}

// New constructs the pub/sub plugin over adapter (wsrouter/pubsub/memory or
// wsrouter/pubsub/redisps, or a custom implementation of pubsub.Adapter).
func New(adapter pubsub.Adapter, opts ...Option) *Plugin {
	p := &Plugin{adapter: adapter}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return "pubsub" }

func (p *Plugin) Apply(api wsrouter.PluginAPI) error {
	api.AddCapability(wsrouter.CapPubSub)
	api.SetPubSubAdapter(p.adapter)
	api.SetTopicHooks(p.hooks)
	api.SetPublishFn(func(topic string, schemaInstance any, payload any, opts ...wsrouter.PublishOpt) wsrouter.PublishResult {
		return p.publish(api, topic, schemaInstance, payload, opts...)
	})
	return nil
}

type outboundFrame struct {
	Type    string          `json:"type"`
	Meta    map[string]any  `json:"meta,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (p *Plugin) publish(api wsrouter.PluginAPI, topic string, schemaInstance any, payload any, opts ...wsrouter.PublishOpt) wsrouter.PublishResult {
	var o wsrouter.PublishOpts
	for _, opt := range opts {
		opt(&o)
	}

	if err := api.ValidateOutbound(schemaInstance, payload, errs.ValidationError); err != nil {
		return wsrouter.PublishResult{Ok: false, Error: errs.ValidationError, Cause: err, Adapter: "pubsub"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return wsrouter.PublishResult{Ok: false, Error: errs.SerializationError, Cause: err, Adapter: "pubsub"}
	}

	meta := map[string]any{"timestamp": time.Now().UnixMilli()}
	frame := outboundFrame{Type: schema.TypeOf(schemaInstance), Meta: meta, Payload: body}
	framed, err := json.Marshal(frame)
	if err != nil {
		return wsrouter.PublishResult{Ok: false, Error: errs.SerializationError, Cause: err, Adapter: "pubsub"}
	}

	ack, err := p.adapter.Publish(context.Background(), topic, framed, pubsub.PublishOpts{ExcludeClientID: o.ExcludeClientID})
	if err != nil {
		return wsrouter.PublishResult{Ok: false, Error: errs.AdapterError, Retryable: true, Cause: err, Adapter: "pubsub"}
	}

	return wsrouter.PublishResult{Ok: true, Capability: string(ack.Capability), Matched: ack.Matched}
}

var _ wsrouter.Plugin = (*Plugin)(nil)
