package wsrouter

import (
	"context"

	"github.com/wsrouter/wsrouter/errs"
	"github.com/wsrouter/wsrouter/logging"
	"github.com/wsrouter/wsrouter/pubsub"
	"github.com/wsrouter/wsrouter/recovery"
)

// SetPubSubAdapter installs the pub/sub adapter and starts the router's
// delivery loop, which drains adapter.Events() and fans each delivery out
// to every locally-connected subscriber of its topic. Only a pub/sub
// plugin is expected to call this.
func (a PluginAPI) SetPubSubAdapter(adapter pubsub.Adapter) {
	a.router.pubsubAdapter = adapter
	go a.router.pubsubDeliveryLoop(adapter)
}

// SetTopicHooks installs normalization/authorization/lifecycle hooks for
// Topics.Subscribe/Unsubscribe.
func (a PluginAPI) SetTopicHooks(hooks TopicHooks) {
	a.router.topicHooks = hooks
}

func (r *Router) pubsubDeliveryLoop(adapter pubsub.Adapter) {
	for event := range adapter.Events() {
		r.deliverTopicEvent(event)
	}
}

func (r *Router) deliverTopicEvent(event pubsub.AdapterEvent) {
	r.topicMembersMu.Lock()
	members := r.topicMembers[event.Topic]
	clientIDs := make([]string, 0, len(members))
	for id := range members {
		clientIDs = append(clientIDs, id)
	}
	r.topicMembersMu.Unlock()

	for _, clientID := range clientIDs {
		v, ok := r.connections.Load(clientID)
		if !ok {
			continue
		}
		conn := v.(*connection)
		if conn.closed.Load() {
			continue
		}
		if err := conn.transport.Send(event.Payload); err != nil {
			r.routeError(errs.Wrap(errs.SendError, "pub/sub delivery failed", err), nil)
		}
	}
}

func (r *Router) addTopicMember(topic, clientID string) {
	r.topicMembersMu.Lock()
	defer r.topicMembersMu.Unlock()
	if r.topicMembers[topic] == nil {
		r.topicMembers[topic] = make(map[string]struct{})
	}
	r.topicMembers[topic][clientID] = struct{}{}
}

func (r *Router) removeTopicMember(topic, clientID string) {
	r.topicMembersMu.Lock()
	defer r.topicMembersMu.Unlock()
	if subs, ok := r.topicMembers[topic]; ok {
		delete(subs, clientID)
		if len(subs) == 0 {
			delete(r.topicMembers, topic)
		}
	}
}

func (r *Router) subscribeTopic(ctx *Context, topic string) error {
	if r.topicHooks.Normalize != nil {
		topic = r.topicHooks.Normalize(topic)
	}
	if err := r.topicValidator.Validate(topic); err != nil {
		r.routeError(err, ctx)
		return err
	}
	if r.topicHooks.Authorize != nil {
		if err := r.topicHooks.Authorize(ctx, topic, true); err != nil {
			aclErr := errs.Wrap(errs.ACLSubscribe, "subscribe not authorized", err)
			r.routeError(aclErr, ctx)
			return aclErr
		}
	}
	if r.pubsubAdapter == nil {
		errs.ConfigPanic("wsrouter: Topics.Subscribe called with no pub/sub plugin applied")
	}
	if err := r.pubsubAdapter.Subscribe(context.Background(), ctx.ClientID, topic); err != nil {
		adapterErr := errs.Wrap(errs.AdapterError, "subscribe failed", err)
		r.routeError(adapterErr, ctx)
		return adapterErr
	}
	ctx.conn.addTopic(topic)
	r.addTopicMember(topic, ctx.ClientID)
	_ = ctx.conn.transport.Subscribe(topic)

	if r.topicHooks.OnSubscribed != nil {
		if err := recovery.CallVoid(func() { r.topicHooks.OnSubscribed(ctx, topic) }); err != nil {
			r.config.Logger.Warn("OnSubscribed hook failed", logging.Err(err), logging.String("topic", topic))
		}
	}
	return nil
}

func (r *Router) unsubscribeTopic(ctx *Context, topic string) error {
	if r.topicHooks.Normalize != nil {
		topic = r.topicHooks.Normalize(topic)
	}
	if !ctx.conn.hasTopic(topic) {
		return nil
	}
	if r.topicHooks.Authorize != nil {
		if err := r.topicHooks.Authorize(ctx, topic, false); err != nil {
			aclErr := errs.Wrap(errs.ACLSubscribe, "unsubscribe not authorized", err)
			r.routeError(aclErr, ctx)
			return aclErr
		}
	}
	if r.pubsubAdapter != nil {
		if err := r.pubsubAdapter.Unsubscribe(context.Background(), ctx.ClientID, topic); err != nil {
			adapterErr := errs.Wrap(errs.AdapterError, "unsubscribe failed", err)
			r.routeError(adapterErr, ctx)
			return adapterErr
		}
	}
	ctx.conn.removeTopic(topic)
	r.removeTopicMember(topic, ctx.ClientID)
	_ = ctx.conn.transport.Unsubscribe(topic)

	if r.topicHooks.OnUnsubscribed != nil {
		if err := recovery.CallVoid(func() { r.topicHooks.OnUnsubscribed(ctx, topic) }); err != nil {
			r.config.Logger.Warn("OnUnsubscribed hook failed", logging.Err(err), logging.String("topic", topic))
		}
	}
	return nil
}
