package wsrouter

// Capability is a bitset of optional features a set of applied plugins has
// turned on. The router exposes gated methods (Rpc, Publish) that check
// these bits before delegating, since Go cannot add methods to a type at
// runtime the way the source environment's structural typing could.
type Capability uint32

const (
	CapValidation Capability = 1 << iota
	CapPubSub
	CapRPC
)

// Has reports whether all bits in want are set in c.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// RPCRouter is a capability-checked wrapper constructible only via
// AsRPCRouter, giving callers a compile-time-flavored guard over a runtime
// bitset test.
type RPCRouter struct {
	router *Router
}

// AsRPCRouter returns a usable RPCRouter only if the RPC capability is
// active.
func (r *Router) AsRPCRouter() (RPCRouter, bool) {
	if !r.capabilities.Has(CapRPC) {
		return RPCRouter{}, false
	}
	return RPCRouter{router: r}, true
}

// Rpc registers an RPC handler, delegating to Router.Rpc. Unlike the
// router-level method, calling this cannot hit the missing-capability
// panic: holding an RPCRouter proves the capability was active when the
// wrapper was constructed.
func (r RPCRouter) Rpc(schemaInstance any, handler HandlerFunc, middleware ...Middleware) RPCRouter {
	r.router.Rpc(schemaInstance, handler, middleware...)
	return r
}

// PubSubRouter is a capability-checked wrapper constructible only via
// AsPubSubRouter.
type PubSubRouter struct {
	router *Router
}

// AsPubSubRouter returns a usable PubSubRouter only if the pub/sub
// capability is active.
func (r *Router) AsPubSubRouter() (PubSubRouter, bool) {
	if !r.capabilities.Has(CapPubSub) {
		return PubSubRouter{}, false
	}
	return PubSubRouter{router: r}, true
}

// Publish broadcasts to topic, delegating to Router.Publish with the same
// capability-proof guarantee RPCRouter.Rpc gives.
func (r PubSubRouter) Publish(topic string, schemaInstance any, payload any, opts ...PublishOpt) PublishResult {
	return r.router.Publish(topic, schemaInstance, payload, opts...)
}
