package wsrouter

import (
	"context"

	"github.com/wsrouter/wsrouter/errs"
	"github.com/wsrouter/wsrouter/logging"
)

// Plugin is a pure function over a Router's capabilities: it contributes
// enhancers, a capability marker, and optionally installs the closures
// behind the router's gated methods (Rpc, Publish). Go cannot add methods
// to *Router at runtime, so a plugin receives a PluginAPI handle instead of
// the router itself and installs behavior through it.
type Plugin interface {
	// Name identifies the plugin for idempotence checks; a second Use of
	// the same name is a no-op.
	Name() string
	// Apply wires the plugin's behavior into the router via api.
	Apply(api PluginAPI) error
}

// PluginAPI is the narrow surface a Plugin is allowed to mutate on a
// Router, standing in for Go's lack of runtime method addition.
type PluginAPI struct {
	router *Router
}

// AddCapability ORs cap into the router's aggregate capability bitset.
func (a PluginAPI) AddCapability(cap Capability) {
	a.router.capabilities |= cap
}

// RegisterEnhancer adds fn to the context-construction enhancer chain at
// the given priority.
func (a PluginAPI) RegisterEnhancer(fn EnhancerFunc, priority int) {
	a.router.enhancers.register(fn, priority)
}

// RegisterGlobalMiddleware appends mw to the global middleware chain run
// before every route's own middleware.
func (a PluginAPI) RegisterGlobalMiddleware(mw Middleware) {
	a.router.globalMiddleware = append(a.router.globalMiddleware, mw)
}

// SetRPCRegister installs the closure backing Router.Rpc. Only the
// validation plugin is expected to call this.
func (a PluginAPI) SetRPCRegister(fn func(schemaInstance any, middleware []Middleware, handler HandlerFunc)) {
	a.router.rpcRegister = fn
}

// SetPublishFn installs the closure backing Router.Publish. Only a pub/sub
// plugin is expected to call this.
func (a PluginAPI) SetPublishFn(fn func(topic string, schemaInstance any, payload any, opts ...PublishOpt) PublishResult) {
	a.router.publishFn = fn
}

// SetOutboundValidator installs a function consulted by Send/Reply/
// Progress/Publish to validate outgoing payloads.
func (a PluginAPI) SetOutboundValidator(fn func(schemaInstance any, payload any, code errs.Code) error) {
	a.router.outboundValidator = fn
}

// Logger returns the router's configured logger, for plugins that want to
// log through the same sink as the core.
func (a PluginAPI) Logger() logging.Logger {
	return a.router.config.Logger
}

// Config returns the router's configuration, read-only by convention.
func (a PluginAPI) Config() Config {
	return a.router.config
}

// RPCAdmit admits a new RPC under cid for clientID, returning the
// cancellation context the handler should select on. ok is false if the
// connection is already at its concurrent-RPC ceiling.
func (a PluginAPI) RPCAdmit(clientID, cid string) (ctx context.Context, ok bool) {
	return a.router.rpc.OnRequest(clientID, cid)
}

// RPCAbort cancels cid's context and moves it to terminated.
func (a PluginAPI) RPCAbort(clientID, cid string) {
	a.router.rpc.OnAbort(clientID, cid)
}

// RPCIsTerminal reports whether cid has already reached a terminal state
// (replied, errored, or aborted) within the dedup window.
func (a PluginAPI) RPCIsTerminal(clientID, cid string) bool {
	return a.router.rpc.IsTerminal(clientID, cid)
}

// RegisterRoute installs entry directly into the route table, bypassing the
// reserved-prefix check's caller (Router.On) so the RPC registrar can attach
// its own wrapped handler.
func (a PluginAPI) RegisterRoute(entry *RouteEntry) {
	a.router.routes.Register(entry)
}

// Use applies plugin to the router. Applying the same plugin name twice is
// a no-op; the second call returns r unchanged without re-running Apply.
func (r *Router) Use(plugin Plugin) *Router {
	name := plugin.Name()
	r.pluginMu.Lock()
	if r.appliedPlugins[name] {
		r.pluginMu.Unlock()
		return r
	}
	r.appliedPlugins[name] = true
	r.pluginMu.Unlock()

	if err := plugin.Apply(PluginAPI{router: r}); err != nil {
		errs.ConfigPanic("wsrouter: plugin %q failed to apply: %v", name, err)
	}
	return r
}

// Capabilities returns the bitwise union of every applied plugin's marker.
func (r *Router) Capabilities() Capability {
	return r.capabilities
}

// ValidateOutbound runs the router's outbound validator (installed by the
// validation plugin, if applied) against schemaInstance/payload. It is a
// no-op returning nil when no validation plugin is active, so other
// plugins (e.g. pub/sub) can call it unconditionally.
func (a PluginAPI) ValidateOutbound(schemaInstance any, payload any, code errs.Code) error {
	return a.router.validateOutbound(schemaInstance, payload, code)
}

func (r *Router) validateOutbound(schemaInstance any, payload any, code errs.Code) error {
	if r.outboundValidator == nil {
		return nil
	}
	return r.outboundValidator(schemaInstance, payload, code)
}
