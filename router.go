// Package wsrouter implements a transport-agnostic WebSocket message
// dispatch runtime: a route table keyed by message type, a plugin host
// exposing optional RPC and pub/sub capabilities, and a correlation-id
// lifecycle manager for request/response-style exchanges over a
// full-duplex socket.
package wsrouter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wsrouter/wsrouter/errs"
	"github.com/wsrouter/wsrouter/limits"
	"github.com/wsrouter/wsrouter/lifecycle"
	"github.com/wsrouter/wsrouter/logging"
	"github.com/wsrouter/wsrouter/pubsub"
	"github.com/wsrouter/wsrouter/rpc"
	"github.com/wsrouter/wsrouter/schema"
)

// ErrorHandler receives every error routed to the lifecycle sink: parse
// failures, validation failures, middleware/handler/enhancer errors,
// adapter errors. ctx is nil when the error occurred before a Context could
// be built (decode/classify failures).
type ErrorHandler func(err *errs.RouterError, ctx *Context)

// TopicHooks optionally wraps topic subscribe/unsubscribe with
// normalization, authorization, and post-operation lifecycle notification.
type TopicHooks struct {
	Normalize        func(topic string) string
	Authorize        func(ctx *Context, topic string, subscribing bool) error
	AuthorizePublish func(ctx *Context, topic string) error
	OnSubscribed     func(ctx *Context, topic string)
	OnUnsubscribed   func(ctx *Context, topic string)
}

// Router is the top-level dispatch engine. It is safe for concurrent use by
// multiple connections; a single connection's own dispatches are always
// serialized by its one read-loop goroutine.
type Router struct {
	config Config

	routes           *RouteTable
	globalMiddleware []Middleware
	enhancers        *enhancerChain

	pluginMu       sync.Mutex
	appliedPlugins map[string]bool
	capabilities   Capability

	rpcRegister       func(schemaInstance any, middleware []Middleware, handler HandlerFunc)
	publishFn         func(topic string, schemaInstance any, payload any, opts ...PublishOpt) PublishResult
	outboundValidator func(schemaInstance any, payload any, code errs.Code) error

	rpc       *rpc.Manager
	observers *lifecycle.Observers
	errorSink ErrorHandler

	connections sync.Map // clientID string -> *connection

	pubsubAdapter  pubsub.Adapter
	topicValidator limits.TopicValidator
	topicHooks     TopicHooks
	topicMembersMu sync.Mutex
	topicMembers   map[string]map[string]struct{}

	sealed atomic.Bool
}

// New constructs a Router from functional options.
func New(opts ...Option) *Router {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Router{
		config:         cfg,
		routes:         newRouteTable(),
		enhancers:      newEnhancerChain(),
		appliedPlugins: make(map[string]bool),
		topicMembers:   make(map[string]map[string]struct{}),
		topicValidator: limits.TopicValidator{
			Pattern:   cfg.Limits.TopicPattern,
			MaxLength: cfg.Limits.MaxTopicLength,
		},
		errorSink: func(err *errs.RouterError, ctx *Context) {
			cfg.Logger.Error("unhandled router error", logging.Err(err))
		},
	}
	r.observers = lifecycle.NewObservers(func(err error) {
		r.config.Logger.Warn("observer callback panicked", logging.Err(err))
	})
	r.rpc = rpc.NewManager(rpc.Config{
		MaxInflightPerSocket:  cfg.RPC.MaxInflightPerSocket,
		IdleTimeout:           msDuration(cfg.RPC.IdleTimeoutMs),
		DedupWindow:           msDuration(cfg.RPC.DedupWindowMs),
		CleanupCadence:        msDuration(cfg.RPC.CleanupCadenceMs),
		MaxRecentlyTerminated: 10_000,
		Logger:                cfg.Logger,
	})
	return r
}

// On registers a handler (and optional route-scoped middleware) for typ.
// Registering a reserved-prefix type or a duplicate type is a programmer
// error and panics.
func (r *Router) On(schemaInstance any, handler HandlerFunc, middleware ...Middleware) *Router {
	typ := mustSchemaType(schemaInstance)
	r.routes.Register(&RouteEntry{Type: typ, Schema: schemaInstance, Middleware: middleware, Handler: handler})
	return r
}

// UseMiddleware appends a global middleware, run before every route's own
// middleware.
func (r *Router) UseMiddleware(mw Middleware) *Router {
	r.globalMiddleware = append(r.globalMiddleware, mw)
	return r
}

// OnError installs the lifecycle error sink. Only one sink is active at a
// time; the most recent call wins.
func (r *Router) OnError(fn ErrorHandler) *Router {
	r.errorSink = fn
	return r
}

// Observe subscribes to completed-dispatch events.
func (r *Router) Observe(fn func(lifecycle.MessageEvent)) func() {
	return r.observers.OnMessage(fn)
}

// ObserveOpen subscribes to connection-open events.
func (r *Router) ObserveOpen(fn func(lifecycle.OpenEvent)) func() {
	return r.observers.OnOpen(fn)
}

// ObserveClose subscribes to connection-close events.
func (r *Router) ObserveClose(fn func(lifecycle.CloseEvent)) func() {
	return r.observers.OnClose(fn)
}

// ObservePublish subscribes to publish-attempt events.
func (r *Router) ObservePublish(fn func(lifecycle.PublishEvent)) func() {
	return r.observers.OnPublish(fn)
}

// Merge copies every route from other into r according to policy.
func (r *Router) Merge(other *Router, policy MergePolicy) *Router {
	r.routes.Merge(other.routes, policy)
	return r
}

// Mount merges other's routes into r with every type prefixed.
func (r *Router) Mount(prefix string, other *Router, policy MergePolicy) *Router {
	r.routes.Mount(prefix, other.routes, policy)
	return r
}

// Rpc registers an RPC-kind schema's handler. Requires the RPC/validation
// capability and a schema of KindRPC with a Response schema present;
// violating either is a configuration-time panic.
func (r *Router) Rpc(schemaInstance any, handler HandlerFunc, middleware ...Middleware) *Router {
	if r.rpcRegister == nil {
		errs.ConfigPanic("wsrouter: Rpc called with no validation plugin applied")
	}
	r.rpcRegister(schemaInstance, middleware, handler)
	return r
}

func mustSchemaType(schemaInstance any) string {
	typ := schemaTypeOf(schemaInstance)
	if typ == "" {
		errs.ConfigPanic("wsrouter: schema has no registered wire type")
	}
	return typ
}

func (r *Router) routeError(err error, ctx *Context) {
	re, ok := err.(*errs.RouterError)
	if !ok {
		re = errs.Wrap(errs.State, "unclassified error", err)
	}
	var clientID string
	if ctx != nil {
		clientID = ctx.ClientID
	}
	r.observers.EmitError(lifecycle.ErrorEvent{ClientID: clientID, Err: re})
	if r.errorSink != nil {
		r.errorSink(re, ctx)
	}
}

// HandleOpen registers a new connection and returns the clientID the
// adapter must pass to subsequent HandleMessage/HandleClose calls. seed, if
// non-nil, pre-populates the connection's assigns (the adapter's chance to
// attach identity established at upgrade time), readable from handlers via
// GetAssign.
func (r *Router) HandleOpen(transport Transport, seed map[string]any) string {
	clientID := newClientID()
	conn := newConnection(clientID, transport, limits.NewInflight(r.config.Limits.MaxPending))
	for k, v := range seed {
		conn.Assign(k, v)
	}
	r.connections.Store(clientID, conn)
	r.observers.EmitOpen(lifecycle.OpenEvent{ClientID: clientID})
	r.startHeartbeatWatcher(conn)
	return clientID
}

// HandleClose tears down a connection: aborts its in-flight RPCs, clears
// its pub/sub membership, and notifies observers.
func (r *Router) HandleClose(clientID string, code int, reason string) {
	v, ok := r.connections.LoadAndDelete(clientID)
	if !ok {
		return
	}
	conn := v.(*connection)
	conn.closed.Store(true)

	r.rpc.OnDisconnect(clientID)

	for _, topic := range conn.listTopics() {
		r.removeTopicMember(topic, clientID)
		if r.pubsubAdapter != nil {
			_ = r.pubsubAdapter.Unsubscribe(context.Background(), clientID, topic)
		}
	}

	r.observers.EmitClose(lifecycle.CloseEvent{ClientID: clientID, Code: code, Reason: reason})
}

// Close stops the router's background RPC idle sweeper. Call once during
// host process shutdown.
func (r *Router) Close() {
	r.rpc.Close()
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func schemaTypeOf(schemaInstance any) string {
	return schema.TypeOf(schemaInstance)
}
