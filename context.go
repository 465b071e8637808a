package wsrouter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wsrouter/wsrouter/errs"
	"github.com/wsrouter/wsrouter/schema"
)

// reservedMetaKeys are stripped from client-supplied meta before the router
// repopulates them with server-trusted values.
var reservedMetaKeys = map[string]struct{}{
	"clientId":   {},
	"receivedAt": {},
}

func sanitizeMeta(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if _, reserved := reservedMetaKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	return out
}

// Context is built fresh for each inbound dispatch and is not retained
// across messages. Plugins attach state under Extensions[pluginKey]. Direct
// assignment onto Context's exported fields is not detected: no check runs
// and no warning is logged for it.
type Context struct {
	ClientID      string
	Type          string
	Meta          map[string]any
	Payload       []byte
	CorrelationID string
	ReceivedAt    time.Time

	Extensions map[string]any

	// err is not set anywhere in the router: the core error enhancer
	// (Priority -1000) is a no-op, and handlers report RPC errors through
	// the ctx.Error(...) outbound method instead.
	err error

	router      *Router
	conn        *connection
	raw         map[string]any
	routeSchema any
}

// RouteSchema returns the schema instance the dispatched message's route
// was registered with.
func (ctx *Context) RouteSchema() any { return ctx.routeSchema }

func newContext(r *Router, c *connection, typ string, meta, raw map[string]any, payload []byte, routeSchema any) *Context {
	cleanMeta := sanitizeMeta(meta)
	cleanMeta["clientId"] = c.clientID
	now := time.Now()
	cleanMeta["receivedAt"] = now.UnixMilli()

	cid, _ := meta["correlationId"].(string)

	return &Context{
		ClientID:      c.clientID,
		Type:          typ,
		Meta:          cleanMeta,
		Payload:       payload,
		CorrelationID: cid,
		ReceivedAt:    now,
		Extensions:    make(map[string]any),
		router:        r,
		conn:          c,
		raw:           raw,
		routeSchema:   routeSchema,
	}
}

// BindPayload unmarshals the raw inbound payload into out.
func (ctx *Context) BindPayload(out any) error {
	if len(ctx.Payload) == 0 {
		return nil
	}
	return ctx.router.config.Codec.Unmarshal(ctx.Payload, out)
}

// Assign stores a value on the underlying connection, surviving across
// messages (unlike Extensions, which is per-dispatch).
func (ctx *Context) Assign(key string, value any) { ctx.conn.Assign(key, value) }

// GetAssign retrieves a value previously stored with Assign.
func (ctx *Context) GetAssign(key string) (any, bool) { return ctx.conn.GetAssign(key) }

// Cancellation returns the context.Context that is tripped when this
// dispatch's correlation id (if any) is aborted, disconnected, or times out.
// A message without a correlationId gets context.Background(); a
// correlationId the RPC manager has not admitted, or that is already
// terminal, gets an already-Done context.
func (ctx *Context) Cancellation() context.Context {
	if ctx.CorrelationID == "" || ctx.router.rpc == nil {
		return context.Background()
	}
	return ctx.router.rpc.CancellationContext(ctx.ClientID, ctx.CorrelationID)
}

// SendOpts configures an outbound call.
type SendOpts struct {
	WaitFor             chan error
	PreserveCorrelation bool
	Signal              context.Context
	ThrottleMs          int
}

// SendOpt mutates SendOpts, functional-options style.
type SendOpt func(*SendOpts)

// WaitFor supplies a channel that receives the transport-level send error.
func WaitFor(ch chan error) SendOpt { return func(o *SendOpts) { o.WaitFor = ch } }

// PreserveCorrelation copies the inbound correlationId onto the outbound
// frame's meta.
func PreserveCorrelation() SendOpt { return func(o *SendOpts) { o.PreserveCorrelation = true } }

// WithSignal ties the outbound call to a cancellation context; if already
// Done when the frame would be written, no frame is emitted. Reply and Error
// still consume their one-shot guard and mark the RPC terminal in that case.
func WithSignal(ctx context.Context) SendOpt { return func(o *SendOpts) { o.Signal = ctx } }

// WithThrottle coalesces repeated Progress calls within the window.
func WithThrottle(ms int) SendOpt { return func(o *SendOpts) { o.ThrottleMs = ms } }

func buildSendOpts(opts []SendOpt) SendOpts {
	var o SendOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (ctx *Context) signalDone(o SendOpts) bool {
	if o.Signal == nil {
		return false
	}
	select {
	case <-o.Signal.Done():
		return true
	default:
		return false
	}
}

type outboundFrame struct {
	Type    string          `json:"type"`
	Meta    map[string]any  `json:"meta,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (ctx *Context) emit(typ string, payload any, meta map[string]any, o SendOpts) error {
	if ctx.signalDone(o) {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		err = errs.Wrap(errs.SerializationError, "failed to marshal outbound payload", err)
		ctx.router.routeError(err, ctx)
		return err
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if _, ok := meta["timestamp"]; !ok {
		meta["timestamp"] = time.Now().UnixMilli()
	}
	frame := outboundFrame{Type: typ, Meta: meta, Payload: raw}
	body, err := json.Marshal(frame)
	if err != nil {
		err = errs.Wrap(errs.SerializationError, "failed to marshal outbound frame", err)
		ctx.router.routeError(err, ctx)
		return err
	}
	sendErr := ctx.conn.transport.Send(body)
	if sendErr != nil {
		sendErr = errs.Wrap(errs.SendError, "transport send failed", sendErr)
		ctx.router.routeError(sendErr, ctx)
	}
	if o.WaitFor != nil {
		o.WaitFor <- sendErr
	}
	return sendErr
}

// Send unicasts schema/payload to the current connection. Fire-and-forget
// unless opts.WaitFor is set.
func (ctx *Context) Send(schemaInstance any, payload any, opts ...SendOpt) error {
	o := buildSendOpts(opts)
	typ := schema.TypeOf(schemaInstance)
	meta := map[string]any{}
	if o.PreserveCorrelation && ctx.CorrelationID != "" {
		meta["correlationId"] = ctx.CorrelationID
	}
	if v := ctx.router.validateOutbound(schemaInstance, payload, errs.OutboundValidationError); v != nil {
		ctx.router.routeError(v, ctx)
		return v
	}
	return ctx.emit(typ, payload, meta, o)
}

func (ctx *Context) handle() *rpcHandle {
	return ctx.conn.rpcHandleFor(ctx.CorrelationID)
}

// responseSchema returns the RPC route's declared Response schema, or nil
// if the route wasn't registered with one (e.g. a plain event route, or an
// RPC route registered without the validation plugin's descriptor present).
func (ctx *Context) responseSchema() any {
	if ctx.routeSchema == nil {
		return nil
	}
	d, ok := schema.Describe(ctx.routeSchema)
	if !ok {
		return nil
	}
	return d.Response
}

// replyType resolves the wire type Reply emits under: the RPC route's
// declared Response schema. Falls back to "$ws:rpc-reply" if the route
// schema has no registered Response (e.g. a bare RPC registered without
// the validation plugin's descriptor lookup available).
func (ctx *Context) replyType() string {
	if resp := ctx.responseSchema(); resp != nil {
		if t := schema.TypeOf(resp); t != "" {
			return t
		}
	}
	return "$ws:rpc-reply"
}

// isTerminalRPC reports whether this dispatch's correlation id has already
// seen a terminal Reply/Error (or was aborted), within the dedup window.
func (ctx *Context) isTerminalRPC() bool {
	return ctx.router.rpc != nil && ctx.router.rpc.IsTerminal(ctx.ClientID, ctx.CorrelationID)
}

// Reply sends the terminal RPC response. Idempotent after the first call.
func (ctx *Context) Reply(payload any, opts ...SendOpt) error {
	if ctx.CorrelationID == "" {
		return errs.New(errs.State, "Reply called outside an RPC dispatch")
	}
	if ctx.isTerminalRPC() {
		return nil
	}
	o := buildSendOpts(opts)
	var sendErr error
	h := ctx.handle()
	h.repliedOnce.Do(func() {
		defer func() {
			if ctx.router.rpc != nil {
				ctx.router.rpc.OnTerminal(ctx.ClientID, ctx.CorrelationID)
			}
		}()
		// A failed outbound validation consumes the one-shot guard and still
		// terminates the RPC for dedup purposes; only the frame is withheld.
		if v := ctx.router.validateOutbound(ctx.responseSchema(), payload, errs.ReplyValidationError); v != nil {
			ctx.router.routeError(v, ctx)
			sendErr = v
			return
		}
		meta := map[string]any{"correlationId": ctx.CorrelationID}
		sendErr = ctx.emit(ctx.replyType(), payload, meta, o)
	})
	return sendErr
}

// Progress sends a non-terminal RPC progress frame, optionally throttled.
func (ctx *Context) Progress(payload any, opts ...SendOpt) error {
	if ctx.CorrelationID == "" {
		return errs.New(errs.State, "Progress called outside an RPC dispatch")
	}
	if ctx.isTerminalRPC() {
		return nil
	}
	o := buildSendOpts(opts)
	h := ctx.handle()

	if o.ThrottleMs > 0 {
		h.mu.Lock()
		now := time.Now()
		if !h.lastProgress.IsZero() && now.Sub(h.lastProgress) < time.Duration(o.ThrottleMs)*time.Millisecond {
			h.mu.Unlock()
			return nil
		}
		h.lastProgress = now
		h.mu.Unlock()
	}

	if v := ctx.router.validateOutbound(nil, payload, errs.ProgressValidationError); v != nil {
		ctx.router.routeError(v, ctx)
		return v
	}
	meta := map[string]any{"correlationId": ctx.CorrelationID}
	if ctx.router.rpc != nil {
		ctx.router.rpc.OnProgress(ctx.ClientID, ctx.CorrelationID)
	}
	return ctx.emit("$ws:rpc-progress", payload, meta, o)
}

// Publish broadcasts payload under schemaInstance's wire type to every
// subscriber of topic, from within a dispatch. Runs the AuthorizePublish
// hook (if installed) before delegating to the router-level Publish;
// authorization failures are reported as an ACL_PUBLISH result, never a
// panic, since they are runtime conditions.
func (ctx *Context) Publish(topic string, schemaInstance any, payload any, opts ...PublishOpt) PublishResult {
	if hook := ctx.router.topicHooks.AuthorizePublish; hook != nil {
		if err := hook(ctx, topic); err != nil {
			aclErr := errs.Wrap(errs.ACLPublish, "publish not authorized", err)
			ctx.router.routeError(aclErr, ctx)
			return PublishResult{Ok: false, Error: errs.ACLPublish, Cause: aclErr}
		}
	}
	return ctx.router.Publish(topic, schemaInstance, payload, opts...)
}

// Error sends a terminal RPC error frame. Subject to the same one-shot
// guard as Reply.
func (ctx *Context) Error(code errs.Code, message string, details any, opts ...SendOpt) error {
	if ctx.CorrelationID == "" {
		return errs.New(errs.State, "Error called outside an RPC dispatch")
	}
	if ctx.isTerminalRPC() {
		return nil
	}
	o := buildSendOpts(opts)
	var sendErr error
	h := ctx.handle()
	h.repliedOnce.Do(func() {
		meta := map[string]any{"correlationId": ctx.CorrelationID}
		payload := map[string]any{"code": code, "message": message}
		if details != nil {
			payload["details"] = details
		}
		sendErr = ctx.emit("$ws:rpc-error", payload, meta, o)
		if ctx.router.rpc != nil {
			ctx.router.rpc.OnTerminal(ctx.ClientID, ctx.CorrelationID)
		}
	})
	return sendErr
}
