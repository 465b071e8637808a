package wsrouter

import (
	"context"
	"time"

	"github.com/wsrouter/wsrouter/errs"
	"github.com/wsrouter/wsrouter/lifecycle"
	"github.com/wsrouter/wsrouter/recovery"
)

// HandleMessage runs one inbound frame through the full dispatch pipeline:
// decode, classify, system short-circuit, lookup, admit, build context,
// compose the middleware chain, execute, finalize. A single connection's
// frames are expected to arrive here one at a time, in order; this method
// does not itself serialize concurrent calls for the same clientID, since
// the adapter's one read-loop goroutine per connection is what provides
// that guarantee.
func (r *Router) HandleMessage(clientID string, frame []byte) {
	v, ok := r.connections.Load(clientID)
	if !ok {
		return
	}
	conn := v.(*connection)
	if conn.closed.Load() {
		return
	}

	start := time.Now()
	defer func() {
		r.config.Metrics.ObserveHistogram("dispatch_duration_seconds", time.Since(start))
	}()

	// 1. Decode: a JSON syntax failure is PARSE_ERROR. A value that parses
	// but isn't a JSON object (42, "x", [1,2], null) is a classify failure,
	// not a decode failure, so it is decoded into `any` first and
	// type-checked in step 2 rather than unmarshaled straight into a map
	// (which would make the two conditions indistinguishable).
	if r.config.Limits.MaxPayloadBytes > 0 && len(frame) > r.config.Limits.MaxPayloadBytes {
		r.routeError(errs.New(errs.PayloadTooLarge, "frame exceeds configured maximum payload size"), nil)
		return
	}
	var decoded any
	if err := r.config.Codec.Unmarshal(frame, &decoded); err != nil {
		r.routeError(errs.Wrap(errs.ParseError, "failed to parse frame", err), nil)
		return
	}

	// 2. Classify
	raw, ok := decoded.(map[string]any)
	if !ok {
		r.routeError(errs.New(errs.InvalidEnvelope, "frame is not a JSON object"), nil)
		return
	}
	typ, _ := raw["type"].(string)
	if typ == "" {
		r.routeError(errs.New(errs.InvalidEnvelope, "frame is missing a string \"type\""), nil)
		return
	}
	meta, _ := raw["meta"].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}
	var payload []byte
	if p, ok := raw["payload"]; ok && p != nil {
		payload, _ = r.config.Codec.Marshal(p)
	}

	// 3. System short-circuit
	switch typ {
	case "__heartbeat":
		r.handleHeartbeat(conn)
		return
	case "__close":
		conn.touch()
		_ = conn.transport.Close(1000, "client requested close")
		return
	}
	if isReserved(typ) {
		r.routeError(errs.New(errs.ReservedType, "type "+typ+" is a reserved prefix not addressable by user handlers"), nil)
		return
	}

	conn.touch()
	r.config.Metrics.IncCounter("dispatch_messages_total", typ)

	_, span := r.config.Tracer.StartSpan(context.Background(), "dispatch")
	defer span.End()

	// 4. Lookup
	entry, found := r.routes.Get(typ)
	if !found {
		err := errs.New(errs.NoHandler, "no handler registered for type "+typ)
		r.routeError(err, nil)
		span.RecordError(err)
		return
	}

	// 5. Admit
	if !conn.inflight.Admit() {
		err := errs.New(errs.Backpressure, "too many in-flight dispatches for this connection")
		r.routeError(err, nil)
		span.RecordError(err)
		return
	}
	defer conn.inflight.Release()

	// 6. Build context, run enhancers
	dctx := newContext(r, conn, typ, meta, raw, payload, entry.Schema)
	if err := recovery.Call(func() error { return r.enhancers.run(dctx) }); err != nil {
		r.routeError(classifyErr(err), dctx)
		span.RecordError(err)
		r.finalize(dctx, err)
		return
	}

	// 7. Compose middleware chain
	next := composeChain(r.globalMiddleware, entry.Middleware, entry.Handler)

	// 8. Execute, recovering handler panics
	execErr := recovery.Call(func() error { return next(dctx) })
	if execErr != nil {
		r.routeError(classifyErr(execErr), dctx)
		span.RecordError(execErr)
	}

	// 9. Finalize
	r.finalize(dctx, execErr)
}

func (r *Router) finalize(ctx *Context, err error) {
	// Release the per-cid outbound handle; cross-dispatch terminal dedup is
	// the RPC manager's job, the handle only guards within one dispatch.
	if ctx.CorrelationID != "" {
		ctx.conn.dropRPCHandle(ctx.CorrelationID)
	}
	r.observers.EmitMessage(lifecycle.MessageEvent{ClientID: ctx.ClientID, Type: ctx.Type, Err: err})
}

func classifyErr(err error) *errs.RouterError {
	if re, ok := err.(*errs.RouterError); ok {
		return re
	}
	return errs.Wrap(errs.State, "dispatch error", err)
}

func (r *Router) handleHeartbeat(conn *connection) {
	conn.touch()
	frame := outboundFrame{
		Type: "__heartbeat_ack",
		Meta: map[string]any{"ts": time.Now().UnixMilli()},
	}
	body, err := r.config.Codec.Marshal(frame)
	if err != nil {
		return
	}
	if err := conn.transport.Send(body); err != nil {
		r.routeError(errs.Wrap(errs.SendError, "heartbeat ack send failed", err), nil)
	}
}
