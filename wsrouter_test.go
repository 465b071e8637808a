package wsrouter_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsrouter/wsrouter"
	"github.com/wsrouter/wsrouter/errs"
	"github.com/wsrouter/wsrouter/lifecycle"
	"github.com/wsrouter/wsrouter/plugins/pubsubplugin"
	"github.com/wsrouter/wsrouter/plugins/validation"
	"github.com/wsrouter/wsrouter/pubsub/memory"
	"github.com/wsrouter/wsrouter/schema"
	"github.com/wsrouter/wsrouter/validate"
	"github.com/wsrouter/wsrouter/wstest"
)

// permissiveAdapter is a validate.Adapter that accepts every payload, used
// to exercise the RPC admission path (Router.Rpc) without depending on
// wsrouter/validate/structvalidator's tag semantics.
type permissiveAdapter struct{}

func (permissiveAdapter) MessageType(schemaInstance any) string {
	return schema.TypeOf(schemaInstance)
}

func (permissiveAdapter) SafeParse(schemaInstance any, data []byte) validate.ParseResult {
	return validate.ParseResult{Ok: true}
}

type pingMsg struct{}

func init() {
	schema.Register(pingMsg{}, schema.Descriptor{Type: "PING", Kind: schema.KindEvent})
}

func TestUnknownTypeRoutesNoHandler(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	var got *errs.RouterError
	r.OnError(func(err *errs.RouterError, ctx *wsrouter.Context) { got = err })

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)

	r.HandleMessage(clientID, wstest.Envelope("NOT_REGISTERED", nil, nil))

	require.NotNil(t, got)
	assert.Equal(t, errs.NoHandler, got.Code)
}

func TestNonObjectFrameRoutesInvalidEnvelope(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	var got *errs.RouterError
	r.OnError(func(err *errs.RouterError, ctx *wsrouter.Context) { got = err })

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)

	// A syntactically valid JSON value that isn't an object is a classify
	// failure (INVALID_ENVELOPE), distinct from malformed JSON (PARSE_ERROR).
	r.HandleMessage(clientID, []byte(`[1,2,3]`))

	require.NotNil(t, got)
	assert.Equal(t, errs.InvalidEnvelope, got.Code)
}

func TestMalformedJSONRoutesParseError(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	var got *errs.RouterError
	r.OnError(func(err *errs.RouterError, ctx *wsrouter.Context) { got = err })

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)

	r.HandleMessage(clientID, []byte(`{not valid json`))

	require.NotNil(t, got)
	assert.Equal(t, errs.ParseError, got.Code)
}

func TestReservedPrefixInboundTypeRoutesReservedType(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	var got *errs.RouterError
	r.OnError(func(err *errs.RouterError, ctx *wsrouter.Context) { got = err })

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)

	r.HandleMessage(clientID, wstest.Envelope("$ws:rpc-progress", nil, nil))

	require.NotNil(t, got)
	assert.Equal(t, errs.ReservedType, got.Code, "a reserved-prefix type other than the two recognized system messages is RESERVED_TYPE, not NO_HANDLER")
}

func TestMiddlewareOrderingWrapsAroundHandler(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	var order []string
	a := func(ctx *wsrouter.Context, next wsrouter.Next) error {
		order = append(order, "A:before")
		err := next(ctx)
		order = append(order, "A:after")
		return err
	}
	b := func(ctx *wsrouter.Context, next wsrouter.Next) error {
		order = append(order, "B:before")
		err := next(ctx)
		order = append(order, "B:after")
		return err
	}
	r.UseMiddleware(a)
	r.On(pingMsg{}, func(ctx *wsrouter.Context) error {
		order = append(order, "H")
		return nil
	}, b)

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))

	assert.Equal(t, []string{"A:before", "B:before", "H", "B:after", "A:after"}, order)
}

func TestHeartbeatRoundTrip(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)

	r.HandleMessage(clientID, wstest.Envelope("__heartbeat", nil, nil))

	last, ok := sock.Last()
	require.True(t, ok)
	assert.Equal(t, "__heartbeat_ack", last.Type)
}

func TestHeartbeatIntervalSendsServerProbe(t *testing.T) {
	r := wsrouter.New(wsrouter.WithHeartbeat(10*time.Millisecond, 0))
	defer r.Close()

	sock := wstest.NewSocket()
	wstest.Open(r, sock, nil)

	// A server-side probe is sent on Heartbeat.IntervalMs even though the
	// client has never spoken; wait a few cycles past the interval.
	require.Eventually(t, func() bool {
		for _, f := range sock.Sent() {
			if f.Type == "__heartbeat" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "expected at least one server-initiated __heartbeat probe")
}

type echoRPC struct{}
type echoResp struct{ Value string }

func init() {
	schema.Register(echoResp{}, schema.Descriptor{Type: "ECHO_RESPONSE", Kind: schema.KindEvent})
	schema.Register(echoRPC{}, schema.Descriptor{Type: "ECHO", Kind: schema.KindRPC, Response: echoResp{}})
}

func TestRPCReplyIsIdempotentAfterFirstCall(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()
	r.Use(validation.New(permissiveAdapter{}))

	callCount := 0
	r.Rpc(echoRPC{}, func(ctx *wsrouter.Context) error {
		callCount++
		ctx.Reply(map[string]string{"value": "first"})
		return ctx.Reply(map[string]string{"value": "second"})
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("ECHO", map[string]any{"correlationId": "cid-1"}, nil))

	frames := sock.Sent()
	require.Len(t, frames, 1, "Reply must be a one-shot guard: only the first call may send a frame")

	var payload map[string]string
	require.NoError(t, json.Unmarshal(frames[0].Payload, &payload))
	assert.Equal(t, "first", payload["value"])
	assert.Equal(t, 1, callCount)
}

func TestRPCReplyUsesResponseSchemaWireType(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()
	r.Use(validation.New(permissiveAdapter{}))

	r.Rpc(echoRPC{}, func(ctx *wsrouter.Context) error {
		return ctx.Reply(map[string]string{"value": "a"})
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("ECHO", map[string]any{"correlationId": "c1"}, nil))

	last, ok := sock.Last()
	require.True(t, ok)
	assert.Equal(t, "ECHO_RESPONSE", last.Type, "Reply must emit under the RPC route's Response schema type, not a generic control type")
	assert.Equal(t, "c1", last.Meta["correlationId"])
}

func TestRPCCancelOnDisconnectTripsHandlerContext(t *testing.T) {
	r := wsrouter.New(wsrouter.WithRPC(wsrouter.RPCConfig{MaxInflightPerSocket: 8}))
	defer r.Close()
	r.Use(validation.New(permissiveAdapter{}))

	cancelled := make(chan struct{}, 1)
	r.Rpc(echoRPC{}, func(ctx *wsrouter.Context) error {
		select {
		case <-ctx.Cancellation().Done():
			cancelled <- struct{}{}
		case <-time.After(2 * time.Second):
		}
		return nil
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)

	done := make(chan struct{})
	go func() {
		r.HandleMessage(clientID, wstest.Envelope("ECHO", map[string]any{"correlationId": "cid-1"}, nil))
		close(done)
	}()

	// Give the handler goroutine a moment to start selecting on Cancellation.
	time.Sleep(20 * time.Millisecond)
	r.HandleClose(clientID, 1001, "going away")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("expected disconnect to trip the RPC's cancellation context")
	}
	<-done
}

func TestMaxPendingBackpressureRejectsOverCeiling(t *testing.T) {
	r := wsrouter.New(wsrouter.WithLimits(wsrouter.LimitsConfig{MaxPending: 1, MaxPayloadBytes: 1 << 20}))
	defer r.Close()

	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	r.On(pingMsg{}, func(ctx *wsrouter.Context) error {
		entered <- struct{}{}
		<-release
		return nil
	})

	var errsSeen []*errs.RouterError
	r.OnError(func(err *errs.RouterError, ctx *wsrouter.Context) { errsSeen = append(errsSeen, err) })

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)

	go r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))
	<-entered
	r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))
	close(release)

	require.Len(t, errsSeen, 1)
	assert.Equal(t, errs.Backpressure, errsSeen[0].Code)
}

func TestPayloadTooLargeIsRejectedBeforeDecode(t *testing.T) {
	r := wsrouter.New(wsrouter.WithLimits(wsrouter.LimitsConfig{MaxPending: 8, MaxPayloadBytes: 16}))
	defer r.Close()

	var got *errs.RouterError
	r.OnError(func(err *errs.RouterError, ctx *wsrouter.Context) { got = err })

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)

	big := wstest.Envelope("PING", nil, map[string]string{"padding": "this payload is deliberately long enough to exceed the configured ceiling"})
	r.HandleMessage(clientID, big)

	require.NotNil(t, got)
	assert.Equal(t, errs.PayloadTooLarge, got.Code)
}

func TestSendUnicastsToCurrentConnection(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	r.On(pingMsg{}, func(ctx *wsrouter.Context) error {
		return ctx.Send(echoResp{}, map[string]string{"value": "pong"})
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))

	last, ok := sock.Last()
	require.True(t, ok)
	assert.Equal(t, "ECHO_RESPONSE", last.Type)
}

func TestHandleCloseIsIdempotentForUnknownClient(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()
	assert.NotPanics(t, func() { r.HandleClose("never-opened", 1000, "noop") })
}

func TestAssignPersistsAcrossMessagesOnTheSameConnection(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	var lastSeen int
	r.On(pingMsg{}, func(ctx *wsrouter.Context) error {
		count, _ := ctx.GetAssign("hits")
		n, _ := count.(int)
		n++
		ctx.Assign("hits", n)
		lastSeen = n
		return nil
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))
	r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))
	r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))

	assert.Equal(t, 3, lastSeen, "Assign must persist across dispatches on the same connection, unlike Extensions")
}

// testPlugin is a minimal wsrouter.Plugin for exercising the host contract.
type testPlugin struct {
	name  string
	apply func(api wsrouter.PluginAPI) error
}

func (p *testPlugin) Name() string                       { return p.name }
func (p *testPlugin) Apply(api wsrouter.PluginAPI) error { return p.apply(api) }

func TestPluginApplicationIsIdempotent(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	applies := 0
	p := &testPlugin{name: "counting", apply: func(api wsrouter.PluginAPI) error {
		applies++
		api.AddCapability(wsrouter.CapPubSub)
		return nil
	}}

	r.Use(p)
	r.Use(p)

	assert.Equal(t, 1, applies, "a plugin applied twice is applied once")
	assert.True(t, r.Capabilities().Has(wsrouter.CapPubSub))
}

func TestMiddlewareDoubleNextIsAProgrammingError(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	var errsSeen []*errs.RouterError
	r.OnError(func(err *errs.RouterError, ctx *wsrouter.Context) { errsSeen = append(errsSeen, err) })

	r.UseMiddleware(func(ctx *wsrouter.Context, next wsrouter.Next) error {
		if err := next(ctx); err != nil {
			return err
		}
		return next(ctx)
	})

	handlerRuns := 0
	r.On(pingMsg{}, func(ctx *wsrouter.Context) error {
		handlerRuns++
		return nil
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))

	assert.Equal(t, 1, handlerRuns, "the chain must not re-run on a second next()")
	require.NotEmpty(t, errsSeen)
	for _, e := range errsSeen {
		assert.Equal(t, errs.State, e.Code)
	}
}

func TestEnhancerPriorityOrdersWithRegistrationTiebreak(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	var ran []string
	record := func(label string) wsrouter.EnhancerFunc {
		return func(ctx *wsrouter.Context) error {
			ran = append(ran, label)
			return nil
		}
	}
	r.Use(&testPlugin{name: "enhancers", apply: func(api wsrouter.PluginAPI) error {
		api.RegisterEnhancer(record("p10-first"), 10)
		api.RegisterEnhancer(record("neg5"), -5)
		api.RegisterEnhancer(record("p10-second"), 10)
		return nil
	}})

	r.On(pingMsg{}, func(ctx *wsrouter.Context) error { return nil })

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))

	assert.Equal(t, []string{"neg5", "p10-first", "p10-second"}, ran,
		"lower priority runs first; equal priorities keep registration order")
}

func TestReservedMetaKeysAreStrippedFromClientMeta(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	var gotClientID, gotReceivedAt any
	r.On(pingMsg{}, func(ctx *wsrouter.Context) error {
		gotClientID = ctx.Meta["clientId"]
		gotReceivedAt = ctx.Meta["receivedAt"]
		return nil
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	forged := map[string]any{"clientId": "spoofed", "receivedAt": "spoofed"}
	r.HandleMessage(clientID, wstest.Envelope("PING", forged, nil))

	assert.Equal(t, clientID, gotClientID, "client-supplied clientId must be replaced with the server's")
	_, isEpochMs := gotReceivedAt.(int64)
	assert.True(t, isEpochMs, "client-supplied receivedAt must be replaced with the server ingress time")
}

func TestOutboundFramesCarryServerTimestamp(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	r.On(pingMsg{}, func(ctx *wsrouter.Context) error {
		return ctx.Send(echoResp{}, map[string]string{"value": "pong"})
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))

	last, ok := sock.Last()
	require.True(t, ok)
	ts, ok := last.Meta["timestamp"].(float64)
	require.True(t, ok, "a server timestamp is auto-injected when the caller supplies none")
	assert.Greater(t, ts, float64(0))
}

func TestProgressThrottleCoalescesUpdates(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()
	r.Use(validation.New(permissiveAdapter{}))

	r.Rpc(echoRPC{}, func(ctx *wsrouter.Context) error {
		for pct := 10; pct <= 30; pct += 10 {
			require.NoError(t, ctx.Progress(map[string]int{"pct": pct}, wsrouter.WithThrottle(60_000)))
		}
		return ctx.Reply(map[string]string{"value": "done"})
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("ECHO", map[string]any{"correlationId": "c1"}, nil))

	progress := 0
	for _, f := range sock.Sent() {
		if f.Type == "$ws:rpc-progress" {
			progress++
		}
	}
	assert.Equal(t, 1, progress, "calls within the throttle window return without emitting")
}

func TestErrorFrameSharesOneShotGuardWithReply(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()
	r.Use(validation.New(permissiveAdapter{}))

	r.Rpc(echoRPC{}, func(ctx *wsrouter.Context) error {
		require.NoError(t, ctx.Error(errs.Code("NOT_FOUND"), "no such user", map[string]string{"id": "u1"}))
		require.NoError(t, ctx.Reply(map[string]string{"value": "late"}))
		return nil
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("ECHO", map[string]any{"correlationId": "c1"}, nil))

	frames := sock.Sent()
	require.Len(t, frames, 1, "Reply after Error is a no-op under the shared one-shot guard")
	assert.Equal(t, "$ws:rpc-error", frames[0].Type)
	assert.Equal(t, "c1", frames[0].Meta["correlationId"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal(frames[0].Payload, &payload))
	assert.Equal(t, "NOT_FOUND", payload["code"])
	assert.Equal(t, "no such user", payload["message"])
}

func TestCloseSystemMessageClosesWithCode1000(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("__close", nil, nil))

	closed, code, _ := sock.Closed()
	assert.True(t, closed)
	assert.Equal(t, 1000, code)
}

func TestPublishWithoutPubSubPluginPanics(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()
	assert.Panics(t, func() { r.Publish("room.general", pingMsg{}, nil) })
}

func TestRpcWithoutValidationPluginPanics(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()
	assert.Panics(t, func() {
		r.Rpc(echoRPC{}, func(ctx *wsrouter.Context) error { return nil })
	})
}

func TestCapabilityAccessorsGateOnAppliedPlugins(t *testing.T) {
	adapter := memory.New(8)
	defer adapter.Close()
	r := wsrouter.New()
	defer r.Close()

	_, ok := r.AsRPCRouter()
	assert.False(t, ok)
	_, ok = r.AsPubSubRouter()
	assert.False(t, ok)

	r.Use(validation.New(permissiveAdapter{}))
	rpcRouter, ok := r.AsRPCRouter()
	require.True(t, ok)
	rpcRouter.Rpc(echoRPC{}, func(ctx *wsrouter.Context) error {
		return ctx.Reply(map[string]string{"value": "ok"})
	})

	r.Use(pubsubplugin.New(adapter))
	psRouter, ok := r.AsPubSubRouter()
	require.True(t, ok)
	result := psRouter.Publish("room.empty", pingMsg{}, nil)
	assert.True(t, result.Ok)
}

func TestHeartbeatAckTsMonotonicallyNonDecreasing(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("__heartbeat", nil, nil))
	r.HandleMessage(clientID, wstest.Envelope("__heartbeat", nil, nil))

	frames := sock.Sent()
	require.Len(t, frames, 2)
	first, ok := frames[0].Meta["ts"].(float64)
	require.True(t, ok)
	second, ok := frames[1].Meta["ts"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, second, first)
}

func TestRPCInflightLimitRejectsOverCeiling(t *testing.T) {
	r := wsrouter.New(wsrouter.WithRPC(wsrouter.RPCConfig{MaxInflightPerSocket: 1}))
	defer r.Close()
	r.Use(validation.New(permissiveAdapter{}))

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	r.Rpc(echoRPC{}, func(ctx *wsrouter.Context) error {
		entered <- struct{}{}
		<-release
		return ctx.Reply(nil)
	})

	var mu sync.Mutex
	var errsSeen []*errs.RouterError
	r.OnError(func(err *errs.RouterError, ctx *wsrouter.Context) {
		mu.Lock()
		errsSeen = append(errsSeen, err)
		mu.Unlock()
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)

	done := make(chan struct{})
	go func() {
		r.HandleMessage(clientID, wstest.Envelope("ECHO", map[string]any{"correlationId": "c1"}, nil))
		close(done)
	}()
	<-entered
	r.HandleMessage(clientID, wstest.Envelope("ECHO", map[string]any{"correlationId": "c2"}, nil))
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errsSeen, 1)
	assert.Equal(t, errs.RPCInflightLimit, errsSeen[0].Code)
}

func TestObserveOpenAndPublishFireLifecycleEvents(t *testing.T) {
	adapter := memory.New(8)
	defer adapter.Close()
	r := wsrouter.New()
	defer r.Close()
	r.Use(pubsubplugin.New(adapter))

	var opens []lifecycle.OpenEvent
	r.ObserveOpen(func(e lifecycle.OpenEvent) { opens = append(opens, e) })
	var publishes []lifecycle.PublishEvent
	r.ObservePublish(func(e lifecycle.PublishEvent) { publishes = append(publishes, e) })

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	_ = r.Publish("room.general", pingMsg{}, nil)

	require.Len(t, opens, 1)
	assert.Equal(t, clientID, opens[0].ClientID)
	require.Len(t, publishes, 1)
	assert.Equal(t, "room.general", publishes[0].Topic)
	assert.True(t, publishes[0].Ok)
}

func TestHandleOpenSeedDataIsVisibleToHandlers(t *testing.T) {
	r := wsrouter.New()
	defer r.Close()

	var gotUser any
	r.On(pingMsg{}, func(ctx *wsrouter.Context) error {
		gotUser, _ = ctx.GetAssign("userId")
		return nil
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, map[string]any{"userId": "u-42"})
	r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))

	assert.Equal(t, "u-42", gotUser, "adapter-seeded data must be readable from the first dispatch on")
}

func TestTopicsHasAndListReflectSubscriptionState(t *testing.T) {
	adapter := memory.New(8)
	defer adapter.Close()
	r := wsrouter.New()
	r.Use(pubsubplugin.New(adapter))
	defer r.Close()

	r.On(pingMsg{}, func(ctx *wsrouter.Context) error {
		return ctx.Topics().SubscribeMany("a", "b")
	})

	var listed []string
	var hasA, hasC bool
	r.On(echoRPC{}, func(ctx *wsrouter.Context) error {
		listed = ctx.Topics().List()
		hasA = ctx.Topics().Has("a")
		hasC = ctx.Topics().Has("c")
		return ctx.Reply(nil)
	})

	sock := wstest.NewSocket()
	clientID := wstest.Open(r, sock, nil)
	r.HandleMessage(clientID, wstest.Envelope("PING", nil, nil))
	r.HandleMessage(clientID, wstest.Envelope("ECHO", map[string]any{"correlationId": "c1"}, nil))

	assert.ElementsMatch(t, []string{"a", "b"}, listed)
	assert.True(t, hasA)
	assert.False(t, hasC)
}
