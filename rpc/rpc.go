// Package rpc tracks the lifecycle of in-flight RPC calls keyed by
// correlation id, one sub-table per connection.
//
// The design follows the pending-request map pattern used by
// JSON-RPC-over-a-single-connection clients (request id -> pending state,
// guarded against concurrent access, swept on disconnect) but replaces
// "id -> response channel" with "id -> cancellable context", since a server
// router needs to push cancellation into a running handler rather than wait
// for a single reply.
package rpc

import (
	"container/ring"
	"context"
	"sync"
	"time"

	"github.com/wsrouter/wsrouter/errs"
	"github.com/wsrouter/wsrouter/logging"
	"github.com/wsrouter/wsrouter/recovery"
)

// State is the lifecycle stage of one correlation id.
type State int

const (
	StateIdle State = iota
	StateActive
	StateTerminated
	StateAborted
)

// Config bounds the manager's memory and sweep behavior.
type Config struct {
	// MaxInflightPerSocket bounds concurrent active RPCs per connection.
	MaxInflightPerSocket int
	// IdleTimeout aborts an RPC that has seen no activity for this long.
	IdleTimeout time.Duration
	// DedupWindow is the TTL a terminated correlation id is remembered for
	// duplicate-terminal detection, independent of FIFO eviction.
	DedupWindow time.Duration
	// CleanupCadence is how often the idle sweeper runs.
	CleanupCadence time.Duration
	// MaxRecentlyTerminated bounds the per-connection dedup FIFO. Defaults
	// to 10,000 when zero.
	MaxRecentlyTerminated int
	Logger                logging.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxRecentlyTerminated <= 0 {
		c.MaxRecentlyTerminated = 10_000
	}
	if c.CleanupCadence <= 0 {
		c.CleanupCadence = time.Second
	}
	if c.Logger == nil {
		c.Logger = logging.NopLogger{}
	}
	return c
}

type rpcState struct {
	mu             sync.Mutex
	state          State
	cancel         context.CancelFunc
	ctx            context.Context
	lastActivityAt time.Time
	onCancel       []func()
}

// connState is one connection's correlation-id table.
type connState struct {
	mu          sync.Mutex
	active      map[string]*rpcState
	terminated  map[string]struct{}
	ring        *ring.Ring // of string cid, oldest-first eviction
	ringLen     int
	ringCap     int
	terminateAt map[string]time.Time
}

func newConnState(cap int) *connState {
	return &connState{
		active:      make(map[string]*rpcState),
		terminated:  make(map[string]struct{}),
		terminateAt: make(map[string]time.Time),
		ring:        ring.New(cap),
		ringCap:     cap,
	}
}

// Manager owns the correlation-id state for every connection known to a
// router instance.
type Manager struct {
	cfg   Config
	conns sync.Map // clientID string -> *connState

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewManager constructs a Manager and starts its background idle sweeper.
func NewManager(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{cfg: cfg, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
	go m.sweepLoop()
	return m
}

// Close stops the background sweeper. Safe to call more than once.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		<-m.doneCh
	})
}

func (m *Manager) connFor(clientID string) *connState {
	if v, ok := m.conns.Load(clientID); ok {
		return v.(*connState)
	}
	cs := newConnState(m.cfg.MaxRecentlyTerminated)
	actual, _ := m.conns.LoadOrStore(clientID, cs)
	return actual.(*connState)
}

// OnRequest admits a new RPC under cid for clientID. Returns (nil, false) if
// the connection is already at MaxInflightPerSocket.
func (m *Manager) OnRequest(clientID, cid string) (context.Context, bool) {
	cs := m.connFor(clientID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if m.cfg.MaxInflightPerSocket > 0 && len(cs.active) >= m.cfg.MaxInflightPerSocket {
		return nil, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &rpcState{
		state:          StateActive,
		cancel:         cancel,
		ctx:            ctx,
		lastActivityAt: time.Now(),
	}
	cs.active[cid] = st
	return ctx, true
}

// OnProgress refreshes the idle clock for an active RPC.
func (m *Manager) OnProgress(clientID, cid string) {
	m.touch(clientID, cid)
}

func (m *Manager) touch(clientID, cid string) {
	cs := m.connFor(clientID)
	cs.mu.Lock()
	st, ok := cs.active[cid]
	cs.mu.Unlock()
	if !ok {
		return
	}
	st.mu.Lock()
	st.lastActivityAt = time.Now()
	st.mu.Unlock()
}

// OnTerminal moves cid to the terminated state and into the dedup FIFO,
// tripping its cancellation context and running its registered cancel
// callbacks exactly like OnAbort does. A server-side Reply/Error is one of
// the four cancellation triggers alongside disconnect and idle eviction, so
// a handler that captured ctx.Cancellation() before replying must still see
// it become Done. Subsequent calls for the same cid are no-ops.
func (m *Manager) OnTerminal(clientID, cid string) {
	cs := m.connFor(clientID)
	cs.mu.Lock()
	if _, done := cs.terminated[cid]; done {
		cs.mu.Unlock()
		return
	}
	st, ok := cs.active[cid]
	cs.mu.Unlock()

	if ok {
		st.mu.Lock()
		st.state = StateTerminated
		callbacks := st.onCancel
		cancel := st.cancel
		st.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		for _, cb := range callbacks {
			cb := cb
			if err := recovery.CallVoid(cb); err != nil {
				m.cfg.Logger.Warn("rpc cancel callback failed", logging.Err(err), logging.String("cid", cid))
			}
		}
	}

	cs.mu.Lock()
	m.terminateLocked(cs, cid)
	cs.mu.Unlock()
}

// terminateLocked requires cs.mu held.
func (m *Manager) terminateLocked(cs *connState, cid string) {
	if _, done := cs.terminated[cid]; done {
		return
	}
	delete(cs.active, cid)
	cs.terminated[cid] = struct{}{}
	cs.terminateAt[cid] = time.Now()

	if cs.ringLen >= cs.ringCap && cs.ringCap > 0 {
		evicted := cs.ring.Value
		if evicted != nil {
			old := evicted.(string)
			delete(cs.terminated, old)
			delete(cs.terminateAt, old)
		}
	} else {
		cs.ringLen++
	}
	cs.ring.Value = cid
	cs.ring = cs.ring.Next()
}

// OnAbort cancels cid's context, runs its registered cancel callbacks (every
// callback runs even if one panics or errors), and moves it to terminated.
func (m *Manager) OnAbort(clientID, cid string) {
	cs := m.connFor(clientID)
	cs.mu.Lock()
	st, ok := cs.active[cid]
	cs.mu.Unlock()
	if !ok {
		return
	}

	st.mu.Lock()
	st.state = StateAborted
	callbacks := st.onCancel
	cancel := st.cancel
	st.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, cb := range callbacks {
		cb := cb
		if err := recovery.CallVoid(cb); err != nil {
			m.cfg.Logger.Warn("rpc cancel callback failed", logging.Err(err), logging.String("cid", cid))
		}
	}

	cs.mu.Lock()
	m.terminateLocked(cs, cid)
	cs.mu.Unlock()
}

// OnCancel registers a callback invoked when cid is aborted.
func (m *Manager) OnCancel(clientID, cid string, fn func()) {
	cs := m.connFor(clientID)
	cs.mu.Lock()
	st, ok := cs.active[cid]
	cs.mu.Unlock()
	if !ok {
		return
	}
	st.mu.Lock()
	st.onCancel = append(st.onCancel, fn)
	st.mu.Unlock()
}

// IsTerminal reports whether cid is known to be terminated (dedup window).
func (m *Manager) IsTerminal(clientID, cid string) bool {
	cs := m.connFor(clientID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if ts, ok := cs.terminateAt[cid]; ok {
		if m.cfg.DedupWindow > 0 && time.Since(ts) > m.cfg.DedupWindow {
			return false
		}
		return true
	}
	return false
}

var preCancelled = func() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}()

// CancellationContext returns the live cancellation context for an active
// RPC, or an already-Done context if cid is terminal or unknown.
func (m *Manager) CancellationContext(clientID, cid string) context.Context {
	cs := m.connFor(clientID)
	cs.mu.Lock()
	st, ok := cs.active[cid]
	cs.mu.Unlock()
	if !ok {
		return preCancelled
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ctx
}

// OnDisconnect aborts every active RPC for clientID and discards its table.
func (m *Manager) OnDisconnect(clientID string) {
	v, ok := m.conns.Load(clientID)
	if !ok {
		return
	}
	cs := v.(*connState)
	cs.mu.Lock()
	cids := make([]string, 0, len(cs.active))
	for cid := range cs.active {
		cids = append(cids, cid)
	}
	cs.mu.Unlock()

	for _, cid := range cids {
		m.OnAbort(clientID, cid)
	}
	m.conns.Delete(clientID)
}

// ActiveCount reports the number of active RPCs for clientID.
func (m *Manager) ActiveCount(clientID string) int {
	v, ok := m.conns.Load(clientID)
	if !ok {
		return 0
	}
	cs := v.(*connState)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.active)
}

func (m *Manager) sweepLoop() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.cfg.CleanupCadence)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweepIdle()
		}
	}
}

func (m *Manager) sweepIdle() {
	if m.cfg.IdleTimeout <= 0 {
		return
	}
	now := time.Now()
	m.conns.Range(func(key, value any) bool {
		clientID := key.(string)
		cs := value.(*connState)
		cs.mu.Lock()
		var stale []string
		for cid, st := range cs.active {
			st.mu.Lock()
			idle := now.Sub(st.lastActivityAt)
			st.mu.Unlock()
			if idle >= m.cfg.IdleTimeout {
				stale = append(stale, cid)
			}
		}
		cs.mu.Unlock()

		for _, cid := range stale {
			m.cfg.Logger.Warn("rpc idle timeout",
				logging.String("client_id", clientID),
				logging.String("cid", cid),
				logging.String("code", string(errs.RPCIdleTimeout)))
			m.OnAbort(clientID, cid)
		}
		return true
	})
}
