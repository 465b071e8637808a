package wsrouter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wsrouter/wsrouter/limits"
)

// Transport is the adapter-provided handle for one connection. Adapters call
// router.HandleOpen/HandleMessage/HandleClose; the router calls back into
// Transport to push frames and manage topic membership. The interface has
// no import on any concrete transport library; wsrouter/transport/ws and
// wsrouter/transport/gorilla are reference implementations of it.
type Transport interface {
	Send(frame []byte) error
	Close(code int, reason string) error
	Subscribe(topic string) error
	Unsubscribe(topic string) error
}

// rpcHandle tracks the per-correlation-id state outbound methods need across
// multiple calls: the one-shot terminal guard for Reply/Error, and the
// throttle high-water mark for Progress.
type rpcHandle struct {
	mu           sync.Mutex
	repliedOnce  sync.Once
	lastProgress time.Time
}

// connection is the router's private per-socket state. It is exclusively
// owned by that connection's serial dispatch goroutine plus the background
// RPC sweeper, matching the ownership rule in the concurrency model.
type connection struct {
	clientID  string
	transport Transport

	lastActivity atomic.Int64 // unix nanos
	closed       atomic.Bool

	inflight *limits.Inflight

	rpcHandles sync.Map // correlationID string -> *rpcHandle

	topicsMu sync.Mutex
	topics   map[string]struct{}

	assignMu sync.Mutex
	assigns  map[string]any
}

func newConnection(clientID string, transport Transport, inflight *limits.Inflight) *connection {
	c := &connection{
		clientID:  clientID,
		transport: transport,
		inflight:  inflight,
		topics:    make(map[string]struct{}),
		assigns:   make(map[string]any),
	}
	c.touch()
	return c
}

func (c *connection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *connection) idleSince() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

func (c *connection) rpcHandleFor(cid string) *rpcHandle {
	v, _ := c.rpcHandles.LoadOrStore(cid, &rpcHandle{})
	return v.(*rpcHandle)
}

func (c *connection) dropRPCHandle(cid string) {
	c.rpcHandles.Delete(cid)
}

func (c *connection) addTopic(topic string) {
	c.topicsMu.Lock()
	c.topics[topic] = struct{}{}
	c.topicsMu.Unlock()
}

func (c *connection) removeTopic(topic string) {
	c.topicsMu.Lock()
	delete(c.topics, topic)
	c.topicsMu.Unlock()
}

func (c *connection) hasTopic(topic string) bool {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	_, ok := c.topics[topic]
	return ok
}

func (c *connection) listTopics() []string {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}

// Assign stores an arbitrary value on the connection, surviving across
// dispatches until close.
func (c *connection) Assign(key string, value any) {
	c.assignMu.Lock()
	c.assigns[key] = value
	c.assignMu.Unlock()
}

func (c *connection) GetAssign(key string) (any, bool) {
	c.assignMu.Lock()
	defer c.assignMu.Unlock()
	v, ok := c.assigns[key]
	return v, ok
}
