// Package wstest provides a black-box mock wsrouter.Transport for exercising
// a Router without a real socket: it records every outbound frame, lets a
// test assert on them, and can simulate a send failure.
package wstest

import (
	"encoding/json"
	"sync"

	"github.com/wsrouter/wsrouter"
)

// Frame is a decoded outbound envelope captured by a Socket.
type Frame struct {
	Type    string          `json:"type"`
	Meta    map[string]any  `json:"meta,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Socket is a wsrouter.Transport double. It is safe for concurrent use.
type Socket struct {
	mu          sync.Mutex
	sent        []Frame
	closed      bool
	closeCode   int
	closeReason string
	subscribed  map[string]struct{}
	errToReturn error
}

// NewSocket constructs an open, empty mock socket.
func NewSocket() *Socket {
	return &Socket{subscribed: make(map[string]struct{})}
}

// FailSendsWith makes every subsequent Send return err.
func (s *Socket) FailSendsWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errToReturn = err
}

// Send decodes and records frame.
func (s *Socket) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errToReturn != nil {
		return s.errToReturn
	}
	var f Frame
	if err := json.Unmarshal(frame, &f); err != nil {
		return err
	}
	s.sent = append(s.sent, f)
	return nil
}

// Close marks the socket closed, recording the code/reason the router used.
func (s *Socket) Close(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closeCode = code
	s.closeReason = reason
	return nil
}

// Subscribe records topic as transport-level subscribed. wsrouter's own
// topic bookkeeping is independent of this; reference transports treat it
// as a no-op for the same reason (see transport/ws).
func (s *Socket) Subscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed[topic] = struct{}{}
	return nil
}

// Unsubscribe removes topic from the transport-level subscribed set.
func (s *Socket) Unsubscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribed, topic)
	return nil
}

// Sent returns a snapshot of every frame sent so far, in order.
func (s *Socket) Sent() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Frame, len(s.sent))
	copy(out, s.sent)
	return out
}

// Last returns the most recently sent frame and true, or a zero Frame and
// false if nothing has been sent.
func (s *Socket) Last() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return Frame{}, false
	}
	return s.sent[len(s.sent)-1], true
}

// Closed reports whether Close has been called, and with what code/reason.
func (s *Socket) Closed() (closed bool, code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed, s.closeCode, s.closeReason
}

var _ wsrouter.Transport = (*Socket)(nil)

// Open registers sock as a new connection on r and returns the minted
// clientID, the one piece of wsrouter.Router's public surface a test needs
// in order to drive HandleMessage/HandleClose on the right connection.
func Open(r *wsrouter.Router, sock *Socket, seed map[string]any) string {
	return r.HandleOpen(sock, seed)
}

// Envelope builds a raw inbound frame from a type, meta, and payload, the
// counterpart of Frame for constructing test input.
func Envelope(typ string, meta map[string]any, payload any) []byte {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	body, _ := json.Marshal(Frame{Type: typ, Meta: meta, Payload: raw})
	return body
}
