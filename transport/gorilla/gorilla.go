// Package gorilla is a second reference wsrouter.Transport adapter, built on
// github.com/gorilla/websocket instead of coder/websocket. Its existence
// alongside wsrouter/transport/ws demonstrates that the router's Transport
// interface is genuinely adapter-agnostic: neither the router nor any other
// package imports gorilla/websocket directly.
package gorilla

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wsrouter/wsrouter"
)

// Config controls the upgrader's origin check and write timeout.
type Config struct {
	AllowedOrigins  []string
	InsecureDevMode bool
	WriteTimeout    time.Duration
	ReadBufferSize  int
	WriteBufferSize int
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 4096
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = 4096
	}
	return c
}

// Adapter implements wsrouter.Transport over one accepted *websocket.Conn.
type Adapter struct {
	cfg  Config
	mu   sync.Mutex
	conn *websocket.Conn
}

// Accept upgrades r to a WebSocket connection using an Upgrader configured
// from cfg, and returns an Adapter ready to be handed to router.HandleOpen.
func Accept(w http.ResponseWriter, r *http.Request, cfg Config) (*Adapter, error) {
	cfg = cfg.withDefaults()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.InsecureDevMode {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, a := range cfg.AllowedOrigins {
				if a == "*" || a == origin {
					return true
				}
			}
			return false
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, conn: conn}, nil
}

// Send writes frame as a single text message.
func (a *Adapter) Send(frame []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return websocket.ErrCloseSent
	}
	_ = a.conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
	return a.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close closes the underlying connection, sending a close frame carrying
// code/reason best-effort before tearing down the socket.
func (a *Adapter) Close(code int, reason string) error {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()
	if conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return conn.Close()
}

// Subscribe is a no-op; see transport/ws.Adapter.Subscribe for rationale.
func (a *Adapter) Subscribe(topic string) error { return nil }

// Unsubscribe is a no-op, mirroring Subscribe.
func (a *Adapter) Unsubscribe(topic string) error { return nil }

// Serve runs the blocking read loop, feeding every inbound frame to
// router.HandleMessage until the connection closes, then calls
// router.HandleClose.
func Serve(router *wsrouter.Router, a *Adapter, seed map[string]any) {
	clientID := router.HandleOpen(a, seed)
	defer func() {
		router.HandleClose(clientID, websocket.CloseNormalClosure, "connection closed")
	}()

	for {
		msgType, data, err := a.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		router.HandleMessage(clientID, data)
	}
}

var _ wsrouter.Transport = (*Adapter)(nil)
