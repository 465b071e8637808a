// Package ws is a reference wsrouter.Transport adapter built on
// github.com/coder/websocket. It is one legitimate implementation of the
// transport adapter interface among others (see wsrouter/transport/gorilla
// for a second); the root package has no import on either.
//
// The adapter owns the HTTP upgrade (with origin checking) and the
// blocking read loop; the plain framed-bytes Send/Close/Subscribe/
// Unsubscribe surface is everything the router sees.
package ws

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/wsrouter/wsrouter"
)

// Config controls origin validation and socket limits for the adapter.
type Config struct {
	// AllowedOrigins lists origins permitted to open a connection; ignored
	// when InsecureDevMode is true. A same-host origin is always allowed.
	AllowedOrigins []string
	// InsecureDevMode disables origin validation. Development only.
	InsecureDevMode bool
	// MaxMessageBytes bounds a single inbound frame; 0 means the
	// coder/websocket default.
	MaxMessageBytes int64
	// WriteTimeout bounds a single outbound Send call.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Adapter implements wsrouter.Transport over one accepted *websocket.Conn.
type Adapter struct {
	cfg  Config
	mu   sync.Mutex
	conn *websocket.Conn
}

// Accept upgrades r to a WebSocket connection, validating Origin per cfg,
// and returns an Adapter ready to be handed to router.HandleOpen.
func Accept(w http.ResponseWriter, r *http.Request, cfg Config) (*Adapter, error) {
	cfg = cfg.withDefaults()
	if !cfg.InsecureDevMode && !originAllowed(r.Header.Get("Origin"), r.Host, cfg.AllowedOrigins) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return nil, websocket.CloseError{Code: websocket.StatusPolicyViolation, Reason: "origin not allowed"}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: cfg.InsecureDevMode,
	})
	if err != nil {
		return nil, err
	}
	if cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(cfg.MaxMessageBytes)
	}
	return &Adapter{cfg: cfg, conn: conn}, nil
}

func originAllowed(origin, host string, allowed []string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == host {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
		if au, err := url.Parse(a); err == nil && au.Host == u.Host {
			return true
		}
	}
	return false
}

// Send writes frame as a single text message.
func (a *Adapter) Send(frame []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.WriteTimeout)
	defer cancel()
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return websocket.CloseError{Code: websocket.StatusNormalClosure, Reason: "already closed"}
	}
	return conn.Write(ctx, websocket.MessageText, frame)
}

// Close closes the underlying connection with code/reason.
func (a *Adapter) Close(code int, reason string) error {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusCode(code), reason)
}

// Subscribe is a no-op for this adapter: topic membership is tracked
// entirely in the router's connection state, not pushed down to the raw
// socket (coder/websocket has no native pub/sub primitive).
func (a *Adapter) Subscribe(topic string) error { return nil }

// Unsubscribe is a no-op, mirroring Subscribe.
func (a *Adapter) Unsubscribe(topic string) error { return nil }

// Serve runs the blocking read loop, feeding every inbound frame to
// router.HandleMessage(clientID, frame) until the connection closes or ctx
// is cancelled, then calls router.HandleClose. Intended to be run in its
// own goroutine per accepted connection.
func Serve(ctx context.Context, router *wsrouter.Router, a *Adapter, seed map[string]any) {
	clientID := router.HandleOpen(a, seed)
	defer func() {
		router.HandleClose(clientID, int(websocket.StatusNormalClosure), "connection closed")
	}()

	for {
		typ, data, err := a.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}
		router.HandleMessage(clientID, data)
	}
}

var _ wsrouter.Transport = (*Adapter)(nil)
