// Package lifecycle implements the observer fan-out used to notify
// subscribers of dispatch, connection, and publish events.
//
// Fan-out is snapshot-then-iterate: callbacks are copied out under lock
// before being invoked, so a callback that subscribes or unsubscribes
// during its own invocation affects only future events, never the
// in-flight fan-out.
package lifecycle

import (
	"sync"

	"github.com/wsrouter/wsrouter/recovery"
)

// MessageEvent describes one completed dispatch.
type MessageEvent struct {
	ClientID string
	Type     string
	Err      error // non-nil if the dispatch produced a routed error
}

// OpenEvent describes one connection opening.
type OpenEvent struct {
	ClientID string
}

// CloseEvent describes one connection closing.
type CloseEvent struct {
	ClientID string
	Code     int
	Reason   string
}

// PublishEvent describes one completed publish attempt, successful or not.
type PublishEvent struct {
	Topic   string
	Ok      bool
	Matched *int // nil when the adapter cannot report a count
}

// ErrorEvent describes one error routed to the lifecycle sink, emitted for
// every error the router routes. Panics recovered from observer callbacks
// are not reported as ErrorEvents; they go to the onPanic callback.
type ErrorEvent struct {
	ClientID string
	Err      error
}

type subscription[T any] struct {
	id int64
	fn func(T)
}

type observerList[T any] struct {
	mu   sync.RWMutex
	subs []subscription[T]
	next int64
}

func (l *observerList[T]) subscribe(fn func(T)) (unsubscribe func()) {
	l.mu.Lock()
	id := l.next
	l.next++
	l.subs = append(l.subs, subscription[T]{id: id, fn: fn})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, s := range l.subs {
			if s.id == id {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

func (l *observerList[T]) snapshot() []subscription[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]subscription[T], len(l.subs))
	copy(out, l.subs)
	return out
}

func (l *observerList[T]) emit(event T, onPanic func(error)) {
	for _, s := range l.snapshot() {
		s := s
		if err := recovery.CallVoid(func() { s.fn(event) }); err != nil && onPanic != nil {
			onPanic(err)
		}
	}
}

// Observers is the router's event bus: onMessage/onError/onOpen/onClose/
// onPublish.
type Observers struct {
	onMessage observerList[MessageEvent]
	onError   observerList[ErrorEvent]
	onOpen    observerList[OpenEvent]
	onClose   observerList[CloseEvent]
	onPublish observerList[PublishEvent]
	onPanic   func(error)
}

// NewObservers constructs an empty Observers. onPanic, if non-nil, receives
// errors recovered from panicking observer callbacks (typically wired to
// the router's own error sink / A1 logger).
func NewObservers(onPanic func(error)) *Observers {
	return &Observers{onPanic: onPanic}
}

// OnMessage subscribes to completed-dispatch events. Returns an unsubscribe
// function.
func (o *Observers) OnMessage(fn func(MessageEvent)) func() {
	return o.onMessage.subscribe(fn)
}

// OnError subscribes to routed-error events. Returns an unsubscribe function.
func (o *Observers) OnError(fn func(ErrorEvent)) func() {
	return o.onError.subscribe(fn)
}

// OnOpen subscribes to connection-open events. Returns an unsubscribe
// function.
func (o *Observers) OnOpen(fn func(OpenEvent)) func() {
	return o.onOpen.subscribe(fn)
}

// OnClose subscribes to connection-close events. Returns an unsubscribe
// function.
func (o *Observers) OnClose(fn func(CloseEvent)) func() {
	return o.onClose.subscribe(fn)
}

// OnPublish subscribes to publish-attempt events. Returns an unsubscribe
// function.
func (o *Observers) OnPublish(fn func(PublishEvent)) func() {
	return o.onPublish.subscribe(fn)
}

// EmitMessage fans MessageEvent out to a snapshot of current subscribers.
func (o *Observers) EmitMessage(e MessageEvent) { o.onMessage.emit(e, o.onPanic) }

// EmitError fans ErrorEvent out to a snapshot of current subscribers.
func (o *Observers) EmitError(e ErrorEvent) { o.onError.emit(e, o.onPanic) }

// EmitOpen fans OpenEvent out to a snapshot of current subscribers.
func (o *Observers) EmitOpen(e OpenEvent) { o.onOpen.emit(e, o.onPanic) }

// EmitClose fans CloseEvent out to a snapshot of current subscribers.
func (o *Observers) EmitClose(e CloseEvent) { o.onClose.emit(e, o.onPanic) }

// EmitPublish fans PublishEvent out to a snapshot of current subscribers.
func (o *Observers) EmitPublish(e PublishEvent) { o.onPublish.emit(e, o.onPanic) }
