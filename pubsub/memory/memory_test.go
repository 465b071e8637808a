package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsrouter/wsrouter/pubsub"
	"github.com/wsrouter/wsrouter/pubsub/memory"
)

func TestPublishReportsExactSubscriberCount(t *testing.T) {
	a := memory.New(8)
	defer a.Close()
	ctx := context.Background()

	require.NoError(t, a.Subscribe(ctx, "c1", "room"))
	require.NoError(t, a.Subscribe(ctx, "c2", "room"))

	ack, err := a.Publish(ctx, "room", []byte("hello"), pubsub.PublishOpts{})
	require.NoError(t, err)
	assert.Equal(t, pubsub.CapabilityExact, ack.Capability)
	require.NotNil(t, ack.Matched)
	assert.Equal(t, 2, *ack.Matched)
}

func TestUnsubscribeRemovesFromCount(t *testing.T) {
	a := memory.New(8)
	defer a.Close()
	ctx := context.Background()

	a.Subscribe(ctx, "c1", "room")
	a.Subscribe(ctx, "c2", "room")
	a.Unsubscribe(ctx, "c1", "room")

	ack, err := a.Publish(ctx, "room", []byte("hi"), pubsub.PublishOpts{})
	require.NoError(t, err)
	assert.Equal(t, 1, *ack.Matched)
}

func TestUnsubscribeLastMemberDropsTopic(t *testing.T) {
	a := memory.New(8)
	defer a.Close()
	ctx := context.Background()

	a.Subscribe(ctx, "c1", "room")
	a.Unsubscribe(ctx, "c1", "room")

	ack, err := a.Publish(ctx, "room", []byte("hi"), pubsub.PublishOpts{})
	require.NoError(t, err)
	assert.Equal(t, 0, *ack.Matched)
}

func TestPublishDeliversOnEventsChannel(t *testing.T) {
	a := memory.New(8)
	defer a.Close()
	ctx := context.Background()

	a.Subscribe(ctx, "c1", "room")
	_, err := a.Publish(ctx, "room", []byte("payload"), pubsub.PublishOpts{})
	require.NoError(t, err)

	select {
	case ev := <-a.Events():
		assert.Equal(t, "room", ev.Topic)
		assert.Equal(t, []byte("payload"), ev.Payload)
	default:
		t.Fatal("expected a delivered event on the Events() channel")
	}
}

func TestPublishDropsWhenEventChannelIsFull(t *testing.T) {
	a := memory.New(1)
	defer a.Close()
	ctx := context.Background()

	_, err := a.Publish(ctx, "room", []byte("first"), pubsub.PublishOpts{})
	require.NoError(t, err)
	// Events buffer (size 1) is now full; this publish must be dropped, not
	// block the caller.
	done := make(chan struct{})
	go func() {
		a.Publish(ctx, "room", []byte("second"), pubsub.PublishOpts{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish should not block when the events channel is full")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	a := memory.New(4)
	assert.NotPanics(t, func() {
		a.Close()
		a.Close()
	})
}
