package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(nil)
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func TestPublishReachesEveryClientOfCreator(t *testing.T) {
	h := startHub(t)
	a := NewClient(h, nil, 1)
	b := NewClient(h, nil, 1)
	other := NewClient(h, nil, 2)
	h.Register(a)
	h.Register(b)
	h.Register(other)

	h.Publish(1, "donation.alert", map[string]any{"ref": "DON123"})

	for _, c := range []*Client{a, b} {
		ev := receive(t, c)
		assert.Equal(t, "donation.alert", ev.Type)
		assert.Equal(t, "DON123", ev.Payload.(map[string]any)["ref"])
	}
	select {
	case <-other.Send:
		t.Fatal("event leaked to another creator")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	h := startHub(t)
	c := NewClient(h, nil, 7)
	h.Register(c)
	h.Unregister(c)
	// Unregistering twice is harmless.
	h.Unregister(c)

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestPublishWithoutClientsDoesNotBlock(t *testing.T) {
	h := NewHub(nil)
	for i := 0; i < sendBuffer+10; i++ {
		h.Publish(1, "queue.updated", i)
	}
}
