package hub

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-simulator/internal/transit"
)

type countMetrics struct{ n atomic.Int64 }

func (m *countMetrics) SetClients(n int) { m.n.Store(int64(n)) }

func testSnapshot(tick uint64) transit.Snapshot {
	return transit.Snapshot{
		SessionID: "s",
		Tick:      tick,
		Routes: []transit.RouteSnapshot{
			{RouteID: "DN18"}, {RouteID: "L238"}, {RouteID: "S15"},
		},
	}
}

func decode(t *testing.T, b []byte) SnapshotMessage {
	t.Helper()
	var msg SnapshotMessage
	require.NoError(t, json.Unmarshal(b, &msg))
	return msg
}

func TestEncodeSnapshot_FiltersFollowedRoutes(t *testing.T) {
	c := NewClient("c1", 1)

	msg := decode(t, mustEncode(t, c, testSnapshot(1)))
	assert.Equal(t, "snapshot", msg.Type)
	assert.Len(t, msg.Payload.Routes, 3)

	c.Follow([]string{"L238", "missing"})
	msg = decode(t, mustEncode(t, c, testSnapshot(1)))
	require.Len(t, msg.Payload.Routes, 1)
	assert.Equal(t, "L238", msg.Payload.Routes[0].RouteID)

	c.Follow(nil)
	assert.True(t, c.Follows("S15"))
}

func TestEncodeSnapshot_DoesNotMutateInput(t *testing.T) {
	c := NewClient("c1", 1)
	c.Follow([]string{"DN18"})
	snap := testSnapshot(1)
	_ = mustEncode(t, c, snap)
	assert.Len(t, snap.Routes, 3)
}

func mustEncode(t *testing.T, c *Client, snap transit.Snapshot) []byte {
	t.Helper()
	b, err := EncodeSnapshot(c, snap)
	require.NoError(t, err)
	return b
}

func TestHub_FanOut(t *testing.T) {
	m := &countMetrics{}
	h := NewHub(m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	all := NewClient("all", 4)
	one := NewClient("one", 4)
	one.Follow([]string{"S15"})
	h.Register(all)
	h.Register(one)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return m.n.Load() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.PublishSnapshot(testSnapshot(7)))

	select {
	case b := <-all.Send:
		msg := decode(t, b)
		assert.Equal(t, uint64(7), msg.Payload.Tick)
		assert.Len(t, msg.Payload.Routes, 3)
	case <-time.After(time.Second):
		t.Fatal("client all got nothing")
	}
	select {
	case b := <-one.Send:
		msg := decode(t, b)
		require.Len(t, msg.Payload.Routes, 1)
		assert.Equal(t, "S15", msg.Payload.Routes[0].RouteID)
	case <-time.After(time.Second):
		t.Fatal("client one got nothing")
	}

	h.Unregister(one)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-one.Done():
	case <-time.After(time.Second):
		t.Fatal("unregister did not close the client")
	}
	assert.False(t, one.Enqueue([]byte("late")))
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := NewClient("c", 1)
	h.Register(c)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	select {
	case <-c.Done():
	default:
		t.Fatal("shutdown did not close the client")
	}
	assert.Zero(t, h.ClientCount())
	assert.False(t, c.Enqueue([]byte("late")))
}

func TestHub_RegisterAfterShutdownDoesNotBlock(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 50; i++ {
			c := NewClient("late", 1)
			h.Register(c)
			h.Unregister(c)
			<-c.Done()
		}
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Register/Unregister blocked after shutdown")
	}
}

func TestClient_EnqueueFullBuffer(t *testing.T) {
	c := NewClient("c", 1)
	assert.True(t, c.Enqueue([]byte("a")))
	assert.False(t, c.Enqueue([]byte("b")))
	assert.Equal(t, []byte("a"), <-c.Send)
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	h := NewHub(nil)
	// Nobody drains the broadcast channel.
	for i := 0; i < 200; i++ {
		require.NoError(t, h.PublishSnapshot(testSnapshot(uint64(i))))
	}
}
