package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisPubSub(t *testing.T, mr *miniredis.Miniredis) *RedisPubSub {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ps := NewRedisPubSubWithClient(client, 8)
	t.Cleanup(func() {
		ps.Close()
		client.Close()
	})
	return ps
}

func receive(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestRedisPubSub_PatternDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mr := miniredis.RunT(t)

	pub := newTestRedisPubSub(t, mr)
	sub := newTestRedisPubSub(t, mr)

	ch, err := sub.SubscribePattern(ctx, PatternRoomToPeers)
	require.NoError(t, err)

	event, err := NewEvent(EventRoomFrame, "room-1", "instance-a", RoomFramePayload{
		Exclude: "conn-1",
		Frame:   []byte(`{"type":"code_update","content":"x"}`),
	})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, RoomToPeersChannel("room-1"), event))

	got := receive(t, ch)
	assert.Equal(t, EventRoomFrame, got.Type)
	assert.Equal(t, "room-1", got.RoomID)
	assert.True(t, got.FromSource("instance-a"))
	assert.False(t, got.FromSource("instance-b"))

	var payload RoomFramePayload
	require.NoError(t, got.UnmarshalPayload(&payload))
	assert.Equal(t, "conn-1", payload.Exclude)
	assert.JSONEq(t, `{"type":"code_update","content":"x"}`, string(payload.Frame))
}

func TestRedisPubSub_SubscribeSingleChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mr := miniredis.RunT(t)
	ps := newTestRedisPubSub(t, mr)

	ch, err := ps.Subscribe(ctx, RoomToPeersChannel("only-this"))
	require.NoError(t, err)

	other, _ := NewEvent(EventRoomFrame, "other", "x", RoomFramePayload{})
	mine, _ := NewEvent(EventRoomFrame, "only-this", "x", RoomFramePayload{})
	require.NoError(t, ps.Publish(ctx, RoomToPeersChannel("other"), other))
	require.NoError(t, ps.Publish(ctx, RoomToPeersChannel("only-this"), mine))

	assert.Equal(t, "only-this", receive(t, ch).RoomID)
}

func TestRedisPubSub_UnsubscribeClosesChannel(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	ps := newTestRedisPubSub(t, mr)

	ch, err := ps.SubscribePattern(ctx, PatternRoomToPeers)
	require.NoError(t, err)
	require.NoError(t, ps.Unsubscribe(ctx, PatternRoomToPeers))

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestRedisPubSub_SkipsUndecodable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mr := miniredis.RunT(t)
	ps := newTestRedisPubSub(t, mr)

	ch, err := ps.SubscribePattern(ctx, PatternRoomToPeers)
	require.NoError(t, err)

	mr.Publish(RoomToPeersChannel("r"), "garbage")
	good, _ := NewEvent(EventRoomFrame, "r", "x", RoomFramePayload{})
	require.NoError(t, ps.Publish(ctx, RoomToPeersChannel("r"), good))

	assert.Equal(t, EventRoomFrame, receive(t, ch).Type)
}
