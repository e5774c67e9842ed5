package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-collab/internal/config"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(config.WebSocketConfig{SendBuffer: 16})
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func newTestClient(h *Hub, id string) *Client {
	c := NewClient(id, h, nil, h.config)
	h.Register(c)
	return c
}

func recv(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.ID)
		return nil
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("client %s got unexpected frame %s", c.ID, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(h, "a")
	b := newTestClient(h, "b")
	other := newTestClient(h, "other")

	h.JoinRoom(a, "room")
	h.JoinRoom(b, "room")
	h.JoinRoom(other, "elsewhere")

	require.NoError(t, h.BroadcastToRoom("room", map[string]string{"type": "code_update"}, a.ID))

	assert.Equal(t, "code_update", recv(t, b)["type"])
	assertNothing(t, a)
	assertNothing(t, other)
}

func TestHub_BroadcastWithoutExclude(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(h, "a")
	b := newTestClient(h, "b")
	h.JoinRoom(a, "room")
	h.JoinRoom(b, "room")

	require.NoError(t, h.BroadcastToRoom("room", map[string]string{"type": "session_timer"}, ""))

	assert.Equal(t, "session_timer", recv(t, a)["type"])
	assert.Equal(t, "session_timer", recv(t, b)["type"])
}

func TestHub_DirectAndBroadcastKeepOrder(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(h, "a")
	h.JoinRoom(a, "room")

	require.NoError(t, h.BroadcastToRoom("room", map[string]int{"seq": 1}, ""))
	require.NoError(t, a.SendMessage(map[string]int{"seq": 2}))
	require.NoError(t, h.BroadcastToRoom("room", map[string]int{"seq": 3}, ""))

	for want := 1; want <= 3; want++ {
		assert.EqualValues(t, want, recv(t, a)["seq"])
	}
}

func TestHub_LeaveAndUnregister(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(h, "a")
	b := newTestClient(h, "b")
	h.JoinRoom(a, "room")
	h.JoinRoom(b, "room")
	assert.Equal(t, 2, h.RoomClientCount("room"))

	h.LeaveRoom(a, "room")
	assert.Equal(t, 1, h.RoomClientCount("room"))

	h.Unregister(b)
	_, ok := <-b.Send
	assert.False(t, ok, "unregister closes the send channel")
	assert.Equal(t, 0, h.RoomClientCount("room"))

	// second unregister is a no-op
	h.Unregister(b)
	assert.Equal(t, 1, h.ClientCount())
}

func TestHub_HasParticipant(t *testing.T) {
	h := newTestHub(t)
	tab1 := newTestClient(h, "tab1")
	tab2 := newTestClient(h, "tab2")
	tab1.Session.Join("alice", "room")
	tab2.Session.Join("alice", "room")
	h.JoinRoom(tab1, "room")
	h.JoinRoom(tab2, "room")

	assert.True(t, h.HasParticipant("room", "alice", tab1.ID))
	assert.False(t, h.HasParticipant("room", "bob", ""))

	h.LeaveRoom(tab2, "room")
	assert.False(t, h.HasParticipant("room", "alice", tab1.ID))
	assert.True(t, h.HasParticipant("room", "alice", ""))
}

func TestHub_FullBufferDropsClient(t *testing.T) {
	h := NewHub(config.WebSocketConfig{SendBuffer: 1})
	go h.Run()
	t.Cleanup(h.Stop)

	slow := NewClient("slow", h, nil, h.config)
	h.Register(slow)
	h.JoinRoom(slow, "room")

	for i := 0; i < 3; i++ {
		h.BroadcastRawToRoom("room", []byte(`{"type":"code_update"}`), "")
	}

	assert.Eventually(t, func() bool {
		return h.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHub_StopUnblocksCallers(t *testing.T) {
	h := NewHub(config.WebSocketConfig{})
	go h.Run()
	c := NewClient("c", h, nil, h.config)
	h.Register(c)
	h.Stop()
	h.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.BroadcastRawToRoom("room", []byte("{}"), "")
		}
		h.Unregister(c)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub calls blocked after Stop")
	}
}
