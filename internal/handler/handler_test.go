package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-collab/internal/config"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/hub"
	"github.com/weiawesome/wes-io-collab/internal/presence"
	"github.com/weiawesome/wes-io-collab/internal/service"
	"github.com/weiawesome/wes-io-collab/internal/store"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

var testWSConfig = config.WebSocketConfig{
	Path:           "/collab/ws",
	PingInterval:   30 * time.Second,
	PongWait:       60 * time.Second,
	WriteWait:      10 * time.Second,
	MaxMessageSize: 65536,
	SendBuffer:     64,
}

type testServer struct {
	server *httptest.Server
	store  *store.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := hub.NewHub(testWSConfig)
	go h.Run()
	t.Cleanup(h.Stop)

	st := store.NewMemoryStore()
	svc := service.NewCollabService(h, nil, st, presence.NewMemoryTracker(), nil, config.SessionConfig{DefaultDuration: time.Hour})

	r := gin.New()
	r.Use(pkglog.GinMiddleware(pkglog.L()))
	NewWSHandler(h, svc, testWSConfig).RegisterRoutes(r)
	NewHTTPHandler(svc).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{server: srv, store: st}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/collab/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func read(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]interface{}
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

// readUntil skips frames until one of typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 10; i++ {
		m := read(t, conn)
		if m["type"] == typ {
			return m
		}
	}
	t.Fatalf("no %s frame", typ)
	return nil
}

func join(t *testing.T, conn *websocket.Conn, participantID, roomID string) {
	t.Helper()
	send(t, conn, map[string]interface{}{
		"type":           domain.MsgTypeJoinRoom,
		"participant_id": participantID,
		"room_id":        roomID,
	})
	readUntil(t, conn, domain.MsgTypeSessionTimer)
}

func TestWebSocket_CollaborationFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t)
	bob := ts.dial(t)

	join(t, alice, "alice", "room-1")
	join(t, bob, "bob", "room-1")

	presence := readUntil(t, alice, domain.MsgTypePartnerConnection)
	assert.Equal(t, "bob", presence["participant_id"])
	assert.Equal(t, true, presence["connected"])
	readUntil(t, alice, domain.MsgTypeSessionTimer)

	send(t, alice, map[string]interface{}{"type": domain.MsgTypeCodeChange, "room_id": "room-1", "content": "print(1)"})
	update := read(t, bob)
	assert.Equal(t, domain.MsgTypeCodeUpdate, update["type"])
	assert.Equal(t, "print(1)", update["content"])

	send(t, bob, map[string]interface{}{
		"type":    domain.MsgTypeSendChatMessage,
		"room_id": "room-1",
		"message": map[string]string{"uuid": "m1", "content": "looks good", "sender_id": "bob"},
	})
	chat := read(t, alice)
	assert.Equal(t, domain.MsgTypeUpdateChatMessage, chat["type"])
	assert.Equal(t, "m1", chat["uuid"])

	send(t, alice, map[string]interface{}{"type": domain.MsgTypeEndSession, "room_id": "room-1"})
	end := read(t, alice)
	assert.Equal(t, domain.MsgTypeEndSession, end["type"])
	assert.Equal(t, "print(1)", end["content"])

	send(t, bob, map[string]interface{}{"type": domain.MsgTypeConfirmEndSession, "room_id": "room-1"})
	bob.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	bob.Close()

	gone := readUntil(t, alice, domain.MsgTypePartnerConnection)
	assert.Equal(t, "bob", gone["participant_id"])
	assert.Equal(t, false, gone["connected"])
	assert.True(t, ts.store.Exists("room-1"), "alice is still attached")

	send(t, alice, map[string]interface{}{"type": domain.MsgTypeConfirmEndSession, "room_id": "room-1"})
	alice.Close()

	assert.Eventually(t, func() bool {
		return !ts.store.Exists("room-1")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWebSocket_ProtocolErrorsKeepConnection(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	tests := []struct {
		name  string
		frame interface{}
		code  string
	}{
		{"not json", "{{{", domain.ErrCodeBadRequest},
		{"unknown type", map[string]string{"type": "teleport"}, domain.ErrCodeBadRequest},
		{"join without participant", map[string]string{"type": domain.MsgTypeJoinRoom, "room_id": "r"}, domain.ErrCodeBadRequest},
		{"code change before join", map[string]string{"type": domain.MsgTypeCodeChange, "room_id": "r", "content": "x"}, domain.ErrCodeNotInRoom},
		{"timer before join", map[string]string{"type": domain.MsgTypeGetSessionTimer, "room_id": "r"}, domain.ErrCodeNotInRoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if raw, ok := tt.frame.(string); ok {
				require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
			} else {
				send(t, conn, tt.frame)
			}
			m := read(t, conn)
			assert.Equal(t, domain.MsgTypeError, m["type"])
			assert.Equal(t, tt.code, m["code"])
		})
	}

	send(t, conn, map[string]string{"type": domain.MsgTypePing})
	assert.Equal(t, domain.MsgTypePong, read(t, conn)["type"])
}

func TestHTTP_HealthAndRoomInfo(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(ts.server.URL + "/api/v1/rooms/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn := ts.dial(t)
	join(t, conn, "alice", "room-2")

	resp, err = http.Get(ts.server.URL + "/api/v1/rooms/room-2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool            `json:"success"`
		Data    domain.RoomInfo `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "room-2", body.Data.RoomID)
	assert.Equal(t, 1, body.Data.Participants)
	assert.Equal(t, 1, body.Data.LocalConnections)
	assert.NotNil(t, body.Data.SessionDeadline)
}
