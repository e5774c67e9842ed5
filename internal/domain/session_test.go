package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Lifecycle(t *testing.T) {
	s := NewSession("conn-1")
	assert.Equal(t, StateUnjoined, s.GetState())

	_, _, ok := s.Binding()
	assert.False(t, ok)

	require.True(t, s.Join("alice", "room-1"))
	assert.True(t, s.IsJoined())

	pid, rid, ok := s.Binding()
	require.True(t, ok)
	assert.Equal(t, "alice", pid)
	assert.Equal(t, "room-1", rid)

	assert.False(t, s.Join("alice", "room-2"), "second join must be refused")

	s.MarkConfirmedEnd()
	pid, rid, confirmed, ok := s.Leave()
	require.True(t, ok)
	assert.Equal(t, "alice", pid)
	assert.Equal(t, "room-1", rid)
	assert.True(t, confirmed)
	assert.Equal(t, StateLeft, s.GetState())

	_, _, _, ok = s.Leave()
	assert.False(t, ok, "left is terminal")
	assert.False(t, s.Join("alice", "room-1"))
}

func TestSession_LeaveWithoutJoin(t *testing.T) {
	s := NewSession("conn-2")
	_, _, _, ok := s.Leave()
	assert.False(t, ok)
	assert.Equal(t, StateLeft, s.GetState())
}

func TestSessionState_String(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{StateUnjoined, "unjoined"},
		{StateJoined, "joined"},
		{StateLeft, "left"},
		{SessionState(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestValidate(t *testing.T) {
	content := ""
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{"join ok", &JoinRoomMessage{ParticipantID: "p", RoomID: "r"}, false},
		{"join missing participant", &JoinRoomMessage{RoomID: "r"}, true},
		{"join missing room", &JoinRoomMessage{ParticipantID: "p"}, true},
		{"code change empty document", &CodeChangeMessage{RoomID: "r", Content: &content}, false},
		{"code change missing content", &CodeChangeMessage{RoomID: "r"}, true},
		{"chat ok", &SendChatMessage{RoomID: "r", Message: &ChatMessage{UUID: "u"}}, false},
		{"chat missing message", &SendChatMessage{RoomID: "r"}, true},
		{"chat missing uuid", &SendChatMessage{RoomID: "r", Message: &ChatMessage{}}, true},
		{"room message", &RoomMessage{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
