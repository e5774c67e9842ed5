package domain

import (
	"sync"
	"time"
)

// SessionState is the lifecycle of one connection: Unjoined -> Joined -> Left.
type SessionState int

const (
	StateUnjoined SessionState = iota
	StateJoined
	StateLeft
)

func (s SessionState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateLeft:
		return "left"
	default:
		return "unknown"
	}
}

// Session is the per-connection binding to a (participant, room) pair.
type Session struct {
	ID            string
	ParticipantID string
	RoomID        string
	State         SessionState
	// ConfirmedEnd records a confirm_end_session received while still joined.
	ConfirmedEnd bool
	CreatedAt    time.Time
	LastActiveAt time.Time
	mu           sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		State:        StateUnjoined,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Join binds the session. It returns false unless the session was Unjoined.
func (s *Session) Join(participantID, roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != StateUnjoined {
		return false
	}
	s.ParticipantID = participantID
	s.RoomID = roomID
	s.State = StateJoined
	s.LastActiveAt = time.Now()
	return true
}

// Leave moves a joined session to Left and reports the binding it had.
// ok is false when the session was never joined or already left.
func (s *Session) Leave() (participantID, roomID string, confirmed, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != StateJoined {
		s.State = StateLeft
		return "", "", false, false
	}
	s.State = StateLeft
	s.LastActiveAt = time.Now()
	return s.ParticipantID, s.RoomID, s.ConfirmedEnd, true
}

// Binding returns the participant and room while joined.
func (s *Session) Binding() (participantID, roomID string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.State != StateJoined {
		return "", "", false
	}
	return s.ParticipantID, s.RoomID, true
}

func (s *Session) MarkConfirmedEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConfirmedEnd = true
}

func (s *Session) GetState() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

func (s *Session) IsJoined() bool {
	return s.GetState() == StateJoined
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
