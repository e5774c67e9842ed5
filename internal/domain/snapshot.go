package domain

import "time"

// SessionSnapshot is the final state of a room handed off when a
// participant ends the session.
type SessionSnapshot struct {
	RoomID          string        `json:"room_id"`
	ParticipantID   string        `json:"participant_id"`
	Content         string        `json:"content"`
	SessionDeadline *time.Time    `json:"session_deadline,omitempty"`
	Messages        []ChatMessage `json:"messages"`
	EndedAt         time.Time     `json:"ended_at"`
}

// RoomInfo is the read-only view of a room served over HTTP.
type RoomInfo struct {
	RoomID           string     `json:"room_id"`
	Participants     int        `json:"participants"`
	LocalConnections int        `json:"local_connections"`
	HasContent       bool       `json:"has_content"`
	SessionDeadline  *time.Time `json:"session_deadline,omitempty"`
	MessageCount     int        `json:"message_count"`
}
