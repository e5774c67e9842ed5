package store

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-collab/internal/domain"
)

// ErrNotFound is returned by the getters when the room has no such state.
// Callers treat it as the "nothing stored yet" branch, not a failure.
var ErrNotFound = errors.New("room state not found")

// RoomStore holds the ephemeral per-room state shared by every connection.
//
// Content is last-write-wins. The session deadline is overwritten
// unconditionally; set-once is enforced by callers. The chat log is
// append-only and ListChatMessages returns it in append order.
type RoomStore interface {
	GetContent(ctx context.Context, roomID string) (string, error)
	SetContent(ctx context.Context, roomID, content string) error

	GetSessionDeadline(ctx context.Context, roomID string) (time.Time, error)
	SetSessionDeadline(ctx context.Context, roomID string, deadline time.Time) error

	AppendChatMessage(ctx context.Context, roomID string, msg domain.ChatMessage) error
	// ListChatMessages returns an empty slice, not ErrNotFound, for a room
	// without chat.
	ListChatMessages(ctx context.Context, roomID string) ([]domain.ChatMessage, error)

	// Purge deletes every key of the room. Purging an absent room is a no-op.
	Purge(ctx context.Context, roomID string) error

	Close() error
}
