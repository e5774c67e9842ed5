package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/hub"
)

// Protocol errors. Each is answered with an error frame and never closes
// the connection.
var (
	ErrNotJoined     = errors.New("connection has not joined a room")
	ErrAlreadyJoined = errors.New("connection already joined a room")
	ErrRoomMismatch  = errors.New("event targets a room the connection did not join")
	ErrMissingRoomID = errors.New("room_id is required")
)

// IsProtocolError reports whether err is a client mistake rather than a
// server-side failure.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrNotJoined) ||
		errors.Is(err, ErrAlreadyJoined) ||
		errors.Is(err, ErrRoomMismatch) ||
		errors.Is(err, ErrMissingRoomID)
}

// Broadcaster delivers a frame to every connection joined to a room,
// except the connection whose id is exclude.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{}, exclude string) error
}

type CollabService interface {
	HandleJoinRoom(ctx context.Context, client *hub.Client, msg *domain.JoinRoomMessage) error
	HandleCodeChange(ctx context.Context, client *hub.Client, msg *domain.CodeChangeMessage) error
	HandleSendChatMessage(ctx context.Context, client *hub.Client, msg *domain.SendChatMessage) error
	HandleGetSessionTimer(ctx context.Context, client *hub.Client, msg *domain.RoomMessage) error
	HandleEndSession(ctx context.Context, client *hub.Client, msg *domain.RoomMessage) error
	HandleConfirmEndSession(ctx context.Context, client *hub.Client, msg *domain.RoomMessage) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error
	GetRoomInfo(ctx context.Context, roomID string) (*domain.RoomInfo, error)
	Stop() error
}
