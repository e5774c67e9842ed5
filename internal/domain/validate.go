package domain

import "errors"

var (
	errMissingRoomID        = errors.New("room_id is required")
	errMissingParticipantID = errors.New("participant_id is required")
	errMissingContent       = errors.New("content is required")
	errMissingMessage       = errors.New("message is required")
	errMissingMessageUUID   = errors.New("message.uuid is required")
)

func (m *JoinRoomMessage) Validate() error {
	if m.ParticipantID == "" {
		return errMissingParticipantID
	}
	if m.RoomID == "" {
		return errMissingRoomID
	}
	return nil
}

// Validate accepts an empty document; only an absent content field is
// rejected.
func (m *CodeChangeMessage) Validate() error {
	if m.RoomID == "" {
		return errMissingRoomID
	}
	if m.Content == nil {
		return errMissingContent
	}
	return nil
}

func (m *SendChatMessage) Validate() error {
	if m.RoomID == "" {
		return errMissingRoomID
	}
	if m.Message == nil {
		return errMissingMessage
	}
	if m.Message.UUID == "" {
		return errMissingMessageUUID
	}
	return nil
}

// Validate allows an empty room id; the connection's joined room is used.
func (m *RoomMessage) Validate() error {
	return nil
}
