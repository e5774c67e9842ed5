package domain

import "time"

// WebSocket message types from client.
const (
	MsgTypeJoinRoom          = "join_room"
	MsgTypeCodeChange        = "code_change"
	MsgTypeSendChatMessage   = "send_chat_message"
	MsgTypeGetSessionTimer   = "get_session_timer"
	MsgTypeEndSession        = "end_session"
	MsgTypeConfirmEndSession = "confirm_end_session"
	MsgTypePing              = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeCodeUpdate        = "code_update"
	MsgTypeUpdateChatMessage = "update_chat_message"
	MsgTypeUpdateChatList    = "update_chat_list"
	MsgTypeSessionTimer      = "session_timer"
	MsgTypePartnerConnection = "partner_connection"
	MsgTypeError             = "error"
	MsgTypePong              = "pong"
)

// Error codes
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeNotInRoom        = "NOT_IN_ROOM"
	ErrCodeAlreadyJoined    = "ALREADY_JOINED"
	ErrCodeRoomMismatch     = "ROOM_MISMATCH"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// ChatMessage is one chat line. UUID is chosen by the client and only
// identifies the line; ordering is the order of append.
type ChatMessage struct {
	UUID     string `json:"uuid"`
	Content  string `json:"content"`
	SenderID string `json:"sender_id"`
}

// Client -> Server messages

// JoinRoomMessage proposes SessionDeadline; it is only stored when the room
// has no deadline yet.
type JoinRoomMessage struct {
	Type            string     `json:"type"`
	ParticipantID   string     `json:"participant_id"`
	RoomID          string     `json:"room_id"`
	SessionDeadline *time.Time `json:"session_deadline,omitempty"`
}

type CodeChangeMessage struct {
	Type    string  `json:"type"`
	RoomID  string  `json:"room_id"`
	Content *string `json:"content"`
}

type SendChatMessage struct {
	Type    string       `json:"type"`
	RoomID  string       `json:"room_id"`
	Message *ChatMessage `json:"message"`
}

// RoomMessage covers the events whose only field is the room id.
type RoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// Server -> Client messages

type CodeUpdateMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type UpdateChatMessage struct {
	Type     string `json:"type"`
	UUID     string `json:"uuid"`
	Content  string `json:"content"`
	SenderID string `json:"sender_id"`
}

type UpdateChatListMessage struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

type SessionTimerMessage struct {
	Type     string     `json:"type"`
	Deadline *time.Time `json:"deadline"`
}

type EndSessionMessage struct {
	Type            string     `json:"type"`
	Content         string     `json:"content"`
	SessionDeadline *time.Time `json:"session_deadline,omitempty"`
}

type PartnerConnectionMessage struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participant_id"`
	Connected     bool   `json:"connected"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

func NewCodeUpdate(content string) *CodeUpdateMessage {
	return &CodeUpdateMessage{Type: MsgTypeCodeUpdate, Content: content}
}

func NewUpdateChatMessage(msg ChatMessage) *UpdateChatMessage {
	return &UpdateChatMessage{
		Type:     MsgTypeUpdateChatMessage,
		UUID:     msg.UUID,
		Content:  msg.Content,
		SenderID: msg.SenderID,
	}
}

func NewUpdateChatList(messages []ChatMessage) *UpdateChatListMessage {
	return &UpdateChatListMessage{Type: MsgTypeUpdateChatList, Messages: messages}
}

// NewSessionTimer builds a timer reply. A nil deadline is sent as null,
// meaning the room has none.
func NewSessionTimer(deadline *time.Time) *SessionTimerMessage {
	return &SessionTimerMessage{Type: MsgTypeSessionTimer, Deadline: deadline}
}

func NewPartnerConnection(participantID string, connected bool) *PartnerConnectionMessage {
	return &PartnerConnectionMessage{
		Type:          MsgTypePartnerConnection,
		ParticipantID: participantID,
		Connected:     connected,
	}
}
