package audit

import (
	"context"

	"github.com/weiawesome/wes-io-collab/pkg/log"
)

// Audit actions for collab-service.
const (
	ActionJoinRoom          = "collab.join_room"
	ActionSendChatMessage   = "collab.send_chat_message"
	ActionEndSession        = "collab.end_session"
	ActionConfirmEndSession = "collab.confirm_end_session"
	ActionPurgeRoom         = "collab.purge_room"
	ActionDisconnect        = "collab.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, roomID, participantID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoomID, roomID).
		Str(log.FieldParticipantID, participantID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, roomID, participantID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldRoomID, roomID).
		Str(log.FieldParticipantID, participantID).
		Str(FieldDetail, detail).
		Msg(msg)
}
