package audit

import (
	"context"

	"github.com/weiawesome/wes-io-live/party-service/pkg/log"
)

// Audit actions for party-service.
const (
	ActionJoinRoom      = "party.join_room"
	ActionLeaveRoom     = "party.leave_room"
	ActionDisconnect    = "party.disconnect"
	ActionVideoAccepted = "party.video_accepted"
	ActionAuthFailed    = "party.auth_failed"
	ActionCreateRoom    = "party.create_room"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, userID, roomID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(log.FieldRoomID, roomID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, userID, roomID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(log.FieldRoomID, roomID).
		Str(FieldDetail, detail).
		Msg(msg)
}
