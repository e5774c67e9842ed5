package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Service
	FieldService    = "service"
	FieldInstanceID = "instance_id"

	// Collaboration
	FieldConnID        = "conn_id"
	FieldRoomID        = "room_id"
	FieldParticipantID = "participant_id"
	FieldEvent         = "event"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
