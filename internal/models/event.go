package models

import (
	"time"
)

// StatusEvent is the wire shape broadcast to subscribed clients on every
// stage transition. The field set is part of the client contract.
type StatusEvent struct {
	Type      string                 `json:"type"` // always "analysis_status"
	SessionID string                 `json:"session_id"`
	Status    string                 `json:"status"`
	Message   string                 `json:"message"`
	Timestamp string                 `json:"timestamp"` // UTC, RFC 3339
	Data      map[string]interface{} `json:"data"`
}

// NewStatusEvent builds a broadcast event for a session stage transition.
func NewStatusEvent(sessionID string, stage SessionStage, message string, data map[string]interface{}) StatusEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return StatusEvent{
		Type:      "analysis_status",
		SessionID: sessionID,
		Status:    string(stage),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
}
