package models

import (
	"time"
)

// ActivityLog is one entry in the audit trail. Appends are fire-and-forget;
// a failed append never fails the operation that produced it.
type ActivityLog struct {
	ID        string                 `json:"id"`
	Level     string                 `json:"level"`    // "info", "warn", "error"
	Category  string                 `json:"category"` // "scraping", "enrichment", "cache", "pipeline"
	Action    string                 `json:"action"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
