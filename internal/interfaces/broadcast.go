package interfaces

import (
	"github.com/finsignal/finsignal/internal/models"
)

// Broadcaster fans out session progress events to subscribed connections.
// Delivery is best-effort: the pipeline never blocks on it and clients that
// subscribe late do not receive earlier events.
type Broadcaster interface {
	Broadcast(sessionID string, event models.StatusEvent)
}

// GatewayObserver receives enrichment gateway observations (cache hits and
// misses, provider calls, fallbacks). Passed in at construction so the
// gateway carries no hidden dependency on the audit layer.
type GatewayObserver func(action string, details map[string]interface{})
