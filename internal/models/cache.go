package models

import (
	"time"
)

// CacheEntry is a content-addressed enrichment result. The key is a pure
// function of the canonical payload hash, model id and analysis kind, so
// identical semantic requests hit the same entry regardless of input order.
type CacheEntry struct {
	Key       string       `json:"key" badgerhold:"key"`
	Kind      AnalysisKind `json:"kind"`
	ModelID   string       `json:"model_id"`
	Value     []byte       `json:"value"` // JSON-encoded result for the kind
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Expired reports whether the entry's TTL has elapsed.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
