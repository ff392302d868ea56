package models

import (
	"time"
)

// PositionType is the recommendation bucket an averaged sentiment maps to.
// HOLD exists only as a mapping outcome; HOLD positions are dropped before
// storage and never appear in persisted output.
type PositionType string

const (
	PositionStrongBuy   PositionType = "STRONG_BUY"
	PositionBuy         PositionType = "BUY"
	PositionHold        PositionType = "HOLD"
	PositionShort       PositionType = "SHORT"
	PositionStrongShort PositionType = "STRONG_SHORT"
)

// IsShort reports whether the position bets on price decline.
func (p PositionType) IsShort() bool {
	return p == PositionShort || p == PositionStrongShort
}

// Position is a ranked per-ticker trading recommendation derived from a
// session's enrichment results. Never mutated after creation.
type Position struct {
	ID         string       `json:"id"`
	SessionID  string       `json:"session_id"`
	Ticker     string       `json:"ticker"`
	Type       PositionType `json:"position_type"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
	Catalysts  []Catalyst   `json:"catalysts,omitempty"`
	ArticleIDs []string     `json:"article_ids,omitempty"` // supporting items
	CreatedAt  time.Time    `json:"created_at"`
}
