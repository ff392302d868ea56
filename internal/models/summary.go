package models

import (
	"time"
)

// SummaryPayload is the structured body of a market summary, whether it came
// from a model call or from the deterministic fallback aggregation.
type SummaryPayload struct {
	OverallSentiment string   `json:"overall_sentiment"` // "positive", "negative", "mixed"
	Summary          string   `json:"summary"`
	StocksToWatch    []string `json:"stocks_to_watch,omitempty"`
	KeyCatalysts     []string `json:"key_catalysts,omitempty"`
	RiskFactors      []string `json:"risk_factors,omitempty"`
}

// MarketSummary is the session-level digest. One per session, immutable.
type MarketSummary struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Payload   SummaryPayload `json:"payload"`
	ModelID   string         `json:"model_id"` // "fallback" when deterministically generated
	// Items contributed per source adapter, e.g. {"yahoo_finance": 12}
	DataSourceCounts map[string]int `json:"data_source_counts,omitempty"`
	HeadlineOnly     bool           `json:"headline_only"`
	CreatedAt        time.Time      `json:"created_at"`
}
