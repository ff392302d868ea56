package models

import (
	"time"
)

// AnalysisKind distinguishes the three call kinds routed through the
// enrichment gateway. It participates in cache key derivation.
type AnalysisKind string

const (
	AnalysisKindHeadlineFilter AnalysisKind = "headline_filter"
	AnalysisKindSentiment      AnalysisKind = "sentiment"
	AnalysisKindMarketSummary  AnalysisKind = "market_summary"
)

// Catalyst is a discrete market-moving reason extracted from an article.
type Catalyst struct {
	Type         string `json:"type"`
	Description  string `json:"description"`
	Impact       string `json:"impact"`       // "positive", "negative", "neutral"
	Significance string `json:"significance"` // "low", "medium", "high"
}

// EnrichmentResult is the validated, clamped sentiment analysis for one
// article. Immutable once produced by the gateway.
type EnrichmentResult struct {
	ID         string     `json:"id"`
	ArticleID  string     `json:"article_id"`
	ArticleURL string     `json:"article_url"`
	Ticker     string     `json:"ticker"`     // "UNKNOWN" when unresolved
	Sentiment  float64    `json:"sentiment"`  // clamped to [-1, 1]
	Confidence float64    `json:"confidence"` // clamped to [0, 1]
	Catalysts  []Catalyst `json:"catalysts,omitempty"`
	Reasoning  string     `json:"reasoning"`
	ModelID    string     `json:"model_id"`
	SessionID  string     `json:"session_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TickerUnknown is the bucket for results without a resolved symbol.
// It is never promoted to a position.
const TickerUnknown = "UNKNOWN"
