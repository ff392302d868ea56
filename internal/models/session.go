package models

import (
	"time"
)

// SessionStage identifies where a pipeline run currently is.
type SessionStage string

const (
	StagePending         SessionStage = "pending"
	StageScraping        SessionStage = "scraping"
	StageFiltering       SessionStage = "filtering"
	StageContentScraping SessionStage = "content_scraping"
	StageStoring         SessionStage = "storing"
	StageAnalyzing       SessionStage = "analyzing"
	StageGenerating      SessionStage = "generating"
	StageSummarizing     SessionStage = "summarizing"
	StageCompleted       SessionStage = "completed"
	StageError           SessionStage = "error"
)

// IsTerminal reports whether the stage ends a session.
func (s SessionStage) IsTerminal() bool {
	return s == StageCompleted || s == StageError
}

// AnalysisSession is one end-to-end pipeline run. Only the orchestrator
// advances Stage; everyone else reads.
type AnalysisSession struct {
	ID            string       `json:"id"`
	Sources       []string     `json:"sources"`
	ModelID       string       `json:"model_id"`
	MaxPositions  int          `json:"max_positions"`
	MinConfidence float64      `json:"min_confidence"`
	HeadlineOnly  bool         `json:"headline_only"`
	Stage         SessionStage `json:"stage"`
	Error         string       `json:"error,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
