package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
)

// SummaryStorage implements the market summary store over Badger. Summaries
// are keyed by session so each session holds at most one.
type SummaryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSummaryStorage creates a new SummaryStorage instance
func NewSummaryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SummaryStorage {
	return &SummaryStorage{
		db:     db,
		logger: logger,
	}
}

// SaveSummary persists the session summary.
func (s *SummaryStorage) SaveSummary(ctx context.Context, summary *models.MarketSummary) error {
	if summary.SessionID == "" {
		return fmt.Errorf("summary session ID is required")
	}
	if summary.ID == "" {
		summary.ID = uuid.New().String()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(summary.SessionID, summary); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// GetSummaryBySession retrieves the summary for one session.
func (s *SummaryStorage) GetSummaryBySession(ctx context.Context, sessionID string) (*models.MarketSummary, error) {
	var summary models.MarketSummary
	err := s.db.Store().Get(sessionID, &summary)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return &summary, nil
}
