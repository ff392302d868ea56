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

// AnalysisStorage implements the enrichment result store over Badger.
type AnalysisStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAnalysisStorage creates a new AnalysisStorage instance
func NewAnalysisStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AnalysisStorage {
	return &AnalysisStorage{
		db:     db,
		logger: logger,
	}
}

// SaveAnalysis persists one per-article enrichment result.
func (s *AnalysisStorage) SaveAnalysis(ctx context.Context, result *models.EnrichmentResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(result.ID, result); err != nil {
		return fmt.Errorf("failed to save analysis result: %w", err)
	}
	return nil
}

// ListAnalysesBySession returns a session's results in creation order.
func (s *AnalysisStorage) ListAnalysesBySession(ctx context.Context, sessionID string) ([]*models.EnrichmentResult, error) {
	var results []models.EnrichmentResult
	err := s.db.Store().Find(&results,
		badgerhold.Where("SessionID").Eq(sessionID).SortBy("CreatedAt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis results: %w", err)
	}
	out := make([]*models.EnrichmentResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}
