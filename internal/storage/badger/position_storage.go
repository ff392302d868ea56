package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
)

// PositionStorage implements the position store over Badger.
type PositionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPositionStorage creates a new PositionStorage instance
func NewPositionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PositionStorage {
	return &PositionStorage{
		db:     db,
		logger: logger,
	}
}

// SavePosition persists one derived position.
func (s *PositionStorage) SavePosition(ctx context.Context, position *models.Position) error {
	if position.ID == "" {
		position.ID = uuid.New().String()
	}
	if position.CreatedAt.IsZero() {
		position.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(position.ID, position); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

// ListPositionsBySession returns a session's positions ranked by confidence,
// highest first.
func (s *PositionStorage) ListPositionsBySession(ctx context.Context, sessionID string) ([]*models.Position, error) {
	var positions []models.Position
	err := s.db.Store().Find(&positions, badgerhold.Where("SessionID").Eq(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].Confidence > positions[j].Confidence
	})
	out := make([]*models.Position, len(positions))
	for i := range positions {
		out[i] = &positions[i]
	}
	return out, nil
}
