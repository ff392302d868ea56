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

// ActivityStorage implements the audit trail over Badger.
type ActivityStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewActivityStorage creates a new ActivityStorage instance
func NewActivityStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ActivityStorage {
	return &ActivityStorage{
		db:     db,
		logger: logger,
	}
}

// Append adds one entry to the audit trail.
func (s *ActivityStorage) Append(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to append activity entry: %w", err)
	}
	return nil
}

// ListBySession returns up to limit entries for a session, oldest first.
func (s *ActivityStorage) ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.ActivityLog, error) {
	var entries []models.ActivityLog
	query := badgerhold.Where("SessionID").Eq(sessionID).SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list activity entries: %w", err)
	}
	out := make([]*models.ActivityLog, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	return out, nil
}
