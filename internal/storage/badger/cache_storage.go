package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
)

// CacheStorage implements the enrichment response cache over Badger.
// Expiry is enforced on read; a scheduled janitor reclaims the rest.
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a live cache entry. Expired entries are deleted on sight and
// reported as not found.
func (s *CacheStorage) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := s.db.Store().Get(key, &entry)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if entry.Expired(time.Now()) {
		if err := s.db.Store().Delete(key, &models.CacheEntry{}); err != nil && err != badgerhold.ErrNotFound {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete expired cache entry")
		}
		return nil, interfaces.ErrNotFound
	}

	return &entry, nil
}

// Set inserts or replaces a cache entry.
func (s *CacheStorage) Set(ctx context.Context, entry *models.CacheEntry) error {
	if entry.Key == "" {
		return fmt.Errorf("cache key is required")
	}
	if err := s.db.Store().Upsert(entry.Key, entry); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry. Deleting a missing key is not an error.
func (s *CacheStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Delete(key, &models.CacheEntry{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes all entries whose TTL elapsed before now.
func (s *CacheStorage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var expired []models.CacheEntry
	err := s.db.Store().Find(&expired, badgerhold.Where("ExpiresAt").Lt(now))
	if err != nil {
		return 0, fmt.Errorf("failed to query expired cache entries: %w", err)
	}

	removed := 0
	for i := range expired {
		if err := s.db.Store().Delete(expired[i].Key, &models.CacheEntry{}); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			s.logger.Warn().Err(err).Str("key", expired[i].Key).Msg("Failed to delete expired cache entry")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Debug().Int("count", removed).Msg("Expired cache entries removed")
	}
	return removed, nil
}
