package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	article  interfaces.ArticleStorage
	analysis interfaces.AnalysisStorage
	position interfaces.PositionStorage
	summary  interfaces.SummaryStorage
	session  interfaces.SessionStorage
	activity interfaces.ActivityStorage
	cache    interfaces.CacheStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		article:  NewArticleStorage(db, logger),
		analysis: NewAnalysisStorage(db, logger),
		position: NewPositionStorage(db, logger),
		summary:  NewSummaryStorage(db, logger),
		session:  NewSessionStorage(db, logger),
		activity: NewActivityStorage(db, logger),
		cache:    NewCacheStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ArticleStorage returns the Article storage interface
func (m *Manager) ArticleStorage() interfaces.ArticleStorage {
	return m.article
}

// AnalysisStorage returns the Analysis storage interface
func (m *Manager) AnalysisStorage() interfaces.AnalysisStorage {
	return m.analysis
}

// PositionStorage returns the Position storage interface
func (m *Manager) PositionStorage() interfaces.PositionStorage {
	return m.position
}

// SummaryStorage returns the Summary storage interface
func (m *Manager) SummaryStorage() interfaces.SummaryStorage {
	return m.summary
}

// SessionStorage returns the Session storage interface
func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.session
}

// ActivityStorage returns the Activity storage interface
func (m *Manager) ActivityStorage() interfaces.ActivityStorage {
	return m.activity
}

// CacheStorage returns the Cache storage interface
func (m *Manager) CacheStorage() interfaces.CacheStorage {
	return m.cache
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
