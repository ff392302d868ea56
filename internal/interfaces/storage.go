package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/finsignal/finsignal/internal/models"
)

// ErrNotFound is returned by storage lookups that matched nothing.
var ErrNotFound = errors.New("not found")

// ArticleStorage persists normalized articles. The URL is the natural key.
type ArticleStorage interface {
	SaveArticle(ctx context.Context, article *models.Article) error

	GetArticleByURL(ctx context.Context, url string) (*models.Article, error)

	// FindOrCreate commits a new article unless one already exists with the
	// same URL, or with a near-identical title on the same calendar day.
	// Returns the stored article and whether it was newly created.
	FindOrCreate(ctx context.Context, article *models.Article) (*models.Article, bool, error)

	ListArticles(ctx context.Context, limit int) ([]*models.Article, error)
}

// AnalysisStorage persists per-article enrichment results.
type AnalysisStorage interface {
	SaveAnalysis(ctx context.Context, result *models.EnrichmentResult) error
	ListAnalysesBySession(ctx context.Context, sessionID string) ([]*models.EnrichmentResult, error)
}

// PositionStorage persists derived position recommendations.
type PositionStorage interface {
	SavePosition(ctx context.Context, position *models.Position) error
	ListPositionsBySession(ctx context.Context, sessionID string) ([]*models.Position, error)
}

// SummaryStorage persists the per-session market summary.
type SummaryStorage interface {
	SaveSummary(ctx context.Context, summary *models.MarketSummary) error
	GetSummaryBySession(ctx context.Context, sessionID string) (*models.MarketSummary, error)
}

// SessionStorage persists analysis sessions. Stage updates come only from
// the orchestrator.
type SessionStorage interface {
	SaveSession(ctx context.Context, session *models.AnalysisSession) error
	GetSession(ctx context.Context, id string) (*models.AnalysisSession, error)
	UpdateSession(ctx context.Context, session *models.AnalysisSession) error
}

// ActivityStorage is the audit sink. Append failures must be swallowed by
// callers; they never fail the pipeline.
type ActivityStorage interface {
	Append(ctx context.Context, entry *models.ActivityLog) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.ActivityLog, error)
}

// CacheStorage is the content-addressed TTL store behind the enrichment
// gateway. Get must not return expired entries.
type CacheStorage interface {
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	Set(ctx context.Context, entry *models.CacheEntry) error
	Delete(ctx context.Context, key string) error

	// DeleteExpired removes entries whose TTL elapsed before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// StorageManager aggregates the individual stores over one database handle.
type StorageManager interface {
	ArticleStorage() ArticleStorage
	AnalysisStorage() AnalysisStorage
	PositionStorage() PositionStorage
	SummaryStorage() SummaryStorage
	SessionStorage() SessionStorage
	ActivityStorage() ActivityStorage
	CacheStorage() CacheStorage
	Close() error
}
