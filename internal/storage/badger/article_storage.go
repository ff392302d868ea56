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
	"github.com/finsignal/finsignal/internal/services/dedup"
)

// ArticleStorage implements the article store over Badger. Articles are
// keyed by URL.
type ArticleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewArticleStorage creates a new ArticleStorage instance
func NewArticleStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ArticleStorage {
	return &ArticleStorage{
		db:     db,
		logger: logger,
	}
}

// SaveArticle inserts or updates an article by URL.
func (s *ArticleStorage) SaveArticle(ctx context.Context, article *models.Article) error {
	if article.URL == "" {
		return fmt.Errorf("article URL is required")
	}
	if article.ID == "" {
		article.ID = uuid.New().String()
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(article.URL, article); err != nil {
		return fmt.Errorf("failed to save article: %w", err)
	}
	return nil
}

// GetArticleByURL retrieves one article by its URL.
func (s *ArticleStorage) GetArticleByURL(ctx context.Context, url string) (*models.Article, error) {
	var article models.Article
	err := s.db.Store().Get(url, &article)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return &article, nil
}

// FindOrCreate commits the article unless a duplicate already exists. A
// duplicate is either the same URL, or a near-identical title published on
// the same calendar day. Returns the stored article and whether a new row
// was created.
func (s *ArticleStorage) FindOrCreate(ctx context.Context, article *models.Article) (*models.Article, bool, error) {
	if existing, err := s.GetArticleByURL(ctx, article.URL); err == nil {
		return existing, false, nil
	} else if err != interfaces.ErrNotFound {
		return nil, false, err
	}

	if day, ok := article.PublishedDay(); ok {
		next := day.Add(24 * time.Hour)
		var sameDay []models.Article
		err := s.db.Store().Find(&sameDay,
			badgerhold.Where("PublishedAt").Ge(day).And("PublishedAt").Lt(next))
		if err != nil {
			return nil, false, fmt.Errorf("failed to query same-day articles: %w", err)
		}
		for i := range sameDay {
			if dedup.TitlesSimilar(article.Title, sameDay[i].Title) {
				s.logger.Debug().
					Str("url", article.URL).
					Str("duplicate_of", sameDay[i].URL).
					Msg("Article title matches a stored same-day article, not creating")
				return &sameDay[i], false, nil
			}
		}
	}

	if err := s.SaveArticle(ctx, article); err != nil {
		return nil, false, err
	}
	return article, true, nil
}

// ListArticles returns up to limit articles, newest first by publication.
func (s *ArticleStorage) ListArticles(ctx context.Context, limit int) ([]*models.Article, error) {
	var articles []models.Article
	query := badgerhold.Where("URL").Ne("").SortBy("PublishedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&articles, query); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	out := make([]*models.Article, len(articles))
	for i := range articles {
		out[i] = &articles[i]
	}
	return out, nil
}
