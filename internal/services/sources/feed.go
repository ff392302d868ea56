package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
)

// FeedAdapter scrapes an RSS/Atom feed into normalized articles.
type FeedAdapter struct {
	id        string
	feedURL   string
	fetcher   fetcher
	extractor ContentExtractor
	logger    arbor.ILogger
}

var _ interfaces.SourceAdapter = (*FeedAdapter)(nil)

// NewFeedAdapter creates a structured-feed adapter for one feed URL.
func NewFeedAdapter(id, feedURL, userAgent string, extractor ContentExtractor, logger arbor.ILogger) *FeedAdapter {
	return &FeedAdapter{
		id:        id,
		feedURL:   feedURL,
		fetcher:   fetcher{userAgent: userAgent},
		extractor: extractor,
		logger:    logger,
	}
}

// ID implements SourceAdapter.
func (a *FeedAdapter) ID() string {
	return a.id
}

// FetchItems retrieves and parses the feed. Items without a link are
// skipped; everything else is normalized, with ticker hints extracted from
// titles.
func (a *FeedAdapter) FetchItems(ctx context.Context, transport *http.Client, limiter interfaces.RateLimiter) ([]*models.Article, error) {
	body, err := a.fetcher.get(ctx, transport, limiter.Admit, a.feedURL)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", a.feedURL, err)
	}

	now := time.Now()
	articles := make([]*models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		article := &models.Article{
			ID:          uuid.New().String(),
			SourceID:    a.id,
			URL:         item.Link,
			Title:       item.Title,
			Summary:     item.Description,
			TickerHint:  ExtractTickerHint(item.Title),
			PublishedAt: published,
			Metadata: map[string]interface{}{
				"feed_title": feed.Title,
			},
			CreatedAt: now,
		}
		if len(item.Categories) > 0 {
			article.Metadata["categories"] = item.Categories
		}
		articles = append(articles, article)
	}

	a.logger.Debug().
		Str("source", a.id).
		Int("items", len(articles)).
		Msg("Feed fetch complete")

	return articles, nil
}

// FetchContent retrieves the full article body behind one feed item.
func (a *FeedAdapter) FetchContent(ctx context.Context, transport *http.Client, url string, limiter interfaces.RateLimiter) (string, error) {
	body, err := a.fetcher.get(ctx, transport, limiter.Admit, url)
	if err != nil {
		return "", err
	}
	return a.extractor.Extract(url, body)
}
