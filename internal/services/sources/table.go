package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
)

// TableAdapter scrapes a site whose listing page is a plain HTML table of
// headlines. When the expected structure is absent the adapter returns an
// empty result, never placeholder rows.
type TableAdapter struct {
	id        string
	pageURL   string
	fetcher   fetcher
	extractor ContentExtractor
	logger    arbor.ILogger
}

var _ interfaces.SourceAdapter = (*TableAdapter)(nil)

// NewTableAdapter creates a tabular-HTML adapter for one listing page.
func NewTableAdapter(id, pageURL, userAgent string, extractor ContentExtractor, logger arbor.ILogger) *TableAdapter {
	return &TableAdapter{
		id:        id,
		pageURL:   pageURL,
		fetcher:   fetcher{userAgent: userAgent},
		extractor: extractor,
		logger:    logger,
	}
}

// ID implements SourceAdapter.
func (a *TableAdapter) ID() string {
	return a.id
}

// FetchItems parses the listing table. Rows need at least a linked headline
// cell; a timestamp cell is used when present.
func (a *TableAdapter) FetchItems(ctx context.Context, transport *http.Client, limiter interfaces.RateLimiter) ([]*models.Article, error) {
	body, err := a.fetcher.get(ctx, transport, limiter.Admit, a.pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", a.pageURL, err)
	}

	rows := doc.Find("table tr")
	if rows.Length() == 0 {
		// Site structure changed. Surface the condition instead of
		// inventing data.
		a.logger.Warn().
			Str("source", a.id).
			Str("url", a.pageURL).
			Msg("Listing table not found, adapter yielded nothing")
		return nil, nil
	}

	base, _ := url.Parse(a.pageURL)
	now := time.Now()
	var articles []*models.Article

	rows.Each(func(i int, row *goquery.Selection) {
		link := row.Find("td a").First()
		href, ok := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if !ok || title == "" {
			return
		}

		absolute := href
		if base != nil {
			if parsed, err := url.Parse(href); err == nil {
				absolute = base.ResolveReference(parsed).String()
			}
		}

		published := parseRowTime(row, now)

		articles = append(articles, &models.Article{
			ID:          uuid.New().String(),
			SourceID:    a.id,
			URL:         absolute,
			Title:       title,
			TickerHint:  ExtractTickerHint(title),
			PublishedAt: published,
			Metadata: map[string]interface{}{
				"row_index": i,
			},
			CreatedAt: now,
		})
	})

	a.logger.Debug().
		Str("source", a.id).
		Int("items", len(articles)).
		Msg("Table fetch complete")

	return articles, nil
}

// FetchContent retrieves the full article body behind one listing row.
func (a *TableAdapter) FetchContent(ctx context.Context, transport *http.Client, url string, limiter interfaces.RateLimiter) (string, error) {
	body, err := a.fetcher.get(ctx, transport, limiter.Admit, url)
	if err != nil {
		return "", err
	}
	return a.extractor.Extract(url, body)
}

// rowTimeLayouts covers the timestamp formats seen across listing tables.
var rowTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02",
	"Jan 2, 2006",
	"01/02/2006",
}

// parseRowTime pulls a publication time from the row's time cell, falling
// back to the scrape time when absent or unparseable.
func parseRowTime(row *goquery.Selection, fallback time.Time) time.Time {
	text := strings.TrimSpace(row.Find("td.time, td.date, time").First().Text())
	if text == "" {
		return fallback
	}
	for _, layout := range rowTimeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return fallback
}
