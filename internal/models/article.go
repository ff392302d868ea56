package models

import (
	"time"
)

// Article represents a normalized news item produced by a source adapter.
// The URL is the natural key: two articles with the same URL are the same
// story regardless of which source emitted them.
type Article struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"` // Adapter that produced the item
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Content     string    `json:"content,omitempty"` // Full body, markdown, populated by content scraping
	TickerHint  string    `json:"ticker_hint,omitempty"`
	PublishedAt time.Time `json:"published_at"`

	// Origin metadata (source-specific data: feed category, table row index, ...)
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PublishedDay returns the article's publication date truncated to a UTC
// calendar day, and whether a usable date was present at all.
func (a *Article) PublishedDay() (time.Time, bool) {
	if a.PublishedAt.IsZero() {
		return time.Time{}, false
	}
	t := a.PublishedAt.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}
