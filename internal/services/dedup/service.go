// Package dedup collapses near-duplicate articles: the same story picked up
// by several outlets at slightly different times.
package dedup

import (
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/models"
)

// SimilarityThreshold is the fuzzy-title ratio at or above which two
// headlines are treated as the same story.
const SimilarityThreshold = 0.85

// NormalizeTitle prepares a headline for comparison.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// TitlesSimilar reports whether two already-normalized titles clear the
// similarity threshold.
func TitlesSimilar(a, b string) bool {
	return strutil.Similarity(a, b, metrics.NewSorensenDice()) >= SimilarityThreshold
}

// Service removes near-duplicate articles from a scraped batch.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a deduplication service.
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

type accepted struct {
	title  string
	day    time.Time
	hasDay bool
}

// Dedupe returns the order-preserving first-seen-wins subset of items.
// An item is a duplicate when its normalized title is similar to an accepted
// item's AND both published on the same calendar day; when either side has
// no parseable date, similarity alone decides. Untitled items are dropped.
//
// Quadratic in batch size, which is fine at tens to low hundreds of items
// per session.
func (s *Service) Dedupe(items []*models.Article) []*models.Article {
	var kept []*models.Article
	var seen []accepted

	dropped := 0
	for _, item := range items {
		title := NormalizeTitle(item.Title)
		if title == "" {
			dropped++
			continue
		}

		day, hasDay := item.PublishedDay()

		duplicate := false
		for _, prev := range seen {
			if !TitlesSimilar(title, prev.title) {
				continue
			}
			if !hasDay || !prev.hasDay || day.Equal(prev.day) {
				duplicate = true
				break
			}
		}
		if duplicate {
			dropped++
			continue
		}

		kept = append(kept, item)
		seen = append(seen, accepted{title: title, day: day, hasDay: hasDay})
	}

	if dropped > 0 {
		s.logger.Debug().
			Int("input", len(items)).
			Int("kept", len(kept)).
			Int("dropped", dropped).
			Msg("Deduplication complete")
	}

	return kept
}
