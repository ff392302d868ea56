// Package aggregate turns per-article enrichment results into ranked
// position recommendations and session-level summaries. Everything here is
// deterministic: identical inputs produce identical ordered output.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/finsignal/finsignal/internal/models"
)

// Sentiment thresholds for position mapping. Comparisons are strict, so a
// value sitting exactly on a boundary falls into the weaker bucket.
const (
	strongBuyThreshold   = 0.7
	buyThreshold         = 0.4
	shortThreshold       = -0.4
	strongShortThreshold = -0.7
)

// PositionTypeFor maps an averaged sentiment to its recommendation bucket.
func PositionTypeFor(sentiment float64) models.PositionType {
	switch {
	case sentiment > strongBuyThreshold:
		return models.PositionStrongBuy
	case sentiment > buyThreshold:
		return models.PositionBuy
	case sentiment < strongShortThreshold:
		return models.PositionStrongShort
	case sentiment < shortThreshold:
		return models.PositionShort
	default:
		return models.PositionHold
	}
}

type tickerGroup struct {
	ticker  string
	results []*models.EnrichmentResult
}

// Aggregate groups results by ticker and derives ranked positions.
// The UNKNOWN bucket is never promoted; HOLD mappings and groups below
// minConfidence are dropped; survivors are sorted by confidence descending
// (stable, ties keep group order) and truncated to maxPositions.
func Aggregate(results []*models.EnrichmentResult, maxPositions int, minConfidence float64) []*models.Position {
	groups := groupByTicker(results)

	now := time.Now()
	var positions []*models.Position
	for _, group := range groups {
		if group.ticker == models.TickerUnknown {
			continue
		}

		var sentimentSum, confidenceSum float64
		var catalysts []models.Catalyst
		var articleIDs []string
		sessionID := ""
		for _, r := range group.results {
			sentimentSum += r.Sentiment
			confidenceSum += r.Confidence
			catalysts = append(catalysts, r.Catalysts...)
			if r.ArticleID != "" {
				articleIDs = append(articleIDs, r.ArticleID)
			}
			sessionID = r.SessionID
		}
		n := float64(len(group.results))
		avgSentiment := sentimentSum / n
		avgConfidence := confidenceSum / n

		positionType := PositionTypeFor(avgSentiment)
		if positionType == models.PositionHold {
			continue
		}
		if avgConfidence < minConfidence {
			continue
		}

		positions = append(positions, &models.Position{
			ID:         uuid.New().String(),
			SessionID:  sessionID,
			Ticker:     group.ticker,
			Type:       positionType,
			Confidence: avgConfidence,
			Reasoning:  combineReasoning(group.results),
			Catalysts:  catalysts,
			ArticleIDs: articleIDs,
			CreatedAt:  now,
		})
	}

	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].Confidence > positions[j].Confidence
	})

	if maxPositions > 0 && len(positions) > maxPositions {
		positions = positions[:maxPositions]
	}
	return positions
}

// groupByTicker buckets results preserving first-seen group order.
func groupByTicker(results []*models.EnrichmentResult) []*tickerGroup {
	index := make(map[string]*tickerGroup)
	var groups []*tickerGroup

	for _, r := range results {
		ticker := r.Ticker
		if ticker == "" {
			ticker = models.TickerUnknown
		}
		group, ok := index[ticker]
		if !ok {
			group = &tickerGroup{ticker: ticker}
			index[ticker] = group
			groups = append(groups, group)
		}
		group.results = append(group.results, r)
	}
	return groups
}

// combineReasoning joins the contributing justifications into one, naming
// the number of items behind the call.
func combineReasoning(results []*models.EnrichmentResult) string {
	combined := ""
	for _, r := range results {
		if r.Reasoning == "" {
			continue
		}
		if combined != "" {
			combined += " | "
		}
		combined += r.Reasoning
	}
	if combined == "" {
		return fmt.Sprintf("Based on %d article(s)", len(results))
	}
	return fmt.Sprintf("Based on %d article(s): %s", len(results), combined)
}
