package aggregate

import (
	"fmt"
	"sort"

	"github.com/finsignal/finsignal/internal/models"
)

// Bands for the descriptive overall sentiment of the fallback summary.
const (
	positiveBand = 0.3
	negativeBand = -0.3
)

// FallbackSummary builds a deterministic market summary without any model
// call. Used when the summary call kind permanently fails, so the pipeline
// always terminates with well-formed output.
func FallbackSummary(results []*models.EnrichmentResult, positions []*models.Position, topN int) models.SummaryPayload {
	payload := models.SummaryPayload{
		OverallSentiment: "mixed",
	}

	if len(results) == 0 {
		payload.Summary = "No enrichment results were available for this session."
		return payload
	}

	var sentimentSum float64
	for _, r := range results {
		sentimentSum += r.Sentiment
	}
	mean := sentimentSum / float64(len(results))
	switch {
	case mean > positiveBand:
		payload.OverallSentiment = "positive"
	case mean < negativeBand:
		payload.OverallSentiment = "negative"
	}

	payload.StocksToWatch = stocksToWatch(results, topN)
	payload.KeyCatalysts = distinctCatalysts(results)
	payload.RiskFactors = riskFactors(mean, positions)
	payload.Summary = fmt.Sprintf(
		"Aggregated view across %d analyzed article(s): overall sentiment is %s (mean score %.2f), %d position(s) recommended.",
		len(results), payload.OverallSentiment, mean, len(positions),
	)

	return payload
}

type tickerStat struct {
	ticker        string
	mentions      int
	confidenceSum float64
	firstIndex    int
}

// stocksToWatch ranks tickers by mention count, then total confidence, then
// first appearance, and keeps the top N.
func stocksToWatch(results []*models.EnrichmentResult, topN int) []string {
	index := make(map[string]*tickerStat)
	var stats []*tickerStat

	for i, r := range results {
		if r.Ticker == "" || r.Ticker == models.TickerUnknown {
			continue
		}
		stat, ok := index[r.Ticker]
		if !ok {
			stat = &tickerStat{ticker: r.Ticker, firstIndex: i}
			index[r.Ticker] = stat
			stats = append(stats, stat)
		}
		stat.mentions++
		stat.confidenceSum += r.Confidence
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].mentions != stats[j].mentions {
			return stats[i].mentions > stats[j].mentions
		}
		if stats[i].confidenceSum != stats[j].confidenceSum {
			return stats[i].confidenceSum > stats[j].confidenceSum
		}
		return stats[i].firstIndex < stats[j].firstIndex
	})

	if topN > 0 && len(stats) > topN {
		stats = stats[:topN]
	}

	watch := make([]string, 0, len(stats))
	for _, stat := range stats {
		watch = append(watch, stat.ticker)
	}
	return watch
}

// distinctCatalysts keeps the first occurrence of each catalyst type.
func distinctCatalysts(results []*models.EnrichmentResult) []string {
	seen := make(map[string]bool)
	var catalysts []string
	for _, r := range results {
		for _, c := range r.Catalysts {
			if c.Type == "" || seen[c.Type] {
				continue
			}
			seen[c.Type] = true
			catalysts = append(catalysts, c.Type)
		}
	}
	return catalysts
}

// riskFactors applies simple heuristics over the aggregate shape.
func riskFactors(meanSentiment float64, positions []*models.Position) []string {
	var risks []string
	if meanSentiment < negativeBand {
		risks = append(risks, "Overall news sentiment is negative")
	}

	if len(positions) > 0 {
		shorts := 0
		for _, p := range positions {
			if p.Type.IsShort() {
				shorts++
			}
		}
		if float64(shorts) > float64(len(positions))/2 {
			risks = append(risks, "Majority of recommended positions are short")
		}
	}
	return risks
}
