package enrichment

import (
	"fmt"
	"strings"

	"github.com/finsignal/finsignal/internal/models"
)

// buildFilterPrompt asks the model to pick the market-relevant headlines.
func buildFilterPrompt(titles []string, limit int) string {
	var sb strings.Builder
	sb.WriteString("You are a financial news analyst. From the numbered headlines below, ")
	fmt.Fprintf(&sb, "select the at most %d most market-relevant ones for equity trading decisions.\n", limit)
	sb.WriteString("Respond with only a JSON object: {\"relevant_indices\": [<0-based indices>]}\n\n")
	for i, title := range titles {
		fmt.Fprintf(&sb, "%d. %s\n", i, title)
	}
	return sb.String()
}

// buildSentimentPrompt asks the model for a structured sentiment read of one
// article.
func buildSentimentPrompt(article *models.Article) string {
	var sb strings.Builder
	sb.WriteString("You are a financial news analyst. Analyze the article below and respond with only a JSON object of this exact shape:\n")
	sb.WriteString(`{"ticker": "<symbol or UNKNOWN>", "sentiment_score": <-1..1>, "confidence": <0..1>, "catalysts": [{"type": "", "description": "", "impact": "positive|negative|neutral", "significance": "low|medium|high"}], "reasoning": ""}`)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", article.Title)
	if article.TickerHint != "" {
		fmt.Fprintf(&sb, "Ticker hint: %s\n", article.TickerHint)
	}
	if article.Content != "" {
		fmt.Fprintf(&sb, "\n%s\n", article.Content)
	} else if article.Summary != "" {
		fmt.Fprintf(&sb, "\n%s\n", article.Summary)
	}
	return sb.String()
}

// buildSummaryPrompt asks the model for a session-level market digest.
func buildSummaryPrompt(results []*models.EnrichmentResult, positions []*models.Position) string {
	var sb strings.Builder
	sb.WriteString("You are a financial news analyst. Given the per-article sentiment results and derived positions below, write a market summary.\n")
	sb.WriteString("Respond with only a JSON object of this exact shape:\n")
	sb.WriteString(`{"overall_sentiment": "positive|negative|mixed", "summary": "", "stocks_to_watch": [], "key_catalysts": [], "risk_factors": []}`)
	sb.WriteString("\n\nSentiment results:\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "- %s: score %.2f, confidence %.2f: %s\n", r.Ticker, r.Sentiment, r.Confidence, r.Reasoning)
	}
	if len(positions) > 0 {
		sb.WriteString("\nDerived positions:\n")
		for _, p := range positions {
			fmt.Fprintf(&sb, "- %s %s (confidence %.2f)\n", p.Ticker, p.Type, p.Confidence)
		}
	}
	return sb.String()
}
