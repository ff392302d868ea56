package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  {\"a\": 1}  ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.input))
		})
	}
}

func TestParseResponseSentiment(t *testing.T) {
	raw := "```json\n" + `{
		"ticker": "AAPL",
		"sentiment_score": 0.8,
		"confidence": 0.9,
		"catalysts": [{"type": "earnings", "description": "beat", "impact": "positive", "significance": "high"}],
		"reasoning": "strong quarter"
	}` + "\n```"

	var parsed rawSentimentResponse
	require.NoError(t, parseResponse(raw, &parsed))
	assert.Equal(t, "AAPL", parsed.Ticker)
	assert.Equal(t, 0.8, *parsed.Sentiment)
	assert.Len(t, parsed.Catalysts, 1)
}

func TestParseResponseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not json", "the market looks good"},
		{"missing required fields", `{"ticker": "AAPL"}`},
		{"missing sentiment score", `{"ticker": "AAPL", "confidence": 0.9, "reasoning": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var parsed rawSentimentResponse
			assert.Error(t, parseResponse(tt.input, &parsed))
		})
	}
}

func TestParseResponseFilterAllowsEmptyIndices(t *testing.T) {
	var parsed rawFilterResponse
	require.NoError(t, parseResponse(`{"relevant_indices": []}`, &parsed))
	assert.Empty(t, parsed.RelevantIndices)
}

func TestParseResponseSummarySentimentEnum(t *testing.T) {
	var parsed rawSummaryResponse
	err := parseResponse(`{"overall_sentiment": "bullish", "summary": "x"}`, &parsed)
	assert.Error(t, err, "overall_sentiment outside the closed set is rejected")

	require.NoError(t, parseResponse(`{"overall_sentiment": "mixed", "summary": "x"}`, &parsed))
	assert.Equal(t, "mixed", parsed.OverallSentiment)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, clamp(3.5, -1, 1))
	assert.Equal(t, -1.0, clamp(-2.0, -1, 1))
	assert.Equal(t, 0.5, clamp(0.5, -1, 1))
	assert.Equal(t, 0.0, clamp(-0.5, 0, 1))
}
