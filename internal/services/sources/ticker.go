package sources

import (
	"regexp"
	"strings"
)

// Ticker hints appear in headlines in a few recurring shapes:
// "(NASDAQ: AAPL)", "[AAPL]", "AAPL: quarterly results", "$TSLA surges".
var tickerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\(([A-Z]{1,5})\)`),
	regexp.MustCompile(`\((?:NYSE|NASDAQ|ASX|LSE):\s*([A-Z]{1,5})\)`),
	regexp.MustCompile(`\[([A-Z]{1,5})\]`),
	regexp.MustCompile(`\$([A-Z]{1,5})\b`),
	regexp.MustCompile(`^([A-Z]{2,5}):\s`),
}

// Exchange-prefixed form, matched first because it is the least ambiguous.
var exchangeTickerPattern = regexp.MustCompile(`(?:NYSE|NASDAQ|ASX|LSE):\s*([A-Z]{1,5})`)

// Words that match the ticker shape but never are one.
var tickerStopwords = map[string]bool{
	"CEO": true, "CFO": true, "IPO": true, "ETF": true, "SEC": true,
	"USA": true, "USD": true, "GDP": true, "AI": true, "Q": true,
	"EPS": true, "NYSE": true, "UPDATE": true, "NEWS": true,
}

// ExtractTickerHint pulls a probable stock symbol out of a headline.
// Returns "" when nothing plausible is found.
func ExtractTickerHint(title string) string {
	if m := exchangeTickerPattern.FindStringSubmatch(title); len(m) == 2 {
		if !tickerStopwords[m[1]] {
			return m[1]
		}
	}

	for _, pattern := range tickerPatterns {
		m := pattern.FindStringSubmatch(title)
		if len(m) != 2 {
			continue
		}
		symbol := strings.ToUpper(m[1])
		if tickerStopwords[symbol] {
			continue
		}
		return symbol
	}
	return ""
}
