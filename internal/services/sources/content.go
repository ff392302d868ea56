package sources

import (
	"bytes"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// contentSelectors is the ordered list of places article bodies usually
// live. The first selection whose text clears the minimum length wins.
var contentSelectors = []string{
	"article",
	"div.article-body",
	"div.caas-body",
	"div.story-body",
	"div[itemprop=articleBody]",
	"main",
	"div.content",
	"body",
}

// ContentExtractor pulls the main text body out of a fetched HTML page and
// converts it to markdown for storage.
type ContentExtractor struct {
	MinLength int
	MaxLength int
}

// Extract returns the first selector match whose text exceeds MinLength,
// converted to markdown and truncated to MaxLength. Returns "" when no
// selector yields enough text.
func (e ContentExtractor) Extract(pageURL string, html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}

	// Navigation and boilerplate only add noise to enrichment prompts.
	doc.Find("script, style, nav, header, footer, aside").Remove()

	converter := md.NewConverter(pageURL, true, nil)

	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}

		text := strings.TrimSpace(sel.Text())
		if len(text) < e.MinLength {
			continue
		}

		inner, err := sel.Html()
		if err != nil || strings.TrimSpace(inner) == "" {
			// Fall back to plain text when the fragment cannot be re-serialized.
			return truncate(text, e.MaxLength), nil
		}

		markdown, err := converter.ConvertString(inner)
		if err != nil || strings.TrimSpace(markdown) == "" {
			return truncate(text, e.MaxLength), nil
		}
		return truncate(strings.TrimSpace(markdown), e.MaxLength), nil
	}

	return "", nil
}

// truncate cuts s to at most max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
