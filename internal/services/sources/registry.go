package sources

import (
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/interfaces"
)

// BuildAdapters constructs the configured source adapters, sorted by id so
// construction order is deterministic.
func BuildAdapters(cfg common.ScraperConfig, logger arbor.ILogger) (map[string]interfaces.SourceAdapter, error) {
	extractor := ContentExtractor{
		MinLength: cfg.MinContentLen,
		MaxLength: cfg.MaxContentLen,
	}

	adapters := make(map[string]interfaces.SourceAdapter, len(cfg.Sources))

	ids := make([]string, 0, len(cfg.Sources))
	for id := range cfg.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		src := cfg.Sources[id]
		switch src.Kind {
		case "feed":
			adapters[id] = NewFeedAdapter(id, src.URL, cfg.UserAgent, extractor, logger)
		case "table":
			adapters[id] = NewTableAdapter(id, src.URL, cfg.UserAgent, extractor, logger)
		default:
			return nil, fmt.Errorf("source %q: unknown adapter kind %q", id, src.Kind)
		}
	}

	return adapters, nil
}
