package aggregate

import (
	"fmt"

	"github.com/kitbuilder587/webagent/internal/domain"
	"github.com/kitbuilder587/webagent/internal/extract"
	"github.com/kitbuilder587/webagent/internal/search"
)

// Aggregate turns raw provider records plus per-URL extraction outcomes
// into the run's SearchResponse. Provider order is preserved; a result
// with neither extracted text nor a snippet is dropped and ranks are
// recomputed over the survivors. Fewer than limit results is valid.
func Aggregate(query domain.WebSearchQuery, raw []search.RawResult, extracted map[string]extract.ExtractedContent, limit int) domain.SearchResponse {
	if limit <= 0 {
		limit = query.ResultCount
	}

	results := make([]domain.StructuredResult, 0, limit)
	extractedCount := 0

	for _, r := range raw {
		if len(results) >= limit {
			break
		}

		content := ""
		fromPage := false
		if ec, ok := extracted[r.URL]; ok && ec.Status == extract.StatusOK {
			content = ec.Text
			fromPage = true
		}
		if content == "" {
			content = r.Snippet
		}
		if content == "" {
			// nothing usable, drop and let the next row take the rank
			continue
		}

		if fromPage {
			extractedCount++
		}

		results = append(results, domain.StructuredResult{
			Title:       r.Title,
			URL:         r.URL,
			Domain:      r.Domain,
			Content:     content,
			PublishedAt: r.PublishedAt,
			Rank:        len(results) + 1,
		})
	}

	return domain.SearchResponse{
		Query:         query,
		Results:       results,
		ResultSummary: fmt.Sprintf("extracted content from %d of %d results for query: %q", extractedCount, len(raw), query.Text),
		Extracted:     extractedCount,
	}
}
