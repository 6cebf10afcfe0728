package paper

import (
	"fmt"
	"strings"
)

const (
	DefaultMaxSnippets = 5
	MaxSnippets        = 20
)

// Enrich returns supporting snippets for a paper summary. Snippets are the
// summary's own sentences, attributed to the paper's DOI or URL when given.
func Enrich(req EnrichRequest) []EnrichmentSnippet {
	limit := req.MaxSnippets
	if limit <= 0 {
		limit = DefaultMaxSnippets
	}
	limit = min(limit, MaxSnippets)

	source, url := "summary", strings.TrimSpace(req.URL)
	switch {
	case strings.TrimSpace(req.DOI) != "":
		source = "doi:" + strings.TrimSpace(req.DOI)
		if url == "" {
			url = "https://doi.org/" + strings.TrimSpace(req.DOI)
		}
	case url != "":
		source = url
	}

	parts := sentences(req.Summary)
	out := make([]EnrichmentSnippet, 0, min(len(parts), limit))
	for i, s := range parts {
		if i == limit {
			break
		}
		out = append(out, EnrichmentSnippet{
			ID:        fmt.Sprintf("s%d", i+1),
			Text:      s,
			Source:    source,
			URL:       url,
			Relevance: 1 - float64(i)/float64(len(parts)+1),
		})
	}
	return out
}
