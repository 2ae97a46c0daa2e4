package domain

import "time"

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

func (c ConfidenceLevel) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

func (c ConfidenceLevel) String() string { return string(c) }

// StructuredResult is a search result normalized into our own fields,
// decoupled from the provider's raw schema. Rank is the 1-based position
// after trimming and is derived from the original provider order.
type StructuredResult struct {
	Title       string
	URL         string
	Domain      string
	Content     string
	PublishedAt *time.Time
	Rank        int
}

// SearchResponse lives for the duration of one pipeline run and is not
// persisted. Extracted counts results whose Content came from page
// extraction; the rest carry the provider snippet.
type SearchResponse struct {
	Query         WebSearchQuery
	Results       []StructuredResult
	ResultSummary string
	Extracted     int
}

// AgentResponse is the final artifact of a run, immutable once returned.
type AgentResponse struct {
	UserQuery            string
	SearchResultsSummary string
	ComprehensiveAnswer  string
	Sources              []string
	ConfidenceLevel      ConfidenceLevel
}

func (r AgentResponse) Validate() error {
	if r.ComprehensiveAnswer == "" {
		return ErrEmptyAnswer
	}
	if !r.ConfidenceLevel.IsValid() {
		return ErrInvalidConfidence
	}
	return nil
}
