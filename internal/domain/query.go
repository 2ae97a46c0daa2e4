package domain

import (
	"strings"
)

const (
	MaxQueryLength = 1000

	MinResultCount = 1
	MaxResultCount = 20

	DefaultResultCount = 4
)

type SearchKind string

const (
	KindGeneral SearchKind = "general"
	KindNews    SearchKind = "news"
)

func (k SearchKind) IsValid() bool {
	switch k {
	case KindGeneral, KindNews:
		return true
	}
	return false
}

func (k SearchKind) String() string { return string(k) }

// WebSearchQuery is built once per pipeline run and never mutated afterwards.
type WebSearchQuery struct {
	Text        string
	Kind        SearchKind
	ResultCount int
}

// NewWebSearchQuery clamps the result count to [MinResultCount, MaxResultCount]
// and normalizes an unknown kind to general.
func NewWebSearchQuery(text string, kind SearchKind, resultCount int) WebSearchQuery {
	if !kind.IsValid() {
		kind = KindGeneral
	}
	if resultCount < MinResultCount {
		resultCount = DefaultResultCount
	}
	if resultCount > MaxResultCount {
		resultCount = MaxResultCount
	}
	return WebSearchQuery{
		Text:        strings.TrimSpace(text),
		Kind:        kind,
		ResultCount: resultCount,
	}
}

func (q WebSearchQuery) Validate() error {
	if q.Text == "" {
		return ErrEmptyQuery
	}
	if len(q.Text) > MaxQueryLength {
		return ErrQueryTooLong
	}
	return nil
}
