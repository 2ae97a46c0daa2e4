package search

import (
	"context"
	"fmt"
	"time"

	"github.com/kitbuilder587/webagent/internal/domain"
)

// ErrorKind classifies a provider failure; the retry policy hangs off it.
type ErrorKind string

const (
	// KindAuth - credential rejected (401/403); retried once on the fallback key.
	KindAuth ErrorKind = "auth"
	// KindQuota - provider-side quota exhausted (402/429); treated like auth.
	KindQuota ErrorKind = "quota"
	// KindNetwork - transport failure, timeout, or 5xx; retried with backoff.
	KindNetwork ErrorKind = "network"
	// KindMalformed - unparseable provider response; never retried, it means
	// the provider contract changed.
	KindMalformed ErrorKind = "malformed"
)

type APIError struct {
	Kind   ErrorKind
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("search api %s error: status %d: %s", e.Kind, e.Status, e.Msg)
	}
	return fmt.Sprintf("search api %s error: %s", e.Kind, e.Msg)
}

// Retryable reports whether the pipeline may retry this error at all,
// on the same key (network) or the fallback one (auth/quota).
func (e *APIError) Retryable() bool {
	return e.Kind != KindMalformed
}

// RawResult is the provider's record, untouched beyond field mapping.
// Consumed only by the aggregator.
type RawResult struct {
	Title       string
	URL         string
	Snippet     string
	Domain      string
	PublishedAt *time.Time
}

// Client issues exactly one search request. Retry, backoff, and key
// fallback are owned by the caller.
type Client interface {
	Execute(ctx context.Context, query domain.WebSearchQuery, apiKey string) ([]RawResult, error)
}
