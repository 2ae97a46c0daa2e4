package domain

import "errors"

var (
	ErrEmptyQuery   = errors.New("empty query")
	ErrQueryTooLong = errors.New("query too long")
)

var (
	// ErrRateLimited means the outbound quota is exhausted; the run is
	// aborted before any network call, no partial answer is produced.
	ErrRateLimited = errors.New("search rate limit exceeded")

	// ErrAllKeysExhausted means the primary and (if configured) fallback
	// search credentials were both rejected. Fatal for the run.
	ErrAllKeysExhausted = errors.New("all search API keys exhausted")

	// ErrCancelled marks a run abandoned by the caller, distinct from an
	// ordinary failure.
	ErrCancelled = errors.New("run cancelled")
)

var (
	ErrEmptyAnswer       = errors.New("empty answer")
	ErrInvalidConfidence = errors.New("invalid confidence level")
)
