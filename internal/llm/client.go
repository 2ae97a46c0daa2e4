package llm

import (
	"context"
	"errors"
)

var (
	ErrAuthFailed    = errors.New("authentication failed")
	ErrRequestFailed = errors.New("request failed")
	ErrEmptyResponse = errors.New("empty response")
	ErrRateLimit     = errors.New("rate limit exceeded")
)

// Client is the LLM capability boundary: a system prompt plus a user
// prompt in, completion text out. Failures here are fatal for a pipeline
// run; no local recovery exists.
type Client interface {
	CompleteWithSystem(ctx context.Context, system, prompt string) (string, error)
}
