package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/webagent/internal/domain"
	"github.com/kitbuilder587/webagent/internal/search"
)

// Client is a scripted search client for tests. Errors, if queued, are
// returned one per call before Results are served.
type Client struct {
	Results []search.RawResult
	Errors  []error
	Delay   time.Duration

	CallCount  int
	LastQuery  domain.WebSearchQuery
	AllQueries []domain.WebSearchQuery
	KeysUsed   []string

	mu sync.Mutex
}

func New() *Client {
	return &Client{}
}

func (c *Client) WithResults(results []search.RawResult) *Client {
	c.Results = results
	return c
}

// WithErrors queues errors to be returned in order; once drained the
// client starts succeeding with Results.
func (c *Client) WithErrors(errs ...error) *Client {
	c.Errors = errs
	return c
}

func (c *Client) WithDelay(delay time.Duration) *Client {
	c.Delay = delay
	return c
}

func (c *Client) Execute(ctx context.Context, query domain.WebSearchQuery, apiKey string) ([]search.RawResult, error) {
	c.mu.Lock()
	c.CallCount++
	c.LastQuery = query
	c.AllQueries = append(c.AllQueries, query)
	c.KeysUsed = append(c.KeysUsed, apiKey)
	var err error
	if len(c.Errors) > 0 {
		err = c.Errors[0]
		c.Errors = c.Errors[1:]
	}
	delay := c.Delay
	results := c.Results
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}

	out := make([]search.RawResult, len(results))
	copy(out, results)
	return out, nil
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.LastQuery = domain.WebSearchQuery{}
	c.AllQueries = nil
	c.KeysUsed = nil
	c.Errors = nil
}

var _ search.Client = (*Client)(nil)
