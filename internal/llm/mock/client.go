package mock

import (
	"context"
	"time"

	"github.com/kitbuilder587/webagent/internal/llm"
)

// Client is a scripted llm.Client for tests. Responses, if queued, are
// served one per call; otherwise Response repeats.
type Client struct {
	Response  string
	Responses []string
	Error     error
	Delay     time.Duration

	CallCount  int
	LastSystem string
	LastPrompt string
	AllCalls   []Call
}

type Call struct {
	System string
	Prompt string
}

func New() *Client {
	return &Client{
		Response: `{"query": "mock optimized query"}`,
	}
}

func (c *Client) WithResponse(response string) *Client {
	c.Response = response
	return c
}

// WithResponses queues per-call responses, in order.
func (c *Client) WithResponses(responses ...string) *Client {
	c.Responses = responses
	return c
}

func (c *Client) WithError(err error) *Client {
	c.Error = err
	return c
}

func (c *Client) WithDelay(delay time.Duration) *Client {
	c.Delay = delay
	return c
}

func (c *Client) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	c.CallCount++
	c.LastSystem = system
	c.LastPrompt = prompt
	c.AllCalls = append(c.AllCalls, Call{System: system, Prompt: prompt})

	if c.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.Delay):
		}
	}

	if c.Error != nil {
		return "", c.Error
	}

	if len(c.Responses) > 0 {
		resp := c.Responses[0]
		c.Responses = c.Responses[1:]
		return resp, nil
	}

	return c.Response, nil
}

func (c *Client) Reset() {
	c.CallCount = 0
	c.LastSystem = ""
	c.LastPrompt = ""
	c.AllCalls = nil
	c.Responses = nil
}

var _ llm.Client = (*Client)(nil)
