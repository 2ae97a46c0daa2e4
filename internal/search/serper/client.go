package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/webagent/internal/domain"
	"github.com/kitbuilder587/webagent/internal/ratelimit"
	"github.com/kitbuilder587/webagent/internal/search"
)

// limiterKey identifies the shared credential pool: primary and fallback
// keys burn the same quota.
const limiterKey = "serper"

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Location string
	GL       string
	HL       string
}

type Client struct {
	baseURL  string
	location string
	gl       string
	hl       string
	client   *http.Client
	limiter  *ratelimit.Limiter
	logger   *zap.Logger
}

func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://google.serper.dev"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Location == "" {
		cfg.Location = "France"
	}
	if cfg.GL == "" {
		cfg.GL = "fr"
	}
	if cfg.HL == "" {
		cfg.HL = "fr"
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		location: cfg.Location,
		gl:       cfg.GL,
		hl:       cfg.HL,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  limiter,
		logger:   logger,
	}
}

type serperRequest struct {
	Q        string `json:"q"`
	Num      int    `json:"num"`
	Location string `json:"location"`
	GL       string `json:"gl"`
	HL       string `json:"hl"`
	Type     string `json:"type,omitempty"`
	Page     int    `json:"page,omitempty"`
}

type serperResponse struct {
	Organic []serperResult `json:"organic"`
	News    []serperResult `json:"news"`
}

type serperResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
	Source  string `json:"source"`
}

// Execute performs a single search request. It asks the admission gate
// before touching the network and does no retrying of its own.
func (c *Client) Execute(ctx context.Context, query domain.WebSearchQuery, apiKey string) ([]search.RawResult, error) {
	if !c.limiter.Admit(limiterKey) {
		retryAfter := time.Until(c.limiter.ResetTime(limiterKey)).Round(time.Second)
		c.logger.Warn("search admission denied",
			zap.Duration("retry_after", retryAfter),
		)
		return nil, fmt.Errorf("%w: retry after %s", domain.ErrRateLimited, retryAfter)
	}

	endpoint := c.baseURL + "/search"
	req := serperRequest{
		Q:        query.Text,
		Num:      query.ResultCount,
		Location: c.location,
		GL:       c.gl,
		HL:       c.hl,
	}
	if query.Kind == domain.KindNews {
		endpoint = c.baseURL + "/news"
		req.Type = "news"
		req.Page = 1
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-KEY", apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &search.APIError{Kind: search.KindNetwork, Msg: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &search.APIError{Kind: search.KindNetwork, Msg: "read response: " + err.Error()}
	}

	if apiErr := classifyStatus(resp.StatusCode); apiErr != nil {
		c.logger.Warn("serper request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(apiErr.Kind)),
		)
		return nil, apiErr
	}

	var serperResp serperResponse
	if err := json.Unmarshal(respBody, &serperResp); err != nil {
		return nil, &search.APIError{Kind: search.KindMalformed, Status: resp.StatusCode, Msg: "unmarshal response: " + err.Error()}
	}

	rows := serperResp.Organic
	if query.Kind == domain.KindNews {
		rows = serperResp.News
	}

	return c.toRawResults(rows), nil
}

func classifyStatus(status int) *search.APIError {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &search.APIError{Kind: search.KindAuth, Status: status, Msg: "key rejected"}
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		return &search.APIError{Kind: search.KindQuota, Status: status, Msg: "provider quota exceeded"}
	case status >= 500:
		return &search.APIError{Kind: search.KindNetwork, Status: status, Msg: "server error"}
	default:
		return &search.APIError{Kind: search.KindMalformed, Status: status, Msg: "unexpected status"}
	}
}

func (c *Client) toRawResults(rows []serperResult) []search.RawResult {
	results := make([]search.RawResult, 0, len(rows))
	for _, r := range rows {
		if r.Link == "" {
			// the odd broken row is skipped rather than failing the payload
			continue
		}
		results = append(results, search.RawResult{
			Title:       r.Title,
			URL:         r.Link,
			Snippet:     r.Snippet,
			Domain:      domainOf(r.Link),
			PublishedAt: parseDate(r.Date),
		})
	}
	return results
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// parseDate handles the absolute formats serper returns; relative dates
// ("2 hours ago") come back nil, which is a valid absent published-at.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

var _ search.Client = (*Client)(nil)
