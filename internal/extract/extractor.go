package extract

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Status string

const (
	StatusOK          Status = "ok"
	StatusFetchFailed Status = "fetch_failed"
	StatusEmpty       Status = "empty"
	StatusSkipped     Status = "skipped"
)

// ExtractedContent is a terminal per-URL outcome. A missing text is a
// valid state, never an error that propagates.
type ExtractedContent struct {
	URL    string
	Text   string
	Status Status
}

const maxBodyBytes = 2 << 20 // pages past 2MB are cut, not rejected

// Browser-like headers reduce 403s from sites that reject obvious bots.
var requestHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
	"Referer":         "https://www.google.com",
}

type Config struct {
	Timeout          time.Duration
	Concurrency      int
	FetchesPerSecond float64
}

type Extractor struct {
	client      *http.Client
	pacer       *rate.Limiter
	concurrency int
	timeout     time.Duration
	logger      *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.Timeout == 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.FetchesPerSecond <= 0 {
		cfg.FetchesPerSecond = 10
	}

	return &Extractor{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		pacer:       rate.NewLimiter(rate.Limit(cfg.FetchesPerSecond), cfg.Concurrency),
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// ExtractAll fetches every URL with bounded fan-out and joins the results
// back by URL key. Completion order never matters to the caller.
func (e *Extractor) ExtractAll(ctx context.Context, urls []string) map[string]ExtractedContent {
	out := make(map[string]ExtractedContent, len(urls))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, u := range urls {
		u := u
		g.Go(func() error {
			content := e.Extract(ctx, u)
			mu.Lock()
			out[u] = content
			mu.Unlock()
			return nil
		})
	}

	g.Wait()
	return out
}

// Extract fetches one page and pulls out its readable text. All failure
// modes collapse into a non-ok status; the error never leaves this method.
func (e *Extractor) Extract(ctx context.Context, pageURL string) ExtractedContent {
	if err := e.pacer.Wait(ctx); err != nil {
		return ExtractedContent{URL: pageURL, Status: StatusSkipped}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ExtractedContent{URL: pageURL, Status: StatusFetchFailed}
	}
	for k, v := range requestHeaders {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug("page fetch failed",
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return ExtractedContent{URL: pageURL, Status: StatusFetchFailed}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.logger.Debug("page fetch non-200",
			zap.String("url", pageURL),
			zap.Int("status", resp.StatusCode),
		)
		return ExtractedContent{URL: pageURL, Status: StatusFetchFailed}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") && !strings.Contains(contentType, "text/plain") {
		// PDFs, images and the like are not worth stripping
		return ExtractedContent{URL: pageURL, Status: StatusSkipped}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ExtractedContent{URL: pageURL, Status: StatusFetchFailed}
	}

	text := extractMainText(string(body), pageURL)
	if text == "" {
		return ExtractedContent{URL: pageURL, Status: StatusEmpty}
	}

	return ExtractedContent{URL: pageURL, Text: text, Status: StatusOK}
}

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	scriptRe     = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// extractMainText runs readability first and falls back to naive tag
// stripping when it finds nothing.
func extractMainText(html, pageURL string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text
		}
	}

	return stripTags(html)
}

func stripTags(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
