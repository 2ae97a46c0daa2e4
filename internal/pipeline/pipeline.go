package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/webagent/internal/aggregate"
	"github.com/kitbuilder587/webagent/internal/analytics"
	"github.com/kitbuilder587/webagent/internal/domain"
	"github.com/kitbuilder587/webagent/internal/extract"
	"github.com/kitbuilder587/webagent/internal/metrics"
	"github.com/kitbuilder587/webagent/internal/search"
)

// Stage names the run's position in the linear state machine. There is no
// branching back: each stage hands its output to the next by value.
type Stage string

const (
	StageStart          Stage = "start"
	StageQueryOptimized Stage = "query_optimized"
	StageSearched       Stage = "searched"
	StageAggregated     Stage = "aggregated"
	StageAnswered       Stage = "answered"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

type Optimizer interface {
	Optimize(ctx context.Context, userQuery string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, userQuery string, resp domain.SearchResponse) (*domain.AgentResponse, error)
}

type Extractor interface {
	ExtractAll(ctx context.Context, urls []string) map[string]extract.ExtractedContent
}

type Cache interface {
	Get(key string) ([]search.RawResult, bool)
	Set(key string, results []search.RawResult, ttl time.Duration)
}

type Config struct {
	DefaultKind        domain.SearchKind
	DefaultResultCount int
	SearchTimeout      time.Duration
	CacheTTL           time.Duration
	// NetworkBackoff is the per-retry wait schedule; its length bounds
	// the number of network retries.
	NetworkBackoff []time.Duration
}

type Deps struct {
	Optimizer   Optimizer
	Synthesizer Synthesizer
	Search      search.Client
	Keys        *search.KeyProvider
	Extractor   Extractor
	Logger      *zap.Logger
	Config      Config

	// optional components
	Cache     Cache
	Analytics analytics.Recorder
	Metrics   *metrics.Metrics
}

type Orchestrator struct {
	optimizer   Optimizer
	synthesizer Synthesizer
	search      search.Client
	keys        *search.KeyProvider
	extractor   Extractor
	cache       Cache
	analytics   analytics.Recorder
	metrics     *metrics.Metrics
	logger      *zap.Logger
	config      Config
}

func New(deps Deps) *Orchestrator {
	if deps.Config.DefaultKind == "" {
		deps.Config.DefaultKind = domain.KindGeneral
	}
	if deps.Config.DefaultResultCount == 0 {
		deps.Config.DefaultResultCount = domain.DefaultResultCount
	}
	if deps.Config.SearchTimeout == 0 {
		deps.Config.SearchTimeout = 30 * time.Second
	}
	if deps.Config.CacheTTL == 0 {
		deps.Config.CacheTTL = time.Hour
	}
	if deps.Config.NetworkBackoff == nil {
		deps.Config.NetworkBackoff = []time.Duration{1 * time.Second, 2 * time.Second}
	}

	return &Orchestrator{
		optimizer:   deps.Optimizer,
		synthesizer: deps.Synthesizer,
		search:      deps.Search,
		keys:        deps.Keys,
		extractor:   deps.Extractor,
		cache:       deps.Cache,
		analytics:   deps.Analytics,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		config:      deps.Config,
	}
}

// Run executes one question end to end: optimize, search, extract,
// aggregate, synthesize. Only the search stage can fail the run with a
// provider error; extraction and aggregation degrade instead.
func (o *Orchestrator) Run(ctx context.Context, userQuery string) (*domain.AgentResponse, error) {
	startTime := time.Now()

	if o.metrics != nil {
		o.metrics.IncRunsInFlight()
		defer o.metrics.DecRunsInFlight()
	}

	query := domain.NewWebSearchQuery(userQuery, o.config.DefaultKind, o.config.DefaultResultCount)
	if err := query.Validate(); err != nil {
		o.finish(ctx, startTime, query, "validation_error")
		return nil, err
	}

	o.logStage(StageStart, query.Text)

	// Start -> QueryOptimized
	optimizeStart := time.Now()
	optimized, err := o.optimizer.Optimize(ctx, query.Text)
	o.recordLLM("optimize", err, time.Since(optimizeStart))
	if err != nil {
		if ctx.Err() != nil {
			return nil, o.cancelled(ctx, startTime, query)
		}
		o.finish(ctx, startTime, query, "llm_error")
		return nil, err
	}
	searchQuery := domain.NewWebSearchQuery(optimized, query.Kind, query.ResultCount)
	o.logStage(StageQueryOptimized, searchQuery.Text)

	// QueryOptimized -> Searched, the only stage that can reach Failed
	raw, err := o.searchWithCache(ctx, searchQuery)
	if err != nil {
		o.logStage(StageFailed, searchQuery.Text)
		o.finish(ctx, startTime, query, failureStatus(err))
		return nil, err
	}
	o.logStage(StageSearched, searchQuery.Text)

	// Searched -> Aggregated; every per-URL failure is absorbed here
	extracted := o.extractAll(ctx, raw)
	if ctx.Err() != nil {
		return nil, o.cancelled(ctx, startTime, query)
	}
	response := aggregate.Aggregate(searchQuery, raw, extracted, searchQuery.ResultCount)
	o.logStage(StageAggregated, searchQuery.Text)

	// Aggregated -> Answered
	synthStart := time.Now()
	answer, err := o.synthesizer.Synthesize(ctx, userQuery, response)
	o.recordLLM("synthesize", err, time.Since(synthStart))
	if err != nil {
		if ctx.Err() != nil {
			return nil, o.cancelled(ctx, startTime, query)
		}
		o.finish(ctx, startTime, query, "llm_error")
		return nil, err
	}
	o.logStage(StageAnswered, searchQuery.Text)

	o.finish(ctx, startTime, query, "success")
	o.logStage(StageDone, searchQuery.Text)

	o.logger.Info("run completed",
		zap.Int("results", len(response.Results)),
		zap.Int("extracted", response.Extracted),
		zap.String("confidence", answer.ConfidenceLevel.String()),
		zap.Duration("duration", time.Since(startTime)),
	)

	return answer, nil
}

func (o *Orchestrator) searchWithCache(parent context.Context, query domain.WebSearchQuery) ([]search.RawResult, error) {
	ctx, cancel := context.WithTimeout(parent, o.config.SearchTimeout)
	defer cancel()

	key := cacheKey(query)
	if o.cache != nil {
		if cached, ok := o.cache.Get(key); ok {
			if o.metrics != nil {
				o.metrics.RecordCacheHit()
			}
			return cached, nil
		}
		if o.metrics != nil {
			o.metrics.RecordCacheMiss()
		}
	}

	call := &searchCall{
		client:  o.search,
		keys:    o.keys,
		backoff: o.config.NetworkBackoff,
		logger:  o.logger,
		metrics: o.metrics,
	}
	raw, err := call.run(ctx, query)
	if err != nil {
		// cancelled means the caller abandoned the run; our own stage
		// deadline expiring is an ordinary provider timeout
		if errors.Is(err, domain.ErrCancelled) && parent.Err() == nil {
			return nil, &search.APIError{
				Kind: search.KindNetwork,
				Msg:  fmt.Sprintf("search stage timed out after %s", o.config.SearchTimeout),
			}
		}
		return nil, err
	}

	if o.cache != nil {
		o.cache.Set(key, raw, o.config.CacheTTL)
	}
	return raw, nil
}

func (o *Orchestrator) extractAll(ctx context.Context, raw []search.RawResult) map[string]extract.ExtractedContent {
	if len(raw) == 0 {
		return nil
	}

	urls := make([]string, 0, len(raw))
	for _, r := range raw {
		urls = append(urls, r.URL)
	}

	start := time.Now()
	extracted := o.extractor.ExtractAll(ctx, urls)
	if o.metrics != nil {
		o.metrics.RecordExtractionPhase(time.Since(start))
		for _, ec := range extracted {
			o.metrics.RecordExtraction(string(ec.Status))
		}
	}
	return extracted
}

func (o *Orchestrator) recordLLM(operation string, err error, duration time.Duration) {
	if o.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordLLMRequest(operation, status, duration)
}

func (o *Orchestrator) cancelled(ctx context.Context, startTime time.Time, query domain.WebSearchQuery) error {
	o.finish(ctx, startTime, query, "cancelled")
	return fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err())
}

// finish records run metrics and, in the background, usage analytics.
func (o *Orchestrator) finish(ctx context.Context, startTime time.Time, query domain.WebSearchQuery, status string) {
	duration := time.Since(startTime)

	if o.metrics != nil {
		o.metrics.RecordRun(status, duration)
	}

	if o.analytics != nil {
		rec := analytics.RequestRecord{
			Question:    query.Text,
			Kind:        query.Kind.String(),
			ResultCount: query.ResultCount,
			Status:      status,
			Duration:    duration,
			CreatedAt:   time.Now(),
		}
		// recorded before Run returns so one-shot callers don't lose it;
		// detached from the run ctx so cancelled runs still get counted
		recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.analytics.Record(recordCtx, rec); err != nil {
			o.logger.Warn("failed to record usage analytics", zap.Error(err))
		}
	}
}

func (o *Orchestrator) logStage(stage Stage, queryText string) {
	o.logger.Debug("pipeline stage",
		zap.String("stage", string(stage)),
		zap.String("query", queryText),
	)
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrAllKeysExhausted):
		return "all_keys_exhausted"
	case errors.Is(err, domain.ErrCancelled):
		return "cancelled"
	default:
		return "search_failed"
	}
}

func cacheKey(query domain.WebSearchQuery) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", query.Text, query.Kind, query.ResultCount))
	return fmt.Sprintf("search:%x", sum)
}
