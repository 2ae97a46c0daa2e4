package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/webagent/internal/agent"
	"github.com/kitbuilder587/webagent/internal/analytics"
	"github.com/kitbuilder587/webagent/internal/cache/memory"
	"github.com/kitbuilder587/webagent/internal/domain"
	"github.com/kitbuilder587/webagent/internal/extract"
	"github.com/kitbuilder587/webagent/internal/llm"
	llmmock "github.com/kitbuilder587/webagent/internal/llm/mock"
	"github.com/kitbuilder587/webagent/internal/search"
	searchmock "github.com/kitbuilder587/webagent/internal/search/mock"
)

// fakeExtractor answers every URL with a fixed status; overrides pin
// specific URLs to other outcomes.
type fakeExtractor struct {
	status    extract.Status
	overrides map[string]extract.ExtractedContent
	calls     int
}

func (f *fakeExtractor) ExtractAll(ctx context.Context, urls []string) map[string]extract.ExtractedContent {
	f.calls++
	out := make(map[string]extract.ExtractedContent, len(urls))
	for _, u := range urls {
		if ec, ok := f.overrides[u]; ok {
			out[u] = ec
			continue
		}
		ec := extract.ExtractedContent{URL: u, Status: f.status}
		if f.status == extract.StatusOK {
			ec.Text = "extracted text for " + u
		}
		out[u] = ec
	}
	return out
}

// recordingAnalytics captures usage records for assertions.
type recordingAnalytics struct {
	mu      sync.Mutex
	records []analytics.RequestRecord
}

func (r *recordingAnalytics) Record(ctx context.Context, rec analytics.RequestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recordingAnalytics) Records() []analytics.RequestRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]analytics.RequestRecord, len(r.records))
	copy(out, r.records)
	return out
}

const goodSynthesis = `{"comprehensive_answer": "AI is the field of making machines act intelligently.", "sources": ["https://example.com/1", "https://example.com/2"], "confidence_level": "high"}`

type testDeps struct {
	search    *searchmock.Client
	keys      *search.KeyProvider
	extractor *fakeExtractor
	optLLM    *llmmock.Client
	synLLM    *llmmock.Client
}

func defaultDeps() *testDeps {
	return &testDeps{
		search: searchmock.New().WithResults([]search.RawResult{
			{Title: "R1", URL: "https://example.com/1", Snippet: "snippet 1", Domain: "example.com"},
			{Title: "R2", URL: "https://example.com/2", Snippet: "snippet 2", Domain: "example.com"},
			{Title: "R3", URL: "https://example.com/3", Snippet: "snippet 3", Domain: "example.com"},
			{Title: "R4", URL: "https://example.com/4", Snippet: "snippet 4", Domain: "example.com"},
			{Title: "R5", URL: "https://example.com/5", Snippet: "snippet 5", Domain: "example.com"},
		}),
		keys:      search.NewKeyProvider("primary", "fallback"),
		extractor: &fakeExtractor{status: extract.StatusOK},
		optLLM:    llmmock.New().WithResponse(`{"query": "optimized query"}`),
		synLLM:    llmmock.New().WithResponse(goodSynthesis),
	}
}

func newOrchestrator(d *testDeps, cache Cache) *Orchestrator {
	logger := zap.NewNop()
	return New(Deps{
		Optimizer:   agent.NewOptimizer(d.optLLM, logger),
		Synthesizer: agent.NewSynthesizer(d.synLLM, logger),
		Search:      d.search,
		Keys:        d.keys,
		Extractor:   d.extractor,
		Cache:       cache,
		Logger:      logger,
		Config: Config{
			DefaultResultCount: 3,
			NetworkBackoff:     []time.Duration{time.Millisecond, time.Millisecond},
		},
	})
}

func TestOrchestrator_Run_Success(t *testing.T) {
	// 5 provider results, 3 requested, all extractions succeed
	d := defaultDeps()
	o := newOrchestrator(d, nil)

	answer, err := o.Run(context.Background(), "What is AI?")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if answer.UserQuery != "What is AI?" {
		t.Errorf("UserQuery = %q", answer.UserQuery)
	}
	if answer.ComprehensiveAnswer == "" {
		t.Error("ComprehensiveAnswer should not be empty")
	}
	if answer.ConfidenceLevel != domain.ConfidenceHigh {
		t.Errorf("ConfidenceLevel = %v, want high", answer.ConfidenceLevel)
	}
	if len(answer.Sources) != 2 {
		t.Errorf("Sources = %v, want both cited URLs", answer.Sources)
	}

	// the optimized query, not the raw question, goes to the provider
	if d.search.LastQuery.Text != "optimized query" {
		t.Errorf("provider saw query %q, want the optimized one", d.search.LastQuery.Text)
	}
	if d.search.LastQuery.ResultCount != 3 {
		t.Errorf("ResultCount = %d, want 3", d.search.LastQuery.ResultCount)
	}
}

func TestOrchestrator_Run_EmptyQuestion(t *testing.T) {
	d := defaultDeps()
	o := newOrchestrator(d, nil)

	if _, err := o.Run(context.Background(), "   "); !errors.Is(err, domain.ErrEmptyQuery) {
		t.Errorf("Run() error = %v, want ErrEmptyQuery", err)
	}
	if d.search.CallCount != 0 {
		t.Error("invalid question must not reach the provider")
	}
}

func TestOrchestrator_Run_OptimizerJunkFallsBack(t *testing.T) {
	d := defaultDeps()
	d.optLLM.WithResponse("I cannot help with that")
	o := newOrchestrator(d, nil)

	if _, err := o.Run(context.Background(), "What is AI?"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if d.search.LastQuery.Text != "What is AI?" {
		t.Errorf("provider saw %q, want the verbatim question", d.search.LastQuery.Text)
	}
}

func TestOrchestrator_Run_OptimizerTransportErrorIsFatal(t *testing.T) {
	d := defaultDeps()
	d.optLLM.WithError(llm.ErrRequestFailed)
	o := newOrchestrator(d, nil)

	if _, err := o.Run(context.Background(), "What is AI?"); !errors.Is(err, llm.ErrRequestFailed) {
		t.Errorf("Run() error = %v, want ErrRequestFailed", err)
	}
}

func TestOrchestrator_Run_KeyFallbackIsInvisible(t *testing.T) {
	d := defaultDeps()
	d.search.WithErrors(&search.APIError{Kind: search.KindAuth, Status: 401})
	o := newOrchestrator(d, nil)

	answer, err := o.Run(context.Background(), "What is AI?")
	if err != nil {
		t.Fatalf("Run() error = %v, fallback should hide the auth failure", err)
	}
	if answer == nil || answer.ComprehensiveAnswer == "" {
		t.Error("expected a full answer via the fallback key")
	}
	if d.search.KeysUsed[len(d.search.KeysUsed)-1] != "fallback" {
		t.Errorf("KeysUsed = %v, want the run to end on the fallback key", d.search.KeysUsed)
	}
}

func TestOrchestrator_Run_AllKeysExhausted(t *testing.T) {
	d := defaultDeps()
	d.search.WithErrors(
		&search.APIError{Kind: search.KindAuth, Status: 401},
		&search.APIError{Kind: search.KindAuth, Status: 401},
	)
	o := newOrchestrator(d, nil)

	if _, err := o.Run(context.Background(), "What is AI?"); !errors.Is(err, domain.ErrAllKeysExhausted) {
		t.Errorf("Run() error = %v, want ErrAllKeysExhausted", err)
	}
}

func TestOrchestrator_Run_RateLimited(t *testing.T) {
	d := defaultDeps()
	d.search.WithErrors(domain.ErrRateLimited)
	o := newOrchestrator(d, nil)

	_, err := o.Run(context.Background(), "What is AI?")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("Run() error = %v, want ErrRateLimited", err)
	}
	if d.synLLM.CallCount != 0 {
		t.Error("no partial answer may be synthesized after a rate-limit abort")
	}
}

func TestOrchestrator_Run_AllExtractionsFailed(t *testing.T) {
	// every fetch fails; snippets carry the answer, confidence is clamped
	d := defaultDeps()
	d.extractor.status = extract.StatusFetchFailed
	o := newOrchestrator(d, nil)

	answer, err := o.Run(context.Background(), "What is AI?")
	if err != nil {
		t.Fatalf("Run() error = %v, extraction failures must not fail the run", err)
	}
	if answer.ComprehensiveAnswer == "" {
		t.Error("ComprehensiveAnswer should not be empty on snippet fallback")
	}
	if answer.ConfidenceLevel == domain.ConfidenceHigh {
		t.Errorf("ConfidenceLevel = high, want at most medium on snippet-only evidence")
	}
}

func TestOrchestrator_Run_NoResults(t *testing.T) {
	d := defaultDeps()
	d.search.Results = nil
	o := newOrchestrator(d, nil)

	answer, err := o.Run(context.Background(), "completely obscure question")
	if err != nil {
		t.Fatalf("Run() error = %v, empty results are not an error", err)
	}
	if answer.ConfidenceLevel != domain.ConfidenceLow {
		t.Errorf("ConfidenceLevel = %v, want low", answer.ConfidenceLevel)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("Sources = %v, want empty", answer.Sources)
	}
	if d.extractor.calls != 0 {
		t.Error("nothing to extract when the provider returns no results")
	}
}

func TestOrchestrator_Run_Idempotent(t *testing.T) {
	run := func() *domain.AgentResponse {
		d := defaultDeps()
		o := newOrchestrator(d, nil)
		answer, err := o.Run(context.Background(), "What is AI?")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return answer
	}

	a, b := run(), run()

	if a.ComprehensiveAnswer != b.ComprehensiveAnswer ||
		a.SearchResultsSummary != b.SearchResultsSummary ||
		a.ConfidenceLevel != b.ConfidenceLevel ||
		len(a.Sources) != len(b.Sources) {
		t.Error("identical inputs must produce identical AgentResponse content")
	}
	for i := range a.Sources {
		if a.Sources[i] != b.Sources[i] {
			t.Errorf("Sources[%d] differ: %q vs %q", i, a.Sources[i], b.Sources[i])
		}
	}
}

func TestOrchestrator_Run_CacheSkipsSecondSearch(t *testing.T) {
	d := defaultDeps()
	c := memory.New()
	defer c.Stop()
	o := newOrchestrator(d, c)

	if _, err := o.Run(context.Background(), "What is AI?"); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if _, err := o.Run(context.Background(), "What is AI?"); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if d.search.CallCount != 1 {
		t.Errorf("search CallCount = %d, want 1 (second run served from cache)", d.search.CallCount)
	}
}

func TestOrchestrator_Run_SearchStageTimeoutIsNotCancellation(t *testing.T) {
	// the search stage deadline expiring while the caller is still
	// waiting is a provider timeout, not a cancelled run
	d := defaultDeps()
	d.search.WithDelay(200 * time.Millisecond)
	logger := zap.NewNop()
	o := New(Deps{
		Optimizer:   agent.NewOptimizer(d.optLLM, logger),
		Synthesizer: agent.NewSynthesizer(d.synLLM, logger),
		Search:      d.search,
		Keys:        d.keys,
		Extractor:   d.extractor,
		Logger:      logger,
		Config: Config{
			DefaultResultCount: 3,
			SearchTimeout:      20 * time.Millisecond,
			NetworkBackoff:     []time.Duration{time.Millisecond},
		},
	})

	_, err := o.Run(context.Background(), "What is AI?")
	if err == nil {
		t.Fatal("Run() expected an error after the search stage timed out")
	}
	if errors.Is(err, domain.ErrCancelled) {
		t.Errorf("Run() error = %v, stage timeout must not look like caller cancellation", err)
	}
	var apiErr *search.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != search.KindNetwork {
		t.Errorf("Run() error = %v, want a network-kind APIError", err)
	}
}

func TestOrchestrator_Run_AnalyticsRecordedBeforeReturn(t *testing.T) {
	d := defaultDeps()
	rec := &recordingAnalytics{}
	logger := zap.NewNop()
	o := New(Deps{
		Optimizer:   agent.NewOptimizer(d.optLLM, logger),
		Synthesizer: agent.NewSynthesizer(d.synLLM, logger),
		Search:      d.search,
		Keys:        d.keys,
		Extractor:   d.extractor,
		Analytics:   rec,
		Logger:      logger,
		Config:      Config{DefaultResultCount: 3},
	})

	if _, err := o.Run(context.Background(), "What is AI?"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// one-shot callers exit right after Run; the record must already be there
	records := rec.Records()
	if len(records) != 1 {
		t.Fatalf("got %d analytics records after Run returned, want 1", len(records))
	}
	if records[0].Status != "success" {
		t.Errorf("record Status = %q, want %q", records[0].Status, "success")
	}
	if records[0].Question != "What is AI?" {
		t.Errorf("record Question = %q", records[0].Question)
	}
}

func TestOrchestrator_Run_Cancelled(t *testing.T) {
	d := defaultDeps()
	d.optLLM.WithDelay(time.Second)
	o := newOrchestrator(d, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := o.Run(ctx, "What is AI?")
	if !errors.Is(err, domain.ErrCancelled) {
		t.Errorf("Run() error = %v, want ErrCancelled", err)
	}
}
