package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kitbuilder587/webagent/internal/agent"
	"github.com/kitbuilder587/webagent/internal/analytics"
	apg "github.com/kitbuilder587/webagent/internal/analytics/postgres"
	"github.com/kitbuilder587/webagent/internal/cache/memory"
	"github.com/kitbuilder587/webagent/internal/config"
	"github.com/kitbuilder587/webagent/internal/domain"
	"github.com/kitbuilder587/webagent/internal/extract"
	"github.com/kitbuilder587/webagent/internal/llm"
	llmmock "github.com/kitbuilder587/webagent/internal/llm/mock"
	"github.com/kitbuilder587/webagent/internal/llm/openrouter"
	"github.com/kitbuilder587/webagent/internal/metrics"
	"github.com/kitbuilder587/webagent/internal/pipeline"
	"github.com/kitbuilder587/webagent/internal/ratelimit"
	"github.com/kitbuilder587/webagent/internal/search"
	"github.com/kitbuilder587/webagent/internal/search/serper"
)

var (
	flagKind        string
	flagCount       int
	flagTimeout     time.Duration
	flagMetricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "webagent",
	Short: "Answer questions from live web search with cited sources",
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run one search-and-synthesis pipeline for a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&flagKind, "kind", "", "search kind: general or news (default from env)")
	askCmd.Flags().IntVar(&flagCount, "results", 0, "number of results to fetch, 1-20 (default from env)")
	askCmd.Flags().DurationVar(&flagTimeout, "timeout", 2*time.Minute, "overall run timeout")
	askCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.AddCommand(askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if flagKind != "" {
		cfg.Search.DefaultKind = domain.SearchKind(flagKind)
	}
	if flagCount != 0 {
		cfg.Search.DefaultResultCount = flagCount
	}

	orch, cleanup, err := buildOrchestrator(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if flagMetricsAddr != "" {
		go serveMetrics(flagMetricsAddr, logger)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	answer, err := orch.Run(ctx, strings.Join(args, " "))
	if err != nil {
		return describeFailure(err)
	}

	printAnswer(answer)
	return nil
}

func buildOrchestrator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pipeline.Orchestrator, func(), error) {
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            cfg.RateLimit.Window,
	})

	keys := search.NewKeyProvider(cfg.Serper.APIKey, cfg.Serper.FallbackAPIKey)
	logger.Info("search credentials loaded",
		zap.Bool("fallback_configured", keys.HasFallback()),
	)

	searchClient := serper.New(serper.Config{
		BaseURL:  cfg.Serper.BaseURL,
		Timeout:  cfg.Serper.Timeout,
		Location: cfg.Serper.Location,
		GL:       cfg.Serper.GL,
		HL:       cfg.Serper.HL,
	}, limiter, logger)

	extractor := extract.New(extract.Config{
		Timeout:          cfg.Extract.Timeout,
		Concurrency:      cfg.Extract.Concurrency,
		FetchesPerSecond: cfg.Extract.FetchesPerSecond,
	}, logger)

	var llmClient llm.Client
	switch cfg.LLM.Provider {
	case "mock":
		llmClient = llmmock.New()
	default:
		llmClient = openrouter.New(openrouter.Config{
			APIKey:  cfg.LLM.OpenRouter.APIKey,
			Model:   cfg.LLM.OpenRouter.Model,
			BaseURL: cfg.LLM.OpenRouter.BaseURL,
			Timeout: cfg.LLM.OpenRouter.Timeout,
		}, logger)
	}

	cache := memory.New()
	cleanup := func() { cache.Stop() }

	var recorder analytics.Recorder = analytics.Noop{}
	if cfg.Database.URL != "" {
		db, err := apg.New(ctx, cfg.Database.URL)
		if err != nil {
			cache.Stop()
			return nil, nil, fmt.Errorf("connect analytics database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			cache.Stop()
			return nil, nil, err
		}
		recorder = apg.NewRecorder(db)
		cleanup = func() {
			cache.Stop()
			db.Close()
		}
	}

	orch := pipeline.New(pipeline.Deps{
		Optimizer:   agent.NewOptimizer(llmClient, logger),
		Synthesizer: agent.NewSynthesizer(llmClient, logger),
		Search:      searchClient,
		Keys:        keys,
		Extractor:   extractor,
		Cache:       cache,
		Analytics:   recorder,
		Metrics:     metrics.New(),
		Logger:      logger,
		Config: pipeline.Config{
			DefaultKind:        cfg.Search.DefaultKind,
			DefaultResultCount: cfg.Search.DefaultResultCount,
			SearchTimeout:      cfg.Search.Timeout,
			CacheTTL:           cfg.Cache.TTL,
		},
	})

	return orch, cleanup, nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics listener stopped", zap.Error(err))
	}
}

func describeFailure(err error) error {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		// the wrapped error already carries the retry-after estimate
		return fmt.Errorf("rate limited: %w", err)
	case errors.Is(err, domain.ErrAllKeysExhausted):
		return fmt.Errorf("search credentials rejected: %w", err)
	case errors.Is(err, domain.ErrCancelled):
		return fmt.Errorf("run cancelled: %w", err)
	default:
		return err
	}
}

func printAnswer(answer *domain.AgentResponse) {
	fmt.Println(answer.ComprehensiveAnswer)
	fmt.Println()
	if len(answer.Sources) > 0 {
		fmt.Println("Sources:")
		for _, u := range answer.Sources {
			fmt.Printf("  - %s\n", u)
		}
	}
	fmt.Printf("\nConfidence: %s\n", answer.ConfidenceLevel)
	if answer.SearchResultsSummary != "" {
		fmt.Printf("(%s)\n", answer.SearchResultsSummary)
	}
}
