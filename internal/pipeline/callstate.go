package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/webagent/internal/domain"
	"github.com/kitbuilder587/webagent/internal/metrics"
	"github.com/kitbuilder587/webagent/internal/search"
)

// callPhase tracks one search call through its retry policy. Keeping the
// policy as explicit states enforces the limits structurally: the fallback
// key is tried at most once, network retries are bounded by the backoff
// schedule, malformed responses never loop.
type callPhase string

const (
	phaseAttempting      callPhase = "attempting"
	phaseRetryingNetwork callPhase = "retrying_network"
	phaseSwitchingKey    callPhase = "switching_key"
	phaseSucceeded       callPhase = "succeeded"
	phaseFailed          callPhase = "failed"
)

type searchCall struct {
	client  search.Client
	keys    *search.KeyProvider
	backoff []time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func (c *searchCall) run(ctx context.Context, query domain.WebSearchQuery) ([]search.RawResult, error) {
	key, err := c.keys.CurrentKey()
	if err != nil {
		return nil, err
	}

	phase := phaseAttempting
	networkRetries := 0
	keySwitched := false

	for {
		start := time.Now()
		results, err := c.client.Execute(ctx, query, key)
		if err == nil {
			phase = phaseSucceeded
			if c.metrics != nil {
				c.metrics.RecordSearchRequest("success", time.Since(start))
			}
			c.logger.Debug("search call succeeded",
				zap.String("phase", string(phase)),
				zap.Int("results", len(results)),
			)
			return results, nil
		}

		if c.metrics != nil {
			c.metrics.RecordSearchRequest("error", time.Since(start))
		}

		if errors.Is(err, domain.ErrRateLimited) {
			if c.metrics != nil {
				c.metrics.RecordRateLimitRejection()
			}
			return nil, err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err())
		}

		var apiErr *search.APIError
		if !errors.As(err, &apiErr) {
			return nil, err
		}

		switch apiErr.Kind {
		case search.KindAuth, search.KindQuota:
			if keySwitched {
				// the fallback failed too, nothing left to try
				return nil, fmt.Errorf("%w: %v", domain.ErrAllKeysExhausted, apiErr)
			}
			nextKey, keyErr := c.keys.ReportFailure(key)
			if keyErr != nil {
				return nil, fmt.Errorf("%w: %v", keyErr, apiErr)
			}
			phase = phaseSwitchingKey
			keySwitched = true
			key = nextKey
			if c.metrics != nil {
				c.metrics.RecordKeyFallback()
			}
			c.logger.Warn("switching to fallback search key",
				zap.String("kind", string(apiErr.Kind)),
				zap.Int("status", apiErr.Status),
			)

		case search.KindNetwork:
			if networkRetries >= len(c.backoff) {
				phase = phaseFailed
				return nil, fmt.Errorf("search retries exhausted: %w", apiErr)
			}
			wait := c.backoff[networkRetries]
			networkRetries++
			phase = phaseRetryingNetwork
			c.logger.Warn("search network error, backing off",
				zap.Duration("backoff", wait),
				zap.Int("attempt", networkRetries),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err())
			case <-time.After(wait):
			}

		case search.KindMalformed:
			// provider contract changed, retrying can't help
			phase = phaseFailed
			return nil, apiErr

		default:
			phase = phaseFailed
			return nil, apiErr
		}
	}
}
