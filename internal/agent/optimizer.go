package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kitbuilder587/webagent/internal/llm"
)

const optimizerSystemPrompt = `You are a search query optimizer.

Task: rewrite the user's question as ONE terse, search-engine-effective query.

Rules:
1. Keywords, not full sentences
2. Keep proper nouns and numbers exactly as given
3. Add the current year for time-sensitive topics
4. Never answer the question, only rewrite it

Response format (JSON only):
{"query": "optimized query"}`

// Optimizer turns a natural-language question into a terse search query.
// Degenerate model output falls back to the verbatim question; transport
// errors propagate, the LLM boundary has no local recovery.
type Optimizer struct {
	llm    llm.Client
	logger *zap.Logger
}

func NewOptimizer(llmClient llm.Client, logger *zap.Logger) *Optimizer {
	return &Optimizer{llm: llmClient, logger: logger}
}

func (o *Optimizer) Optimize(ctx context.Context, userQuery string) (string, error) {
	response, err := o.llm.CompleteWithSystem(ctx, optimizerSystemPrompt, fmt.Sprintf("User question: %s", userQuery))
	if err != nil {
		return "", fmt.Errorf("optimize query: %w", err)
	}

	var result struct {
		Query string `json:"query"`
	}
	if err := llm.UnmarshalCompletion(response, &result); err != nil {
		o.logger.Warn("query optimizer returned non-JSON, using original query",
			zap.String("response", response),
		)
		return userQuery, nil
	}

	optimized := strings.TrimSpace(result.Query)
	if optimized == "" {
		o.logger.Warn("query optimizer returned empty query, using original")
		return userQuery, nil
	}

	return optimized, nil
}
