package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kitbuilder587/webagent/internal/domain"
	"github.com/kitbuilder587/webagent/internal/llm"
)

const synthesizerSystemPrompt = `You are a research assistant answering questions from web search results.

Rules:
1. Answer ONLY from the provided results; say so when they don't cover the question
2. Cite the URL of every result you rely on
3. Confidence reflects evidentiary strength: "high" needs multiple agreeing
   sources with full page content, "low" means thin or conflicting evidence

Response format (JSON only):
{"comprehensive_answer": "...", "sources": ["url1", "url2"], "confidence_level": "high|medium|low"}`

// maxContentChars bounds how much of each result goes into the prompt.
const maxContentChars = 2000

// Synthesizer produces the final cited answer from aggregated results.
type Synthesizer struct {
	llm    llm.Client
	logger *zap.Logger
}

func NewSynthesizer(llmClient llm.Client, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{llm: llmClient, logger: logger}
}

func (s *Synthesizer) Synthesize(ctx context.Context, userQuery string, resp domain.SearchResponse) (*domain.AgentResponse, error) {
	if len(resp.Results) == 0 {
		// fully determined locally, no reason to burn an LLM call
		return &domain.AgentResponse{
			UserQuery:            userQuery,
			SearchResultsSummary: resp.ResultSummary,
			ComprehensiveAnswer:  fmt.Sprintf("No web results were found for %q. The question cannot be answered from live sources at this time.", userQuery),
			Sources:              []string{},
			ConfidenceLevel:      domain.ConfidenceLow,
		}, nil
	}

	completion, err := s.llm.CompleteWithSystem(ctx, synthesizerSystemPrompt, buildSynthesisPrompt(userQuery, resp))
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	var parsed struct {
		ComprehensiveAnswer string   `json:"comprehensive_answer"`
		Sources             []string `json:"sources"`
		ConfidenceLevel     string   `json:"confidence_level"`
	}
	if err := llm.UnmarshalCompletion(completion, &parsed); err != nil {
		s.logger.Warn("synthesizer returned non-JSON, using raw text as answer")
		parsed.ComprehensiveAnswer = strings.TrimSpace(completion)
		parsed.ConfidenceLevel = string(domain.ConfidenceMedium)
	}

	if strings.TrimSpace(parsed.ComprehensiveAnswer) == "" {
		return nil, fmt.Errorf("synthesize answer: %w", llm.ErrEmptyResponse)
	}

	confidence := domain.ConfidenceLevel(strings.ToLower(parsed.ConfidenceLevel))
	if !confidence.IsValid() {
		confidence = domain.ConfidenceMedium
	}
	// snippet-only evidence never supports a high-confidence answer
	if resp.Extracted == 0 && confidence == domain.ConfidenceHigh {
		confidence = domain.ConfidenceMedium
	}

	return &domain.AgentResponse{
		UserQuery:            userQuery,
		SearchResultsSummary: resp.ResultSummary,
		ComprehensiveAnswer:  parsed.ComprehensiveAnswer,
		Sources:              filterSources(parsed.Sources, resp.Results),
		ConfidenceLevel:      confidence,
	}, nil
}

func buildSynthesisPrompt(userQuery string, resp domain.SearchResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question: %s\n\nSearch results:\n", userQuery)

	for _, r := range resp.Results {
		content := r.Content
		if len(content) > maxContentChars {
			content = content[:maxContentChars]
		}
		fmt.Fprintf(&b, "\n[%d] %s\nURL: %s\nDomain: %s\n", r.Rank, r.Title, r.URL, r.Domain)
		if r.PublishedAt != nil {
			fmt.Fprintf(&b, "Published: %s\n", r.PublishedAt.Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "%s\n", content)
	}

	return b.String()
}

// filterSources keeps only URLs that actually appear in the results, in a
// stable order, deduplicated. Models invent citations; we don't pass
// those on.
func filterSources(claimed []string, results []domain.StructuredResult) []string {
	known := make(map[string]bool, len(results))
	for _, r := range results {
		known[r.URL] = true
	}

	out := make([]string, 0, len(claimed))
	seen := make(map[string]bool, len(claimed))
	for _, u := range claimed {
		if known[u] && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
