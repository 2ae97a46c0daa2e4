package agent

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kitbuilder587/webagent/internal/llm"
	llmmock "github.com/kitbuilder587/webagent/internal/llm/mock"
)

func TestOptimizer_Optimize(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "valid json",
			response: `{"query": "golang concurrency patterns 2025"}`,
			want:     "golang concurrency patterns 2025",
		},
		{
			name:     "fenced json",
			response: "```json\n{\"query\": \"ai news\"}\n```",
			want:     "ai news",
		},
		{
			name:     "non-json falls back to original",
			response: "sure! here is your optimized query",
			want:     "what is the latest in AI?",
		},
		{
			name:     "empty query falls back to original",
			response: `{"query": ""}`,
			want:     "what is the latest in AI?",
		},
		{
			name:     "whitespace query falls back to original",
			response: `{"query": "   "}`,
			want:     "what is the latest in AI?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llmmock.New().WithResponse(tt.response)
			opt := NewOptimizer(client, zap.NewNop())

			got, err := opt.Optimize(context.Background(), "what is the latest in AI?")
			if err != nil {
				t.Fatalf("Optimize() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Optimize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOptimizer_Optimize_LLMErrorIsFatal(t *testing.T) {
	client := llmmock.New().WithError(llm.ErrRequestFailed)
	opt := NewOptimizer(client, zap.NewNop())

	_, err := opt.Optimize(context.Background(), "question")
	if !errors.Is(err, llm.ErrRequestFailed) {
		t.Errorf("Optimize() error = %v, want ErrRequestFailed", err)
	}
}
