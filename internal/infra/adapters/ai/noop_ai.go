package ai

import (
	"context"
	"strings"

	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoOpAdapter)(nil)

// NoOpAdapter is a dev stand-in that returns canned replies without any
// network calls. Prompts that ask for JSON get empty JSON back so the
// organizer and extractor parse cleanly.
type NoOpAdapter struct{}

func NewNoOpAdapter() *NoOpAdapter { return &NoOpAdapter{} }

func (n *NoOpAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop"}, nil
}

func (n *NoOpAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: "noop", Description: "development stub"}, nil
}

func (n *NoOpAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	return "(noop) message received", nil
}

func (n *NoOpAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	return "(noop) message received", adapter.Usage{}, nil
}

func (n *NoOpAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	if strings.Contains(prompt, "JSON") || strings.Contains(prompt, "json") {
		if strings.Contains(prompt, "[") {
			return "[]", nil
		}
		return "{}", nil
	}
	return "(noop)", nil
}
