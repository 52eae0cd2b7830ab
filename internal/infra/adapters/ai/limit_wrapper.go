package ai

import (
	"context"

	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*LimitedAIAdapter)(nil)

// LimitedAIAdapter caps the number of in-flight provider calls with a
// simple semaphore. Metadata lookups pass through unguarded.
type LimitedAIAdapter struct {
	inner adapter.AIServiceAdapter
	sem   chan struct{}
}

func NewLimitedAIAdapter(inner adapter.AIServiceAdapter, maxConcurrent int) *LimitedAIAdapter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &LimitedAIAdapter{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *LimitedAIAdapter) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *LimitedAIAdapter) release() { <-l.sem }

func (l *LimitedAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return l.inner.ListModels(ctx)
}

func (l *LimitedAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return l.inner.GetModelInfo(model)
}

func (l *LimitedAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.Chat(ctx, model, messages)
}

func (l *LimitedAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if err := l.acquire(ctx); err != nil {
		return "", adapter.Usage{}, err
	}
	defer l.release()
	return l.inner.ChatWithUsage(ctx, model, messages)
}

func (l *LimitedAIAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.Generate(ctx, model, prompt)
}
