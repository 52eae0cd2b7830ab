package repository

import (
	"context"

	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
)

// AttributeRepository stores basic user facts.
type AttributeRepository interface {
	ListAll(ctx context.Context) ([]*model.Attribute, error)
	Add(ctx context.Context, name, value string) (int64, error)
	UpdateValue(ctx context.Context, id int64, value string) error
	Delete(ctx context.Context, id int64) error
}

// EpisodeRepository stores everyday memories.
type EpisodeRepository interface {
	// ListAll returns episodes; activeOnly filters soft-deleted rows.
	ListAll(ctx context.Context, activeOnly bool) ([]*model.Episode, error)
	Add(ctx context.Context, content, category string) (int64, error)
	UpdateContent(ctx context.Context, id int64, content string) error
	UpdateCompression(ctx context.Context, id int64, level int, content string) error
	// Delete soft-deletes unless hard is set.
	Delete(ctx context.Context, id int64, hard bool) error
}

// GoalRepository stores user goals.
type GoalRepository interface {
	ListAll(ctx context.Context) ([]*model.Goal, error)
	Add(ctx context.Context, content string, priority int) (int64, error)
	Update(ctx context.Context, id int64, content, status *string, priority *int) error
	Delete(ctx context.Context, id int64) error
}

// RequestRepository stores standing instructions to the assistant.
type RequestRepository interface {
	ListAll(ctx context.Context, activeOnly bool) ([]*model.AssistantRequest, error)
	Add(ctx context.Context, content, category string) (int64, error)
	UpdateContent(ctx context.Context, id int64, content string) error
	Delete(ctx context.Context, id int64) error
}
