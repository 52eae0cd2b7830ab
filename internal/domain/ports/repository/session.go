package repository

import (
	"context"
	"time"

	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
)

// SessionStore keeps per-session conversation state: history, last input
// time and the test-mode flag. Entries expire with the configured TTL.
type SessionStore interface {
	History(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	SaveHistory(ctx context.Context, sessionID string, history []model.ChatMessage) error
	ClearHistory(ctx context.Context, sessionID string) error

	LastInputAt(ctx context.Context, sessionID string) (time.Time, error)
	TouchInput(ctx context.Context, sessionID string, at time.Time) error

	TestMode(ctx context.Context, sessionID string) (bool, error)
	SetTestMode(ctx context.Context, sessionID string, enabled bool) error
}
