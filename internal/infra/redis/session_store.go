package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/repository"
)

var _ repository.SessionStore = (*SessionStore)(nil)

// SessionStore keeps per-session chat state in redis with a sliding TTL.
// Keys: session:{id}:history, session:{id}:last_input, session:{id}:test_mode.
type SessionStore struct {
	client RedisClient
	ttl    time.Duration
}

func NewSessionStore(client RedisClient, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	data, err := s.client.Get(ctx, "session:"+sessionID+":history")
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var history []model.ChatMessage
	if err := json.Unmarshal([]byte(data), &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *SessionStore) SaveHistory(ctx context.Context, sessionID string, history []model.ChatMessage) error {
	data, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "session:"+sessionID+":history", data, s.ttl)
}

func (s *SessionStore) ClearHistory(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, "session:"+sessionID+":history", "session:"+sessionID+":last_input")
}

func (s *SessionStore) LastInputAt(ctx context.Context, sessionID string) (time.Time, error) {
	data, err := s.client.Get(ctx, "session:"+sessionID+":last_input")
	if err != nil {
		if IsNil(err) {
			return time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, err
	}
	unix, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0), nil
}

func (s *SessionStore) TouchInput(ctx context.Context, sessionID string, at time.Time) error {
	return s.client.Set(ctx, "session:"+sessionID+":last_input", strconv.FormatInt(at.Unix(), 10), s.ttl)
}

func (s *SessionStore) TestMode(ctx context.Context, sessionID string) (bool, error) {
	data, err := s.client.Get(ctx, "session:"+sessionID+":test_mode")
	if err != nil {
		if IsNil(err) {
			return false, domain.ErrNotFound
		}
		return false, err
	}
	return data == "1", nil
}

func (s *SessionStore) SetTestMode(ctx context.Context, sessionID string, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return s.client.Set(ctx, "session:"+sessionID+":test_mode", v, s.ttl)
}
