package client

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
)

// ChatAPI is the slice of the server surface the session needs.
type ChatAPI interface {
	SendChat(ctx context.Context, message string) (*model.ChatTurn, error)
}

var _ ChatAPI = (*Client)(nil)

// ChatSession orchestrates one request/response chat turn and, on
// success, hands the implicit extraction job to the watcher.
type ChatSession struct {
	api     ChatAPI
	view    ChatView
	watcher *ChatStatusWatcher
	log     *zerolog.Logger
}

func NewChatSession(api ChatAPI, view ChatView, watcher *ChatStatusWatcher, logger *zerolog.Logger) *ChatSession {
	l := logger.With().Str("component", "chat-session").Logger()
	return &ChatSession{
		api:     api,
		view:    view,
		watcher: watcher,
		log:     &l,
	}
}

// Send runs one chat turn. Empty or whitespace-only input is rejected
// before anything is rendered or sent. Input is re-enabled and the
// loading marker cleared on every path out of the network call.
func (s *ChatSession) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.ErrEmptyMessage
	}

	s.view.ShowUser(trimmed)
	s.view.SetLoading(true)
	s.view.SetInputEnabled(false)
	defer func() {
		s.view.SetLoading(false)
		s.view.SetInputEnabled(true)
	}()

	turn, err := s.api.SendChat(ctx, trimmed)
	if err != nil {
		s.log.Warn().Err(err).Msg("chat send failed")
		s.view.ShowSystem("error: " + err.Error())
		return err
	}

	s.view.ShowAssistant(turn.AssistantText)
	if turn.HistoryReset {
		s.view.ShowSystem("conversation history was reset")
	}
	for _, ev := range turn.TestLogs {
		s.view.ShowSystem("[test] " + formatTestLog(ev))
	}

	s.watcher.Begin(ctx)
	return nil
}

func formatTestLog(ev model.LogEvent) string {
	if ev.IsInteraction() {
		return ev.Action + ": " + ev.Prompt
	}
	if ev.Message != "" {
		return ev.Message
	}
	return string(ev.Status)
}
