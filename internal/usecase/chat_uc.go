// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/adapter"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/repository"
	"github.com/hn770123/memory-assistant-v3/internal/infra/logging"
	"github.com/hn770123/memory-assistant-v3/internal/infra/metrics"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// ChatUseCase orchestrates one request/response chat turn and kicks off
// post-turn memory extraction in the background.
type ChatUseCase interface {
	SendMessage(ctx context.Context, sessionID, message string) (*model.ChatTurn, error)
	History(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	ClearHistory(ctx context.Context, sessionID string) error
	TestMode(ctx context.Context, sessionID string) (bool, error)
	SetTestMode(ctx context.Context, sessionID string, enabled bool) error
}

const defaultSystemPrompt = `You are "AI Secretary", a friendly assistant dedicated to supporting the user's daily life.

Please adhere to the following guidelines:
1. Personalize your responses: actively use the user's information (attributes, memories, goals, and requests) provided in the context.
2. Speak naturally: polite but not overly formal.
3. Support goal achievement: help the user achieve their goals.
4. Follow user requests: strictly adhere to any instructions about your behavior or speech style found in the context.

IMPORTANT: Do NOT confuse your own previous statements with facts about the user. Only content explicitly stated by the user constitutes valid user information.`

// ChatSettings are the session-reset knobs from config.
type ChatSettings struct {
	SessionTimeout    time.Duration
	ResetTriggerWords []string
	HistoryTokenLimit int
	DefaultTestMode   bool
}

type chatUC struct {
	sessions   repository.SessionStore
	attrs      repository.AttributeRepository
	episodes   repository.EpisodeRepository
	goals      repository.GoalRepository
	requests   repository.RequestRepository
	ai         adapter.AIServiceAdapter
	extraction ExtractionUseCase
	tokens     *TokenCounter
	model      string
	settings   ChatSettings
	log        *zerolog.Logger
}

func NewChatUseCase(
	sessions repository.SessionStore,
	attrs repository.AttributeRepository,
	episodes repository.EpisodeRepository,
	goals repository.GoalRepository,
	requests repository.RequestRepository,
	ai adapter.AIServiceAdapter,
	extraction ExtractionUseCase,
	modelName string,
	settings ChatSettings,
	logger *zerolog.Logger,
) *chatUC {
	l := logger.With().Str("component", "ChatUC").Logger()
	return &chatUC{
		sessions:   sessions,
		attrs:      attrs,
		episodes:   episodes,
		goals:      goals,
		requests:   requests,
		ai:         ai,
		extraction: extraction,
		tokens:     NewTokenCounter(),
		model:      modelName,
		settings:   settings,
		log:        &l,
	}
}

func (c *chatUC) SendMessage(ctx context.Context, sessionID, message string) (*model.ChatTurn, error) {
	defer logging.TraceDuration(logging.With(ctx, c.log), "ChatUC.SendMessage")()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.ErrEmptyMessage
	}

	testMode, err := c.sessions.TestMode(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("read test mode: %w", err)
	}
	var testLogs []model.LogEvent
	testLog := func(ev model.LogEvent) {
		if !testMode {
			return
		}
		ev.Timestamp = time.Now()
		testLogs = append(testLogs, ev)
	}

	history, err := c.sessions.History(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("read history: %w", err)
	}
	lastInput, _ := c.sessions.LastInputAt(ctx, sessionID)

	turn := &model.ChatTurn{UserText: message}
	if reason := c.resetReason(message, lastInput, history); reason != "" {
		history = nil
		turn.HistoryReset = true
		testLog(model.LogEvent{Step: "session_reset", Message: reason})
	}

	memoryContext, err := c.buildContext(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("memory context unavailable, continuing without it")
	}
	testLog(model.LogEvent{Step: "memory_context", Message: memoryContext})

	msgs := make([]adapter.Message, 0, len(history)+2)
	system := defaultSystemPrompt
	if memoryContext != "" {
		system += "\n\n### What you know about the user\n" + memoryContext
	}
	msgs = append(msgs, adapter.Message{Role: model.RoleSystem, Content: system})
	for _, m := range history {
		msgs = append(msgs, adapter.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, adapter.Message{Role: model.RoleUser, Content: message})

	started := time.Now()
	reply, usage, err := c.ai.ChatWithUsage(ctx, c.model, msgs)
	latency := int(time.Since(started).Milliseconds())
	metrics.ObserveChatUsage("assistant", c.model, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, latency, err == nil)
	if err != nil {
		metrics.IncChatTurn("failed")
		return nil, fmt.Errorf("ai chat: %w", err)
	}
	testLog(model.LogEvent{
		Type:     model.TypeLLMInteraction,
		Action:   "chat",
		Prompt:   message,
		Response: reply,
	})

	// Extraction needs the assistant reply the user was responding to, not
	// the one we just generated.
	prevAssistant := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleAssistant {
			prevAssistant = history[i].Content
			break
		}
	}

	now := time.Now()
	history = append(history,
		model.ChatMessage{Role: model.RoleUser, Content: message, At: now},
		model.ChatMessage{Role: model.RoleAssistant, Content: reply, At: now},
	)
	if err := c.sessions.SaveHistory(ctx, sessionID, history); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	if err := c.sessions.TouchInput(ctx, sessionID, now); err != nil {
		c.log.Warn().Err(err).Msg("touch input failed")
	}

	c.extraction.Enqueue(message, prevAssistant)
	if testMode {
		if recent := c.extraction.Recent(3); len(recent) > 0 {
			testLog(model.LogEvent{Step: "memory_extraction", Message: fmt.Sprintf("%d extraction events from previous run", len(recent))})
			testLogs = append(testLogs, recent...)
		}
	}

	turn.AssistantText = reply
	turn.TestLogs = testLogs
	metrics.IncChatTurn("completed")
	return turn, nil
}

// resetReason decides whether the conversation history should start over:
// a trigger word, session inactivity, or a history that outgrew the token
// budget. Empty string means keep the history.
func (c *chatUC) resetReason(message string, lastInput time.Time, history []model.ChatMessage) string {
	for _, w := range c.settings.ResetTriggerWords {
		if w != "" && strings.Contains(message, w) {
			return "trigger word: " + w
		}
	}
	if !lastInput.IsZero() && time.Since(lastInput) >= c.settings.SessionTimeout {
		return "session timeout"
	}
	if c.settings.HistoryTokenLimit > 0 {
		total := 0
		for _, m := range history {
			total += c.tokens.Count(m.Content)
		}
		if total > c.settings.HistoryTokenLimit {
			return fmt.Sprintf("history over token budget (%d tokens)", total)
		}
	}
	return ""
}

func (c *chatUC) buildContext(ctx context.Context) (string, error) {
	var b strings.Builder

	attrs, err := c.attrs.ListAll(ctx)
	if err != nil {
		return "", err
	}
	if len(attrs) > 0 {
		b.WriteString("Attributes:\n")
		for _, a := range attrs {
			fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.Value)
		}
	}

	eps, err := c.episodes.ListAll(ctx, true)
	if err != nil {
		return "", err
	}
	if len(eps) > 0 {
		b.WriteString("Memories:\n")
		for _, e := range eps {
			fmt.Fprintf(&b, "- [%s] %s\n", e.Category, e.Content)
		}
	}

	goals, err := c.goals.ListAll(ctx)
	if err != nil {
		return "", err
	}
	active := 0
	for _, g := range goals {
		if g.Status == model.GoalActive {
			if active == 0 {
				b.WriteString("Goals:\n")
			}
			fmt.Fprintf(&b, "- (priority %d) %s\n", g.Priority, g.Content)
			active++
		}
	}

	reqs, err := c.requests.ListAll(ctx, true)
	if err != nil {
		return "", err
	}
	if len(reqs) > 0 {
		b.WriteString("Requests to the assistant:\n")
		for _, r := range reqs {
			fmt.Fprintf(&b, "- [%s] %s\n", r.Category, r.Content)
		}
	}

	return b.String(), nil
}

// History returns the session's conversation so far; an unseen session is
// just an empty conversation.
func (c *chatUC) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	history, err := c.sessions.History(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return history, err
}

func (c *chatUC) ClearHistory(ctx context.Context, sessionID string) error {
	return c.sessions.ClearHistory(ctx, sessionID)
}

func (c *chatUC) TestMode(ctx context.Context, sessionID string) (bool, error) {
	enabled, err := c.sessions.TestMode(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.settings.DefaultTestMode, nil
	}
	return enabled, err
}

func (c *chatUC) SetTestMode(ctx context.Context, sessionID string, enabled bool) error {
	return c.sessions.SetTestMode(ctx, sessionID, enabled)
}
