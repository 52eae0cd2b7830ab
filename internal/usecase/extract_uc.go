// File: internal/usecase/extract_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/adapter"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/repository"
	"github.com/hn770123/memory-assistant-v3/internal/infra/logging"
	"github.com/hn770123/memory-assistant-v3/internal/infra/metrics"
	"github.com/hn770123/memory-assistant-v3/internal/infra/worker"
)

var _ ExtractionUseCase = (*extractionUC)(nil)

// ExtractionUseCase pulls memorable facts out of a user utterance after each
// chat turn. Runs are fire-and-forget; the chat response never waits on them.
// Clients poll Status to know when processing has settled.
type ExtractionUseCase interface {
	// Enqueue schedules extraction of one user utterance. The previous
	// assistant reply is passed along so the model can exclude it.
	Enqueue(userText, prevAssistant string)
	Status() model.ExtractionStatus
	// Recent returns up to n trailing log events of the last finished run.
	Recent(n int) []model.LogEvent
}

// Only the user's own statements are extraction material; the assistant's
// phrasing must never be stored as a fact about the user.
const extractionPrompt = `You extract important information from a conversation, accurately and without alteration.
Analyze ONLY the user's statement. The assistant's reply is context to exclude, never a source of facts.

### Assistant reply (context, do not extract from this)
%s

### User statement (extract from this)
%s

### Categories
- attributes: basic facts about the user (name, age, occupation, address, hobbies)
- memories: everyday events, experiences, preferences, knowledge; category one of "general", "preference", "event", "knowledge"
- goals: things the user wants to do or achieve; priority 1-10, default 5
- requests: instructions for the assistant (tone, behavior, format); category one of "tone", "behavior", "format", "general"

### Output Format
JSON ONLY, matching:
{"attributes":[{"name":"...","value":"..."}],"memories":[{"content":"...","category":"general"}],"goals":[{"content":"...","priority":5}],"requests":[{"content":"...","category":"general"}]}
Omit uncertain or inferred information. Empty arrays are fine.`

type extractedFacts struct {
	Attributes []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"attributes"`
	Memories []struct {
		Content  string `json:"content"`
		Category string `json:"category"`
	} `json:"memories"`
	Goals []struct {
		Content  string `json:"content"`
		Priority int    `json:"priority"`
	} `json:"goals"`
	Requests []struct {
		Content  string `json:"content"`
		Category string `json:"category"`
	} `json:"requests"`
}

type extractionUC struct {
	attrs    repository.AttributeRepository
	episodes repository.EpisodeRepository
	goals    repository.GoalRepository
	requests repository.RequestRepository
	ai       adapter.AIServiceAdapter
	model    string
	pool     *worker.Pool
	log      *zerolog.Logger

	mu       sync.Mutex
	active   int
	lastLogs []model.LogEvent
}

func NewExtractionUseCase(
	attrs repository.AttributeRepository,
	episodes repository.EpisodeRepository,
	goals repository.GoalRepository,
	requests repository.RequestRepository,
	ai adapter.AIServiceAdapter,
	modelName string,
	pool *worker.Pool,
	logger *zerolog.Logger,
) *extractionUC {
	l := logger.With().Str("component", "ExtractionUC").Logger()
	return &extractionUC{
		attrs:    attrs,
		episodes: episodes,
		goals:    goals,
		requests: requests,
		ai:       ai,
		model:    modelName,
		pool:     pool,
		log:      &l,
	}
}

func (e *extractionUC) Enqueue(userText, prevAssistant string) {
	e.mu.Lock()
	e.active++
	e.mu.Unlock()

	err := e.pool.Submit(func(ctx context.Context) error {
		defer func() {
			e.mu.Lock()
			e.active--
			e.mu.Unlock()
		}()
		return e.extract(ctx, userText, prevAssistant)
	})
	if err != nil {
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
		e.log.Error().Err(err).Msg("extraction submit failed")
		metrics.IncExtractionJob("failed")
	}
}

func (e *extractionUC) Status() model.ExtractionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := model.ExtractionStatus{Processing: e.active > 0}
	if !st.Processing && len(e.lastLogs) > 0 {
		st.Logs = append([]model.LogEvent(nil), e.lastLogs...)
	}
	return st
}

func (e *extractionUC) Recent(n int) []model.LogEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 || len(e.lastLogs) == 0 {
		return nil
	}
	start := len(e.lastLogs) - n
	if start < 0 {
		start = 0
	}
	return append([]model.LogEvent(nil), e.lastLogs[start:]...)
}

func (e *extractionUC) extract(ctx context.Context, userText, prevAssistant string) error {
	defer logging.TraceDuration(logging.With(ctx, e.log), "ExtractionUC.extract")()

	var logs []model.LogEvent
	note := func(status model.StepStatus, msg string) {
		logs = append(logs, model.LogEvent{
			Step:      "extraction",
			Status:    status,
			Message:   msg,
			Timestamp: time.Now(),
		})
	}
	note(model.StepStarted, "extracting memories from user input")

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if prevAssistant == "" {
		prevAssistant = "(none)"
	}
	prompt := fmt.Sprintf(extractionPrompt, prevAssistant, userText)
	raw, err := e.ai.Generate(ctx, e.model, prompt)
	logs = append(logs, model.LogEvent{
		Type:      model.TypeLLMInteraction,
		Action:    "extract_memories",
		Prompt:    prompt,
		Response:  raw,
		Timestamp: time.Now(),
	})
	if err != nil {
		note(model.StepError, "extraction call failed: "+err.Error())
		e.storeLogs(logs)
		metrics.IncExtractionJob("failed")
		return fmt.Errorf("extraction generate: %w", err)
	}

	facts, err := parseFacts(raw)
	if err != nil {
		note(model.StepError, "could not parse extraction output")
		e.storeLogs(logs)
		metrics.IncExtractionJob("failed")
		return fmt.Errorf("parse extraction: %w", err)
	}

	saved, err := e.persist(ctx, facts)
	if err != nil {
		note(model.StepError, "saving extracted facts failed: "+err.Error())
		e.storeLogs(logs)
		metrics.IncExtractionJob("failed")
		return err
	}

	note(model.StepCompleted, fmt.Sprintf("saved %d extracted facts", saved))
	e.storeLogs(logs)
	metrics.IncExtractionJob("completed")
	return nil
}

func (e *extractionUC) storeLogs(logs []model.LogEvent) {
	e.mu.Lock()
	e.lastLogs = logs
	e.mu.Unlock()
}

func parseFacts(raw string) (*extractedFacts, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			s = s[i : j+1]
		}
	}
	var f extractedFacts
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (e *extractionUC) persist(ctx context.Context, f *extractedFacts) (int, error) {
	saved := 0

	existing, err := e.attrs.ListAll(ctx)
	if err != nil {
		return saved, fmt.Errorf("list attributes: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, a := range existing {
		known[strings.ToLower(a.Name)] = true
	}
	for _, a := range f.Attributes {
		if a.Name == "" || a.Value == "" || known[strings.ToLower(a.Name)] {
			continue
		}
		if _, err := e.attrs.Add(ctx, a.Name, a.Value); err != nil {
			return saved, fmt.Errorf("add attribute: %w", err)
		}
		saved++
	}

	eps, err := e.episodes.ListAll(ctx, true)
	if err != nil {
		return saved, fmt.Errorf("list episodes: %w", err)
	}
	seenEp := make(map[string]bool, len(eps))
	for _, ep := range eps {
		seenEp[ep.Content] = true
	}
	for _, m := range f.Memories {
		if m.Content == "" || seenEp[m.Content] {
			continue
		}
		cat := m.Category
		if cat == "" {
			cat = "general"
		}
		if _, err := e.episodes.Add(ctx, m.Content, cat); err != nil {
			return saved, fmt.Errorf("add episode: %w", err)
		}
		saved++
	}

	goals, err := e.goals.ListAll(ctx)
	if err != nil {
		return saved, fmt.Errorf("list goals: %w", err)
	}
	seenGoal := make(map[string]bool, len(goals))
	for _, g := range goals {
		seenGoal[g.Content] = true
	}
	for _, g := range f.Goals {
		if g.Content == "" || seenGoal[g.Content] {
			continue
		}
		prio := g.Priority
		if prio < 1 || prio > 10 {
			prio = 5
		}
		if _, err := e.goals.Add(ctx, g.Content, prio); err != nil {
			return saved, fmt.Errorf("add goal: %w", err)
		}
		saved++
	}

	for _, r := range f.Requests {
		if r.Content == "" {
			continue
		}
		cat := r.Category
		if cat == "" {
			cat = "general"
		}
		if _, err := e.requests.Add(ctx, r.Content, cat); err != nil {
			return saved, fmt.Errorf("add request: %w", err)
		}
		saved++
	}

	return saved, nil
}
