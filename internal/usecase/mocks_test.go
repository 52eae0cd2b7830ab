package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

func waitUntil(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", msg)
}

// ---- Fake AI ----

// fakeAI routes Generate through a hook so each test scripts the model.
type fakeAI struct {
	mu         sync.Mutex
	generateFn func(prompt string) (string, error)
	chatReply  string
	chatErr    error
	chatCalls  int
	prompts    []string
}

func (f *fakeAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func (f *fakeAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model}, nil
}

func (f *fakeAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	reply, _, err := f.ChatWithUsage(ctx, model, messages)
	return reply, err
}

func (f *fakeAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	if f.chatErr != nil {
		return "", adapter.Usage{}, f.chatErr
	}
	reply := f.chatReply
	if reply == "" {
		reply = "ok"
	}
	return reply, adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

func (f *fakeAI) Generate(ctx context.Context, model, prompt string) (string, error) {
	f.mu.Lock()
	fn := f.generateFn
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if fn != nil {
		return fn(prompt)
	}
	return "[]", nil
}

func (f *fakeAI) chatCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls
}

// ---- In-memory repositories ----

type memAttrRepo struct {
	mu     sync.Mutex
	attrs  []*model.Attribute
	nextID int64
	gate   chan struct{} // when non-nil, ListAll blocks on it
}

func (m *memAttrRepo) ListAll(ctx context.Context) ([]*model.Attribute, error) {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Attribute, len(m.attrs))
	copy(out, m.attrs)
	return out, nil
}

func (m *memAttrRepo) Add(ctx context.Context, name, value string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attrs {
		if strings.EqualFold(a.Name, name) {
			return 0, domain.ErrAlreadyExists
		}
	}
	m.nextID++
	now := time.Now()
	m.attrs = append(m.attrs, &model.Attribute{ID: m.nextID, Name: name, Value: value, CreatedAt: now, UpdatedAt: now})
	return m.nextID, nil
}

func (m *memAttrRepo) UpdateValue(ctx context.Context, id int64, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attrs {
		if a.ID == id {
			a.Value = value
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memAttrRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.attrs {
		if a.ID == id {
			m.attrs = append(m.attrs[:i], m.attrs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memAttrRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attrs)
}

type memEpisodeRepo struct {
	mu       sync.Mutex
	episodes []*model.Episode
	nextID   int64
}

func (m *memEpisodeRepo) ListAll(ctx context.Context, activeOnly bool) ([]*model.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Episode
	for _, e := range m.episodes {
		if activeOnly && !e.Active {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memEpisodeRepo) Add(ctx context.Context, content, category string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now()
	m.episodes = append(m.episodes, &model.Episode{
		ID: m.nextID, Content: content, Category: category, Active: true,
		CreatedAt: now, UpdatedAt: now,
	})
	return m.nextID, nil
}

func (m *memEpisodeRepo) UpdateContent(ctx context.Context, id int64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.episodes {
		if e.ID == id {
			e.Content = content
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memEpisodeRepo) UpdateCompression(ctx context.Context, id int64, level int, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.episodes {
		if e.ID == id {
			e.CompressionLevel = level
			e.Content = content
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memEpisodeRepo) Delete(ctx context.Context, id int64, hard bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.episodes {
		if e.ID == id {
			if hard {
				m.episodes = append(m.episodes[:i], m.episodes[i+1:]...)
			} else {
				e.Active = false
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memEpisodeRepo) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.episodes {
		if e.Active {
			n++
		}
	}
	return n
}

type memGoalRepo struct {
	mu     sync.Mutex
	goals  []*model.Goal
	nextID int64
}

func (m *memGoalRepo) ListAll(ctx context.Context) ([]*model.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Goal, len(m.goals))
	copy(out, m.goals)
	return out, nil
}

func (m *memGoalRepo) Add(ctx context.Context, content string, priority int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now()
	m.goals = append(m.goals, &model.Goal{
		ID: m.nextID, Content: content, Status: model.GoalActive, Priority: priority,
		CreatedAt: now, UpdatedAt: now,
	})
	return m.nextID, nil
}

func (m *memGoalRepo) Update(ctx context.Context, id int64, content, status *string, priority *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.goals {
		if g.ID == id {
			if content != nil {
				g.Content = *content
			}
			if status != nil {
				g.Status = *status
			}
			if priority != nil {
				g.Priority = *priority
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memGoalRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, g := range m.goals {
		if g.ID == id {
			m.goals = append(m.goals[:i], m.goals[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memGoalRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.goals)
}

type memRequestRepo struct {
	mu       sync.Mutex
	requests []*model.AssistantRequest
	nextID   int64
}

func (m *memRequestRepo) ListAll(ctx context.Context, activeOnly bool) ([]*model.AssistantRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AssistantRequest
	for _, r := range m.requests {
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memRequestRepo) Add(ctx context.Context, content, category string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now()
	m.requests = append(m.requests, &model.AssistantRequest{
		ID: m.nextID, Content: content, Category: category, Active: true,
		CreatedAt: now, UpdatedAt: now,
	})
	return m.nextID, nil
}

func (m *memRequestRepo) UpdateContent(ctx context.Context, id int64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.ID == id {
			r.Content = content
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memRequestRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.requests {
		if r.ID == id {
			m.requests = append(m.requests[:i], m.requests[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memRequestRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// ---- In-memory session store ----

type memSessionStore struct {
	mu        sync.Mutex
	histories map[string][]model.ChatMessage
	lastInput map[string]time.Time
	testModes map[string]bool
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		histories: make(map[string][]model.ChatMessage),
		lastInput: make(map[string]time.Time),
		testModes: make(map[string]bool),
	}
}

func (m *memSessionStore) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histories[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]model.ChatMessage(nil), h...), nil
}

func (m *memSessionStore) SaveHistory(ctx context.Context, sessionID string, history []model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories[sessionID] = append([]model.ChatMessage(nil), history...)
	return nil
}

func (m *memSessionStore) ClearHistory(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.histories, sessionID)
	delete(m.lastInput, sessionID)
	return nil
}

func (m *memSessionStore) LastInputAt(ctx context.Context, sessionID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.lastInput[sessionID]
	if !ok {
		return time.Time{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memSessionStore) TouchInput(ctx context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastInput[sessionID] = at
	return nil
}

func (m *memSessionStore) TestMode(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.testModes[sessionID]
	if !ok {
		return false, domain.ErrNotFound
	}
	return v, nil
}

func (m *memSessionStore) SetTestMode(ctx context.Context, sessionID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.testModes[sessionID] = enabled
	return nil
}

// ---- Recording extraction ----

type recordingExtraction struct {
	mu       sync.Mutex
	enqueues [][2]string
	recent   []model.LogEvent
}

func (r *recordingExtraction) Enqueue(userText, prevAssistant string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueues = append(r.enqueues, [2]string{userText, prevAssistant})
}

func (r *recordingExtraction) Status() model.ExtractionStatus {
	return model.ExtractionStatus{}
}

func (r *recordingExtraction) Recent(n int) []model.LogEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > len(r.recent) {
		n = len(r.recent)
	}
	return append([]model.LogEvent(nil), r.recent[len(r.recent)-n:]...)
}

func (r *recordingExtraction) calls() [][2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][2]string, len(r.enqueues))
	copy(out, r.enqueues)
	return out
}
