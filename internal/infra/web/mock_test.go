//go:build !integration

package web

import (
	"context"
	"sync"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/adapter"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/repository"
)

// --- Mock use cases ---

type mockChatUC struct {
	SendError  error
	LastInput  string
	ClearCalls int
	testMode   bool
}

func (m *mockChatUC) SendMessage(ctx context.Context, sessionID, message string) (*model.ChatTurn, error) {
	if m.SendError != nil {
		return nil, m.SendError
	}
	m.LastInput = message
	return &model.ChatTurn{UserText: message, AssistantText: "echo: " + message}, nil
}

func (m *mockChatUC) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	if m.LastInput == "" {
		return nil, nil
	}
	return []model.ChatMessage{
		{Role: model.RoleUser, Content: m.LastInput},
		{Role: model.RoleAssistant, Content: "echo: " + m.LastInput},
	}, nil
}

func (m *mockChatUC) ClearHistory(ctx context.Context, sessionID string) error {
	m.ClearCalls++
	return nil
}

func (m *mockChatUC) TestMode(ctx context.Context, sessionID string) (bool, error) {
	return m.testMode, nil
}

func (m *mockChatUC) SetTestMode(ctx context.Context, sessionID string, enabled bool) error {
	m.testMode = enabled
	return nil
}

type mockOrganizeUC struct {
	StartError error
	status     model.OrganizeStatus
	StartCalls int
}

func (m *mockOrganizeUC) Start(ctx context.Context) error {
	m.StartCalls++
	return m.StartError
}

func (m *mockOrganizeUC) Status() model.OrganizeStatus { return m.status }

type mockExtractionUC struct {
	status model.ExtractionStatus
}

func (m *mockExtractionUC) Enqueue(userText, prevAssistant string) {}
func (m *mockExtractionUC) Status() model.ExtractionStatus         { return m.status }
func (m *mockExtractionUC) Recent(n int) []model.LogEvent          { return nil }

// --- Mock repositories ---

type mockAttrRepo struct {
	repository.AttributeRepository // embed for forward compatibility
	mu                             sync.Mutex
	attrs                          []*model.Attribute
	nextID                         int64
	AddError                       error
}

func (m *mockAttrRepo) ListAll(ctx context.Context) ([]*model.Attribute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Attribute, len(m.attrs))
	copy(out, m.attrs)
	return out, nil
}

func (m *mockAttrRepo) Add(ctx context.Context, name, value string) (int64, error) {
	if m.AddError != nil {
		return 0, m.AddError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attrs {
		if a.Name == name {
			return 0, domain.ErrAlreadyExists
		}
	}
	m.nextID++
	m.attrs = append(m.attrs, &model.Attribute{ID: m.nextID, Name: name, Value: value})
	return m.nextID, nil
}

func (m *mockAttrRepo) UpdateValue(ctx context.Context, id int64, value string) error {
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

func (m *mockAttrRepo) Delete(ctx context.Context, id int64) error {
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

type mockGoalRepo struct {
	repository.GoalRepository
	mu     sync.Mutex
	goals  []*model.Goal
	nextID int64
}

func (m *mockGoalRepo) ListAll(ctx context.Context) ([]*model.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Goal, len(m.goals))
	copy(out, m.goals)
	return out, nil
}

func (m *mockGoalRepo) Add(ctx context.Context, content string, priority int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.goals = append(m.goals, &model.Goal{ID: m.nextID, Content: content, Priority: priority, Status: model.GoalActive})
	return m.nextID, nil
}

func (m *mockGoalRepo) Update(ctx context.Context, id int64, content, status *string, priority *int) error {
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

func (m *mockGoalRepo) Delete(ctx context.Context, id int64) error {
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

// --- Mock AI adapter ---

type mockAIAdapter struct {
	ListModelsError error
}

func (m *mockAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	if m.ListModelsError != nil {
		return nil, m.ListModelsError
	}
	return []string{"mock-model"}, nil
}

func (m *mockAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model}, nil
}

func (m *mockAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	return "ok", nil
}

func (m *mockAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	return "ok", adapter.Usage{}, nil
}

func (m *mockAIAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	return "[]", nil
}
