package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// waitUntil polls cond until it holds or the deadline passes.
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

// --- Recording display surfaces ---

type recordingLogView struct {
	mu     sync.Mutex
	events []model.LogEvent
}

func (v *recordingLogView) Append(ev model.LogEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, ev)
}

func (v *recordingLogView) snapshot() []model.LogEvent {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]model.LogEvent, len(v.events))
	copy(out, v.events)
	return out
}

func (v *recordingLogView) messages() []string {
	var out []string
	for _, ev := range v.snapshot() {
		out = append(out, ev.Message)
	}
	return out
}

type recordingProgressView struct {
	mu     sync.Mutex
	clears int
	steps  []model.LogEvent
	closes int
}

func (v *recordingProgressView) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clears++
	v.steps = nil
}

func (v *recordingProgressView) Step(ev model.LogEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.steps = append(v.steps, ev)
}

func (v *recordingProgressView) ShowClose() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closes++
}

func (v *recordingProgressView) closeCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closes
}

// stepMessages returns step messages, skipping the client-side start
// marker so tests can assert against server-delivered events only.
func (v *recordingProgressView) stepMessages() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []string
	for _, ev := range v.steps {
		if ev.Message == "organize started" {
			continue
		}
		out = append(out, ev.Message)
	}
	return out
}

type recordingIndicator struct {
	mu     sync.Mutex
	states []bool
}

func (v *recordingIndicator) SetProcessing(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.states = append(v.states, on)
}

func (v *recordingIndicator) last() (bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.states) == 0 {
		return false, false
	}
	return v.states[len(v.states)-1], true
}

type recordingChatView struct {
	mu       sync.Mutex
	lines    []string
	loading  []bool
	enabled  []bool
	systemic []string
}

func (v *recordingChatView) ShowUser(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lines = append(v.lines, "user:"+text)
}

func (v *recordingChatView) ShowAssistant(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lines = append(v.lines, "assistant:"+text)
}

func (v *recordingChatView) ShowSystem(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lines = append(v.lines, "system:"+text)
	v.systemic = append(v.systemic, text)
}

func (v *recordingChatView) SetLoading(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = append(v.loading, on)
}

func (v *recordingChatView) SetInputEnabled(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled = append(v.enabled, on)
}

func (v *recordingChatView) allLines() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.lines))
	copy(out, v.lines)
	return out
}

// --- Scripted organize API ---

type organizePoll struct {
	status model.OrganizeStatus
	err    error
}

// scriptedOrganizeAPI serves a fixed sequence of poll results; the last
// one repeats if polling outlives the script.
type scriptedOrganizeAPI struct {
	mu         sync.Mutex
	startErr   error
	startCalls int
	polls      []organizePoll
	pollCalls  int
	gate       chan struct{} // when non-nil, OrganizeStatus blocks on it
}

func (s *scriptedOrganizeAPI) StartOrganize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++
	return s.startErr
}

func (s *scriptedOrganizeAPI) OrganizeStatus(ctx context.Context) (model.OrganizeStatus, error) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.pollCalls
	s.pollCalls++
	if i >= len(s.polls) {
		i = len(s.polls) - 1
	}
	if i < 0 {
		return model.OrganizeStatus{}, nil
	}
	return s.polls[i].status, s.polls[i].err
}

func (s *scriptedOrganizeAPI) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollCalls
}

func (s *scriptedOrganizeAPI) setPolls(polls []organizePoll) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls = polls
	s.pollCalls = 0
}

// --- Scripted extraction API ---

type extractionPoll struct {
	status model.ExtractionStatus
	err    error
}

type scriptedExtractionAPI struct {
	mu        sync.Mutex
	polls     []extractionPoll
	pollCalls int
}

func (s *scriptedExtractionAPI) ProcessingStatus(ctx context.Context) (model.ExtractionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.pollCalls
	s.pollCalls++
	if i >= len(s.polls) {
		i = len(s.polls) - 1
	}
	if i < 0 {
		return model.ExtractionStatus{}, nil
	}
	return s.polls[i].status, s.polls[i].err
}

func (s *scriptedExtractionAPI) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollCalls
}

// --- Scripted chat API ---

type scriptedChatAPI struct {
	mu    sync.Mutex
	turn  *model.ChatTurn
	err   error
	calls int
}

func (s *scriptedChatAPI) SendChat(ctx context.Context, message string) (*model.ChatTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	turn := *s.turn
	turn.UserText = message
	return &turn, nil
}

func (s *scriptedChatAPI) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Shorthand event constructors for fixtures.

func stepEv(step, msg string) model.LogEvent {
	return model.LogEvent{Step: step, Status: model.StepProcessing, Message: msg, Timestamp: time.Now()}
}

func interactionEv(action, msg string) model.LogEvent {
	return model.LogEvent{Type: model.TypeLLMInteraction, Action: action, Message: msg, Timestamp: time.Now()}
}
