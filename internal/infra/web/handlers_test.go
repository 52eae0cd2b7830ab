//go:build !integration

package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	chat     *mockChatUC
	organize *mockOrganizeUC
	extract  *mockExtractionUC
	attrs    *mockAttrRepo
	goals    *mockGoalRepo
}

func newTestEnv() *testEnv {
	chat := &mockChatUC{}
	organize := &mockOrganizeUC{}
	extract := &mockExtractionUC{}
	attrs := &mockAttrRepo{}
	goals := &mockGoalRepo{}
	auth := NewAuthManager("test-admin-jwt-secret-please-change", "hunter2", false, time.Minute)
	srv := NewServer(chat, organize, extract, attrs, nil, goals, nil, &mockAIAdapter{}, auth, newTestLogger())
	return &testEnv{
		server:   srv,
		handler:  srv.Routes(),
		chat:     chat,
		organize: organize,
		extract:  extract,
		attrs:    attrs,
		goals:    goals,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestChatHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/chat", map[string]string{"message": "hello"}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
		}
		var turn model.ChatTurn
		if err := json.NewDecoder(rec.Body).Decode(&turn); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if turn.AssistantText != "echo: hello" {
			t.Errorf("response = %q", turn.AssistantText)
		}
	})

	t.Run("empty message -> 400", func(t *testing.T) {
		env := newTestEnv()
		env.chat.SendError = domain.ErrEmptyMessage
		rec := env.do(t, http.MethodPost, "/chat", map[string]string{"message": "  "}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("malformed body -> 400", func(t *testing.T) {
		env := newTestEnv()
		req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("mints session cookie on first contact", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/chat", map[string]string{"message": "hi"}, nil)
		found := false
		for _, c := range rec.Result().Cookies() {
			if c.Name == sessionCookie && c.Value != "" {
				found = true
			}
		}
		if !found {
			t.Error("expected a session cookie on first request")
		}
	})
}

func TestOrganizeHandlers(t *testing.T) {
	t.Run("start -> 202", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/organize", nil, nil)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
		}
		if env.organize.StartCalls != 1 {
			t.Errorf("StartCalls = %d, want 1", env.organize.StartCalls)
		}
	})

	t.Run("already running -> 409 with error body", func(t *testing.T) {
		env := newTestEnv()
		env.organize.StartError = domain.ErrJobAlreadyRunning
		rec := env.do(t, http.MethodPost, "/organize", nil, nil)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["error"] == "" {
			t.Error("expected an error message in the body")
		}
	})

	t.Run("status passthrough", func(t *testing.T) {
		env := newTestEnv()
		env.organize.status = model.OrganizeStatus{
			IsOrganizing: true,
			Logs: []model.LogEvent{
				{Step: model.StepOverall, Status: model.StepStarted, Message: "organize started"},
			},
		}
		rec := env.do(t, http.MethodGet, "/organize/status", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var got model.OrganizeStatus
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if !got.IsOrganizing || len(got.Logs) != 1 {
			t.Errorf("got %+v", got)
		}
	})
}

func TestProcessingStatusHandler(t *testing.T) {
	env := newTestEnv()
	env.extract.status = model.ExtractionStatus{Processing: true}
	rec := env.do(t, http.MethodGet, "/api/system/processing_status", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got model.ExtractionStatus
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !got.Processing {
		t.Error("Processing = false, want true")
	}
	if got.Logs != nil {
		t.Errorf("Logs = %v, want omitted while processing", got.Logs)
	}
}

func TestTestModeHandlers(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/test_mode", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = env.do(t, http.MethodPost, "/test_mode", map[string]bool{"enabled": true}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !env.chat.testMode {
		t.Error("test mode not enabled on the use case")
	}
}

func TestAdminAuth(t *testing.T) {
	t.Run("no credentials -> 401", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodGet, "/api/data/user_attributes", nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("wrong password -> 401", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"password": "nope"}, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("login then bearer token grants access", func(t *testing.T) {
		env := newTestEnv()
		rec := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"password": "hunter2"}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("login status = %d (body %s)", rec.Code, rec.Body)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode login body: %v", err)
		}
		token := body["token"]
		if token == "" {
			t.Fatal("no token in login response")
		}

		rec = env.do(t, http.MethodGet, "/api/data/user_attributes", nil, map[string]string{
			"Authorization": "Bearer " + token,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
		}
	})
}

func TestDataCRUD(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/admin/login", map[string]string{"password": "hunter2"}, nil)
	var login map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	hdr := map[string]string{"Authorization": "Bearer " + login["token"]}

	t.Run("create and list attributes", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/data/user_attributes", map[string]string{
			"attribute_name":  "hobby",
			"attribute_value": "chess",
		}, hdr)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d (body %s)", rec.Code, rec.Body)
		}

		rec = env.do(t, http.MethodGet, "/api/data/user_attributes", nil, hdr)
		if rec.Code != http.StatusOK {
			t.Fatalf("list status = %d", rec.Code)
		}
		var body struct {
			Data []*model.Attribute `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		if len(body.Data) != 1 || body.Data[0].Name != "hobby" {
			t.Errorf("list = %+v", body.Data)
		}
	})

	t.Run("duplicate attribute -> 409", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/data/user_attributes", map[string]string{
			"attribute_name":  "hobby",
			"attribute_value": "go",
		}, hdr)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
	})

	t.Run("update goal status", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/data/user_goals", map[string]any{
			"goal_content": "run a marathon",
			"priority":     7,
		}, hdr)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rec.Code)
		}

		rec = env.do(t, http.MethodPut, "/api/data/user_goals/1", map[string]string{
			"goal_status": model.GoalCompleted,
		}, hdr)
		if rec.Code != http.StatusOK {
			t.Fatalf("update status = %d (body %s)", rec.Code, rec.Body)
		}
		if env.goals.goals[0].Status != model.GoalCompleted {
			t.Errorf("goal status = %q", env.goals.goals[0].Status)
		}
	})

	t.Run("delete missing record -> 404", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/data/user_goals/999", nil, hdr)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("unknown table -> 404", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/data/secrets", nil, hdr)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}

func TestRequestLoggerEmitsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	auth := NewAuthManager("test-admin-jwt-secret-please-change", "hunter2", false, time.Minute)
	srv := NewServer(&mockChatUC{}, &mockOrganizeUC{}, &mockExtractionUC{}, &mockAttrRepo{}, nil, &mockGoalRepo{}, nil, &mockAIAdapter{}, auth, &logger)
	handler := srv.Routes()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !bytes.Contains(buf.Bytes(), []byte(`"trace_id":"`)) {
		t.Errorf("request log missing trace_id: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"path":"/healthz"`)) {
		t.Errorf("request log missing path: %s", buf.String())
	}
}

func TestHistoryHandler(t *testing.T) {
	env := newTestEnv()

	t.Run("fresh session -> empty list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/history", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp struct {
			History []model.ChatMessage `json:"history"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp.History) != 0 {
			t.Errorf("history = %+v, want empty", resp.History)
		}
	})

	t.Run("after a turn", func(t *testing.T) {
		if rec := env.do(t, http.MethodPost, "/chat", map[string]string{"message": "hello"}, nil); rec.Code != http.StatusOK {
			t.Fatalf("chat status = %d", rec.Code)
		}
		rec := env.do(t, http.MethodGet, "/history", nil, nil)
		var resp struct {
			History []model.ChatMessage `json:"history"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp.History) != 2 || resp.History[0].Role != model.RoleUser || resp.History[1].Content != "echo: hello" {
			t.Errorf("history = %+v", resp.History)
		}
	})
}
