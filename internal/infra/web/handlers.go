package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
	"github.com/hn770123/memory-assistant-v3/internal/infra/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// httpStatus maps domain sentinels onto response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrJobAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProviderDown):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ===== Chat =====

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sid := s.sessionID(w, r)
	ctx := logging.WithSessID(r.Context(), sid)
	turn, err := s.chatUC.SendMessage(ctx, sid, req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "message is empty")
			return
		}
		logging.With(ctx, s.log).Error().Err(err).Msg("chat turn failed")
		writeError(w, httpStatus(err), "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	history, err := s.chatUC.History(r.Context(), sid)
	if err != nil {
		s.log.Error().Err(err).Msg("history read failed")
		writeError(w, httpStatus(err), "failed to read history")
		return
	}
	if history == nil {
		history = []model.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) clearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	if err := s.chatUC.ClearHistory(r.Context(), sid); err != nil {
		s.log.Error().Err(err).Msg("clear history failed")
		writeError(w, httpStatus(err), "failed to clear history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) testModeGetHandler(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	enabled, err := s.chatUC.TestMode(r.Context(), sid)
	if err != nil {
		writeError(w, httpStatus(err), "failed to read test mode")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"test_mode": enabled})
}

func (s *Server) testModeSetHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sid := s.sessionID(w, r)
	if err := s.chatUC.SetTestMode(r.Context(), sid, req.Enabled); err != nil {
		writeError(w, httpStatus(err), "failed to set test mode")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"test_mode": req.Enabled})
}

// ===== Organize =====

func (s *Server) organizeStartHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.organizeUC.Start(r.Context()); err != nil {
		if errors.Is(err, domain.ErrJobAlreadyRunning) {
			writeError(w, http.StatusConflict, "organize is already running")
			return
		}
		s.log.Error().Err(err).Msg("organize start failed")
		writeError(w, httpStatus(err), "failed to start organize")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) organizeStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.organizeUC.Status())
}

// ===== System =====

func (s *Server) processingStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.extractUC.Status())
}

func (s *Server) systemStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	providerOK := true
	if _, err := s.ai.ListModels(ctx); err != nil {
		providerOK = false
	}

	sid := s.sessionID(w, r)
	testMode, err := s.chatUC.TestMode(r.Context(), sid)
	if err != nil {
		testMode = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider_connected": providerOK,
		"test_mode":          testMode,
	})
}

// ===== Admin session =====

func (s *Server) adminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.auth.CheckPassword(req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("minting admin token failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) adminLogoutHandler(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// ===== Data CRUD =====

const (
	tableAttributes = "user_attributes"
	tableMemories   = "user_memories"
	tableGoals      = "user_goals"
	tableRequests   = "assistant_requests"
)

func (s *Server) dataListHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		data any
		err  error
	)
	switch chi.URLParam(r, "table") {
	case tableAttributes:
		data, err = s.attrs.ListAll(ctx)
	case tableMemories:
		data, err = s.episodes.ListAll(ctx, false)
	case tableGoals:
		data, err = s.goals.ListAll(ctx)
	case tableRequests:
		data, err = s.requests.ListAll(ctx, false)
	default:
		writeError(w, http.StatusNotFound, "unknown table")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("data list failed")
		writeError(w, httpStatus(err), "failed to list records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

type dataCreateRequest struct {
	AttributeName   string `json:"attribute_name"`
	AttributeValue  string `json:"attribute_value"`
	MemoryContent   string `json:"memory_content"`
	MemoryCategory  string `json:"memory_category"`
	GoalContent     string `json:"goal_content"`
	Priority        int    `json:"priority"`
	RequestContent  string `json:"request_content"`
	RequestCategory string `json:"request_category"`
}

func (s *Server) dataCreateHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dataCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		id  int64
		err error
	)
	switch chi.URLParam(r, "table") {
	case tableAttributes:
		if req.AttributeName == "" {
			writeError(w, http.StatusBadRequest, "attribute_name is required")
			return
		}
		id, err = s.attrs.Add(ctx, req.AttributeName, req.AttributeValue)
	case tableMemories:
		if req.MemoryContent == "" {
			writeError(w, http.StatusBadRequest, "memory_content is required")
			return
		}
		id, err = s.episodes.Add(ctx, req.MemoryContent, req.MemoryCategory)
	case tableGoals:
		if req.GoalContent == "" {
			writeError(w, http.StatusBadRequest, "goal_content is required")
			return
		}
		id, err = s.goals.Add(ctx, req.GoalContent, req.Priority)
	case tableRequests:
		if req.RequestContent == "" {
			writeError(w, http.StatusBadRequest, "request_content is required")
			return
		}
		id, err = s.requests.Add(ctx, req.RequestContent, req.RequestCategory)
	default:
		writeError(w, http.StatusNotFound, "unknown table")
		return
	}
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "record already exists")
			return
		}
		s.log.Error().Err(err).Msg("data create failed")
		writeError(w, httpStatus(err), "failed to create record")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type dataUpdateRequest struct {
	AttributeValue *string `json:"attribute_value"`
	MemoryContent  *string `json:"memory_content"`
	GoalContent    *string `json:"goal_content"`
	GoalStatus     *string `json:"goal_status"`
	Priority       *int    `json:"priority"`
	RequestContent *string `json:"request_content"`
}

func (s *Server) dataUpdateHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	var req dataUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch chi.URLParam(r, "table") {
	case tableAttributes:
		if req.AttributeValue == nil {
			writeError(w, http.StatusBadRequest, "attribute_value is required")
			return
		}
		err = s.attrs.UpdateValue(ctx, id, *req.AttributeValue)
	case tableMemories:
		if req.MemoryContent == nil {
			writeError(w, http.StatusBadRequest, "memory_content is required")
			return
		}
		err = s.episodes.UpdateContent(ctx, id, *req.MemoryContent)
	case tableGoals:
		if req.GoalContent == nil && req.GoalStatus == nil && req.Priority == nil {
			writeError(w, http.StatusBadRequest, "nothing to update")
			return
		}
		err = s.goals.Update(ctx, id, req.GoalContent, req.GoalStatus, req.Priority)
	case tableRequests:
		if req.RequestContent == nil {
			writeError(w, http.StatusBadRequest, "request_content is required")
			return
		}
		err = s.requests.UpdateContent(ctx, id, *req.RequestContent)
	default:
		writeError(w, http.StatusNotFound, "unknown table")
		return
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		s.log.Error().Err(err).Msg("data update failed")
		writeError(w, httpStatus(err), "failed to update record")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) dataDeleteHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	switch chi.URLParam(r, "table") {
	case tableAttributes:
		err = s.attrs.Delete(ctx, id)
	case tableMemories:
		err = s.episodes.Delete(ctx, id, false)
	case tableGoals:
		err = s.goals.Delete(ctx, id)
	case tableRequests:
		err = s.requests.Delete(ctx, id)
	default:
		writeError(w, http.StatusNotFound, "unknown table")
		return
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		s.log.Error().Err(err).Msg("data delete failed")
		writeError(w, httpStatus(err), "failed to delete record")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
