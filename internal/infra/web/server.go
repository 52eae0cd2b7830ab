package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/adapter"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/repository"
	"github.com/hn770123/memory-assistant-v3/internal/infra/logging"
	"github.com/hn770123/memory-assistant-v3/internal/usecase"
)

const sessionCookie = "session_id"

type Server struct {
	chatUC     usecase.ChatUseCase
	organizeUC usecase.OrganizeUseCase
	extractUC  usecase.ExtractionUseCase
	attrs      repository.AttributeRepository
	episodes   repository.EpisodeRepository
	goals      repository.GoalRepository
	requests   repository.RequestRepository
	ai         adapter.AIServiceAdapter
	auth       *AuthManager
	log        *zerolog.Logger
}

func NewServer(
	chatUC usecase.ChatUseCase,
	organizeUC usecase.OrganizeUseCase,
	extractUC usecase.ExtractionUseCase,
	attrs repository.AttributeRepository,
	episodes repository.EpisodeRepository,
	goals repository.GoalRepository,
	requests repository.RequestRepository,
	ai adapter.AIServiceAdapter,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		chatUC:     chatUC,
		organizeUC: organizeUC,
		extractUC:  extractUC,
		attrs:      attrs,
		episodes:   episodes,
		goals:      goals,
		requests:   requests,
		ai:         ai,
		auth:       auth,
		log:        logger,
	}
}

// Routes builds the full HTTP surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/chat", s.chatHandler)
	r.Get("/history", s.historyHandler)
	r.Post("/clear_history", s.clearHistoryHandler)
	r.Get("/test_mode", s.testModeGetHandler)
	r.Post("/test_mode", s.testModeSetHandler)

	r.Post("/organize", s.organizeStartHandler)
	r.Get("/organize/status", s.organizeStatusHandler)

	r.Route("/api", func(api chi.Router) {
		api.Get("/system/processing_status", s.processingStatusHandler)
		api.Get("/system/status", s.systemStatusHandler)

		api.Post("/admin/login", s.adminLoginHandler)
		api.Post("/admin/logout", s.adminLogoutHandler)

		api.Route("/data/{table}", func(data chi.Router) {
			data.Use(s.adminOnly)
			data.Get("/", s.dataListHandler)
			data.Post("/", s.dataCreateHandler)
			data.Put("/{id:[0-9]+}", s.dataUpdateHandler)
			data.Delete("/{id:[0-9]+}", s.dataDeleteHandler)
		})
	})

	return r
}

// requestLogger mints a trace id for the request and logs method, path,
// status and latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.With(ctx, s.log).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

// adminOnly guards the data CRUD surface with the admin session token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionID returns the caller's chat session id, minting a cookie on
// first contact.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
