package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hn770123/memory-assistant-v3/internal/config"
	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/adapter"
	aiAdapters "github.com/hn770123/memory-assistant-v3/internal/infra/adapters/ai"
	pg "github.com/hn770123/memory-assistant-v3/internal/infra/db/postgres"
	"github.com/hn770123/memory-assistant-v3/internal/infra/logging"
	"github.com/hn770123/memory-assistant-v3/internal/infra/metrics"
	red "github.com/hn770123/memory-assistant-v3/internal/infra/redis"
	"github.com/hn770123/memory-assistant-v3/internal/infra/sched"
	"github.com/hn770123/memory-assistant-v3/internal/infra/web"
	"github.com/hn770123/memory-assistant-v3/internal/infra/worker"
	"github.com/hn770123/memory-assistant-v3/internal/usecase"
)

const maxConcurrentAICalls = 4

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logs, noop AI fallback)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()
	if err := pg.InitSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema init failed")
	}
	go pg.ReportPoolStats(ctx, pool, 30*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisClient.Close()
	sessions := red.NewSessionStore(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	attrRepo := pg.NewAttributeRepo(pool)
	episodeRepo := pg.NewEpisodeRepo(pool)
	goalRepo := pg.NewGoalRepo(pool)
	requestRepo := pg.NewRequestRepo(pool)

	// ---- AI adapter (OpenAI-compatible -> Gemini -> noop in dev) ----
	var ai adapter.AIServiceAdapter
	switch {
	case cfg.AI.OpenAIKey != "" || cfg.AI.OpenAIURL != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIURL, cfg.AI.DefaultModel, cfg.AI.MaxTokensOut)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Str("base_url", cfg.AI.OpenAIURL).Msg("AI adapter: OpenAI-compatible")
	case cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxTokensOut)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: Gemini")
	case cfg.Runtime.Dev:
		ai = aiAdapters.NewNoOpAdapter()
		logger.Warn().Msg("AI adapter: noop (dev mode, no provider configured)")
	default:
		logger.Fatal().Msgf("no AI provider configured: set ai.openai_key, ai.openai_url or ai.gemini_key in %s", *cfgPath)
	}
	ai = aiAdapters.NewLimitedAIAdapter(ai, maxConcurrentAICalls)

	// ---- Background worker pool (extraction jobs) ----
	workerPool := worker.NewPool(2, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	// ---- Use cases ----
	extractionUC := usecase.NewExtractionUseCase(attrRepo, episodeRepo, goalRepo, requestRepo, ai, cfg.AI.DefaultModel, workerPool, logger)
	organizeUC := usecase.NewOrganizeUseCase(attrRepo, episodeRepo, goalRepo, requestRepo, ai, cfg.AI.DefaultModel, cfg.Organize.MaxItemsPerStep, logger)
	chatUC := usecase.NewChatUseCase(sessions, attrRepo, episodeRepo, goalRepo, requestRepo, ai, extractionUC,
		cfg.AI.DefaultModel,
		usecase.ChatSettings{
			SessionTimeout:    cfg.Chat.SessionTimeout,
			ResetTriggerWords: cfg.Chat.ResetTriggerWords,
			HistoryTokenLimit: cfg.Chat.HistoryTokenLimit,
			DefaultTestMode:   cfg.Chat.DefaultTestMode,
		},
		logger)

	// ---- Optional periodic organize runs ----
	if cfg.Organize.AutoInterval > 0 {
		scheduler := sched.NewOrganizeScheduler(cfg.Organize.AutoInterval, organizeUC, logger)
		go func() {
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("organize scheduler stopped")
			}
		}()
	}

	// ---- HTTP server ----
	if cfg.Admin.JWTSecret == "" {
		logger.Warn().Msg("admin.jwt_secret not set; using an ephemeral dev secret (sessions won't survive restarts)")
		cfg.Admin.JWTSecret = fmt.Sprintf("dev-%d", time.Now().UnixNano())
	}
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.Password, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	srv := web.NewServer(chatUC, organizeUC, extractionUC, attrRepo, episodeRepo, goalRepo, requestRepo, ai, auth, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
}
