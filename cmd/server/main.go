package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/genai"

	logx "github.com/hrdesk/server/pkg/logger"
	pkgpostgres "github.com/hrdesk/server/pkg/postgres"
	pkgredis "github.com/hrdesk/server/pkg/redis"

	"github.com/hrdesk/server/internal/agent/cache"
	"github.com/hrdesk/server/internal/agent/embed"
	"github.com/hrdesk/server/internal/agent/graph"
	"github.com/hrdesk/server/internal/agent/model"
	"github.com/hrdesk/server/internal/agent/repo"
	"github.com/hrdesk/server/internal/core"
	"github.com/hrdesk/server/internal/httpapi"
	"github.com/hrdesk/server/internal/observability"
	"github.com/hrdesk/server/internal/retrieval"
)

// AppConfig defines all configurable parameters for the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	BindAddr        string `envconfig:"BIND_ADDR" default:":8080"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" default:"10"`

	// Infrastructure
	Redis    pkgredis.Config
	Postgres pkgpostgres.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Response     model.ResponseModelConfig
	Judge        model.JudgeModelConfig
	Embedding    model.EmbeddingConfig
	Cache        model.CacheConfig
	Prompt       model.ResponsePromptConfig
	Conversation model.ConversationConfig
	Retrieval    model.RetrievalConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()

	pool, err := envCfg.Postgres.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Postgres pool")
	}
	defer pool.Close()

	clientCfg := &genai.ClientConfig{
		APIKey:  envCfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if envCfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = envCfg.BaseURL
	}
	genaiClient, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	embedder, err := embed.NewGeminiEmbedder(genaiClient, envCfg.Embedding)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create embedder")
	}

	vectorStore, err := repo.NewRedisVectorStore(rdb, embedder, envCfg.Cache, envCfg.Embedding)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create vector store")
	}
	if err := vectorStore.EnsureIndex(ctx); err != nil {
		logx.Fatal().Err(err).Msg("Failed to ensure cache index")
	}

	semCache, err := cache.NewSemanticCache(vectorStore, envCfg.Cache)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create semantic cache")
	}

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", envCfg.Conversation.TTL).Msg("Invalid CONVERSATION_TTL")
	}
	historyRepo := repo.NewRedisHistoryRepository(rdb, ttl)

	evalStore, err := repo.NewPostgresEvaluationStore(ctx, pool)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create evaluation store")
	}
	feedbackStore, err := repo.NewPostgresFeedbackStore(ctx, pool)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create feedback store")
	}

	metrics := observability.New(prometheus.DefaultRegisterer)

	agent := graph.NewHRAgent(graph.Config{
		AgentName:      envCfg.Prompt.AgentName,
		GenaiClient:    genaiClient,
		ResponseModel:  envCfg.Response,
		JudgeModel:     envCfg.Judge,
		ResponsePrompt: envCfg.Prompt,
		Conversation:   envCfg.Conversation,
		HistoryRepo:    historyRepo,
		Cache:          semCache,
		EvalStore:      evalStore,
		Searcher:       retrieval.NewClient(envCfg.Retrieval),
		Metrics:        metrics,
	})
	if err := agent.Initialize(ctx); err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise agent")
	}

	api := httpapi.New(agent, feedbackStore, metrics)
	httpServer := &http.Server{
		Addr:    envCfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logx.Info().Str("addr", envCfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logx.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(envCfg.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	logx.Info().Msg("shutdown complete")
}
