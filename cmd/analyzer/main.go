package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"

	logx "github.com/hrdesk/server/pkg/logger"
	pkgpostgres "github.com/hrdesk/server/pkg/postgres"

	"github.com/hrdesk/server/internal/agent/model"
	"github.com/hrdesk/server/internal/agent/repo"
	"github.com/hrdesk/server/internal/analyzer"
	"github.com/hrdesk/server/internal/core"
)

// AppConfig holds everything the daily failure analyzer needs.
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	Postgres pkgpostgres.Config

	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	Judge model.JudgeModelConfig

	BatchSize int `envconfig:"ANALYZER_BATCH_SIZE" default:"20"`
}

func main() {
	agentName := flag.String("agent", "HRAssistant", "agent whose failures to analyze")
	dateStr := flag.String("date", time.Now().UTC().Format("2006-01-02"), "day to analyze (YYYY-MM-DD, UTC)")
	flag.Parse()

	day, err := time.Parse("2006-01-02", *dateStr)
	if err != nil {
		log.Fatalf("Invalid -date %q: %v", *dateStr, err)
	}

	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	pool, err := envCfg.Postgres.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Postgres pool")
	}
	defer pool.Close()

	evalStore, err := repo.NewPostgresEvaluationStore(ctx, pool)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create evaluation store")
	}
	summaryStore, err := repo.NewPostgresSummaryStore(ctx, pool)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create summary store")
	}

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

	summarizer, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      genaiClient,
		Model:       envCfg.Judge.Model,
		Temperature: &envCfg.Judge.Temperature,
		MaxTokens:   &envCfg.Judge.MaxTokens,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create summarizer model")
	}

	runner, err := analyzer.New(evalStore, summaryStore, summarizer, envCfg.BatchSize)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create analyzer")
	}

	record, err := runner.Run(ctx, *agentName, day)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failure analysis run failed")
	}

	logx.Info().
		Str("agent", record.Agent).
		Str("day", day.Format("2006-01-02")).
		Str("summary_id", record.ID).
		Msg("failure analysis stored")
}
