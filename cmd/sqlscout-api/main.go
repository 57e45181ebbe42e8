package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlscout/sqlscout/internal/agent"
	agentpostgres "github.com/sqlscout/sqlscout/internal/agent/postgres"
	"github.com/sqlscout/sqlscout/internal/api"
	"github.com/sqlscout/sqlscout/internal/auth"
	"github.com/sqlscout/sqlscout/internal/config"
	"github.com/sqlscout/sqlscout/internal/dbexec"
	duckdbexec "github.com/sqlscout/sqlscout/internal/dbexec/duckdb"
	pgexec "github.com/sqlscout/sqlscout/internal/dbexec/postgres"
	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/observability"
	"github.com/sqlscout/sqlscout/internal/schema"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlscout-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	var db *sql.DB
	if cfg.Agent.Engine == config.EnginePostgres || cfg.Agent.Checkpoints == config.CheckpointsPostgres {
		db, err = pgexec.Open(ctx, pgexec.DBConfig{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
	}

	var (
		executor dbexec.Executor
		loader   *schema.Loader
	)
	switch cfg.Agent.Engine {
	case config.EnginePostgres:
		executor = pgexec.NewExecutor(db, pgexec.Config{
			RowLimit:         cfg.Agent.RowLimit,
			StatementTimeout: cfg.Agent.ExecTimeout,
		})
		loader = schema.NewLoader(db, cfg.Schema.DatabaseName, cfg.Schema.Schemas)
	case config.EngineDuckDB:
		duckExec, err := duckdbexec.Open(cfg.Agent.DuckDBPath, cfg.Agent.RowLimit)
		if err != nil {
			logger.Error("failed to open duckdb", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = duckExec.Close() }()
		executor = duckExec
		loader = schema.NewDuckDBLoader(duckExec.DB(), cfg.Schema.DatabaseName, cfg.Schema.Schemas)
	default:
		logger.Error("unsupported execution engine", slog.String("engine", cfg.Agent.Engine))
		os.Exit(1)
	}

	dictionary, err := loader.Load(ctx)
	if err != nil {
		logger.Error("failed to load schema dictionary", slog.Any("error", err))
		os.Exit(1)
	}

	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize ai client", slog.Any("error", err))
		os.Exit(1)
	}

	var store agent.CheckpointStore
	switch cfg.Agent.Checkpoints {
	case config.CheckpointsPostgres:
		store = agentpostgres.NewStore(db)
	default:
		store = agent.NewMemoryStore()
	}

	engine := agent.NewEngine(agent.EngineConfig{
		RequireValidSyntax: cfg.Agent.RequireValidSyntax,
	}, agent.Dependencies{
		Generator: client,
		Renderer:  client,
		Executor:  executor,
		Schema:    dictionary,
		Store:     store,
		Logger:    logger,
	})
	orchestrator := agent.NewOrchestrator(engine, store, logger)

	deps := api.Dependencies{
		Logger:   logger,
		Sessions: orchestrator,
		Schema:   dictionary,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabaseDSN(cfg),
			api.CheckAIConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-runCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
