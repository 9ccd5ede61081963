// Package app wires the application together: configuration, database,
// Genkit, knowledge base, agent, and HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorebase/lore/db"
	"github.com/lorebase/lore/internal/agent"
	"github.com/lorebase/lore/internal/api"
	"github.com/lorebase/lore/internal/config"
	"github.com/lorebase/lore/internal/database"
	"github.com/lorebase/lore/internal/embed"
	"github.com/lorebase/lore/internal/knowledge"
)

// App is the application container. Build it with Setup; release its
// resources with Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool      *pgxpool.Pool
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	Knowledge *knowledge.Service
	Agent     *agent.Agent
	Server    *api.Server
}

// Setup migrates the database and constructs every component in
// dependency order.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	a.Genkit = g

	a.Embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	embedClient, err := embed.NewGenkitClient(a.Embedder, cfg.EmbedderDimensions, logger)
	if err != nil {
		return nil, err
	}

	store := knowledge.NewStore(pool, logger)
	a.Knowledge = knowledge.NewService(store, embedClient, cfg.RetrievalThreshold, cfg.RetrievalLimit, logger)

	model, err := agent.NewGenkitModel(g, cfg.ModelName, logger)
	if err != nil {
		return nil, err
	}

	a.Agent, err = agent.New(agent.Config{
		Model:       model,
		Knowledge:   a.Knowledge,
		Logger:      logger,
		MaxSteps:    cfg.MaxSteps,
		TurnTimeout: time.Duration(cfg.TurnTimeoutSeconds) * time.Second,
		AutoIngest:  cfg.AutoIngest,
	})
	if err != nil {
		return nil, err
	}

	a.Server, err = api.NewServer(api.ServerConfig{
		Logger:    logger,
		Agent:     a.Agent,
		Knowledge: a.Knowledge,
		Pool:      pool,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("application initialized",
		"model", cfg.ModelName,
		"embedder", cfg.EmbedderModel,
		"auto_ingest", cfg.AutoIngest,
	)
	return a, nil
}

// Close releases held resources. Safe to call on a partially built App.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
		a.Pool = nil
	}
}
