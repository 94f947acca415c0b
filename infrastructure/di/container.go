// Package di hand-wires the application graph. The dependency order is
// explicit here so a missing edge is a compile error, not a runtime
// surprise.
package di

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	cmdhandlers "loom-backend/application/commands/handlers"
	"loom-backend/application/ports"
	qryhandlers "loom-backend/application/queries/handlers"
	"loom-backend/application/services"
	"loom-backend/infrastructure/config"
	"loom-backend/interfaces/http/rest"
	resthandlers "loom-backend/interfaces/http/rest/handlers"
	"loom-backend/pkg/ratelimit"
)

// Container holds the fully wired application
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Repos   *Repositories
	Bus     ports.EventBus
	Watcher *config.ConfigWatcher

	GraphService      *services.GraphService
	PathService       *services.PathService
	ProvenanceService *services.ProvenanceService

	TurnOrchestrator *cmdhandlers.TurnOrchestrator

	Router *rest.Router

	db *sql.DB
}

// NewContainer builds the application from configuration
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	repos, db, err := ProvideRepositories(cfg)
	if err != nil {
		return nil, fmt.Errorf("create repositories: %w", err)
	}

	bus := ProvideEventBus(logger)

	provider := ProvideModelProvider(cfg, logger)
	err = provider.Initialize(ctx, ports.Credentials{APIKey: cfg.OpenAIAPIKey}, ports.ProviderOptions{
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.ProviderTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize provider: %w", err)
	}

	graphSvc := services.NewGraphService(repos.Nodes, repos.Edges, repos.Trees, logger)
	pathSvc := services.NewPathService(repos.Paths, repos.States, repos.Nodes, logger)
	provenanceSvc := services.NewProvenanceService(repos.Nodes, repos.Edges, repos.Evidence, logger)

	createTree := cmdhandlers.NewCreateTreeHandler(graphSvc,
		repos.Trees, repos.Nodes, repos.Paths, repos.States, repos.Agents, bus, logger)
	archiveTree := cmdhandlers.NewArchiveTreeHandler(repos.Trees, bus, logger)
	editNode := cmdhandlers.NewEditNodeHandler(graphSvc, repos.Nodes, repos.Agents, bus, logger)
	updateMeta := cmdhandlers.NewUpdateMetadataHandler(graphSvc, repos.Nodes, repos.Paths, bus, logger)
	switchBranch := cmdhandlers.NewSwitchBranchHandler(pathSvc, repos.Trees, bus, logger)
	orchestrator := cmdhandlers.NewTurnOrchestrator(graphSvc, pathSvc, provenanceSvc,
		repos.Trees, repos.Nodes, repos.Edges, repos.Agents, repos.Evidence,
		provider, bus, logger)

	getTree := qryhandlers.NewGetTreeHandler(repos.Trees, repos.Nodes, repos.Edges, logger)
	getNode := qryhandlers.NewGetNodeHandler(repos.Nodes, graphSvc, logger)
	getPathView := qryhandlers.NewGetPathViewHandler(repos.Paths, repos.States, repos.Nodes, logger)
	verifyProvenance := qryhandlers.NewVerifyProvenanceHandler(provenanceSvc, logger)

	var watcher *config.ConfigWatcher
	limits := func() config.TurnLimits { return config.DefaultDynamicConfig().Limits }
	if cfg.DynamicConfigPath != "" {
		watcher, err = config.NewConfigWatcher(cfg.DynamicConfigPath, logger)
		if err != nil {
			return nil, fmt.Errorf("create config watcher: %w", err)
		}
		limits = func() config.TurnLimits { return watcher.Current().Limits }
	}
	orchestrator.WithContextLimit(func() int { return limits().MaxContextMessages })

	refill := cfg.TurnRateWindow / time.Duration(cfg.TurnRateLimit)
	turnLimiter := ratelimit.NewTokenBucketLimiter(cfg.TurnRateLimit, refill)

	router := rest.NewRouter(rest.Handlers{
		Trees:  resthandlers.NewTreeHandler(createTree, archiveTree, getTree, graphSvc, logger),
		Nodes:  resthandlers.NewNodeHandler(editNode, updateMeta, getNode, verifyProvenance, logger),
		Paths:  resthandlers.NewPathHandler(pathSvc, graphSvc, switchBranch, getPathView, logger),
		Turns:  resthandlers.NewTurnHandler(orchestrator, turnLimiter, limits, logger),
		Edges:  resthandlers.NewEdgeHandler(graphSvc, logger),
		Agents: resthandlers.NewAgentHandler(repos.Agents, logger),
	}, cfg.EnableCORS, logger)

	return &Container{
		Config:            cfg,
		Logger:            logger,
		Repos:             repos,
		Bus:               bus,
		Watcher:           watcher,
		GraphService:      graphSvc,
		PathService:       pathSvc,
		ProvenanceService: provenanceSvc,
		TurnOrchestrator:  orchestrator,
		Router:            router,
		db:                db,
	}, nil
}

// Start begins background work (the config watcher, when configured)
func (c *Container) Start() {
	if c.Watcher != nil {
		c.Watcher.Start()
	}
}

// Close releases held resources
func (c *Container) Close() error {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
