package di

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"loom-backend/application/ports"
	"loom-backend/infrastructure/config"
	"loom-backend/infrastructure/persistence/memory"
	"loom-backend/infrastructure/persistence/sqlite"
	"loom-backend/infrastructure/provider/openai"
	"loom-backend/infrastructure/provider/stub"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}

// Repositories bundles every persistence port
type Repositories struct {
	Nodes    ports.NodeRepository
	Edges    ports.EdgeRepository
	Trees    ports.TreeRepository
	Paths    ports.PathRepository
	States   ports.PathStateRepository
	Agents   ports.AgentRepository
	Evidence ports.EvidenceRepository
}

// ProvideRepositories wires the configured storage driver. The returned
// *sql.DB is nil for the memory driver.
func ProvideRepositories(cfg *config.Config) (*Repositories, *sql.DB, error) {
	switch cfg.StorageDriver {
	case "memory":
		return &Repositories{
			Nodes:    memory.NewNodeRepository(),
			Edges:    memory.NewEdgeRepository(),
			Trees:    memory.NewTreeRepository(),
			Paths:    memory.NewPathRepository(),
			States:   memory.NewPathStateRepository(),
			Agents:   memory.NewAgentRepository(),
			Evidence: memory.NewEvidenceRepository(),
		}, nil, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return &Repositories{
			Nodes:    sqlite.NewNodeRepository(db),
			Edges:    sqlite.NewEdgeRepository(db),
			Trees:    sqlite.NewTreeRepository(db),
			Paths:    sqlite.NewPathRepository(db),
			States:   sqlite.NewPathStateRepository(db),
			Agents:   sqlite.NewAgentRepository(db),
			Evidence: sqlite.NewEvidenceRepository(db),
		}, db, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// ProvideEventBus creates the in-process event bus
func ProvideEventBus(logger *zap.Logger) ports.EventBus {
	return memory.NewEventBus(logger)
}

// ProvideModelProvider wires the configured inference backend
func ProvideModelProvider(cfg *config.Config, logger *zap.Logger) ports.ModelProvider {
	if cfg.Provider == "stub" {
		return stub.NewProvider()
	}
	return openai.NewProvider(logger)
}
