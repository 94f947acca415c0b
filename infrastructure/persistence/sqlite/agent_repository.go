package sqlite

import (
	"context"
	"database/sql"

	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// AgentRepository is a SQLite-backed ports.AgentRepository
type AgentRepository struct {
	db *sql.DB
}

// NewAgentRepository creates an agent repository over db
func NewAgentRepository(db *sql.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// Save upserts an agent row
func (r *AgentRepository) Save(ctx context.Context, agent *entities.Agent) error {
	cfg := agent.Config()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, kind, model, system_prompt, temperature, top_p, max_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			model = excluded.model,
			system_prompt = excluded.system_prompt,
			temperature = excluded.temperature,
			top_p = excluded.top_p,
			max_tokens = excluded.max_tokens`,
		agent.ID().String(), agent.Name(), string(agent.Kind()),
		cfg.Model, cfg.SystemPrompt, cfg.Temperature, cfg.TopP, cfg.MaxTokens)
	if err != nil {
		return pkgerrors.NewDatabaseError("save agent", err)
	}
	return nil
}

func scanAgent(row interface{ Scan(...interface{}) error }) (*entities.Agent, error) {
	var (
		id, name, kind string
		cfg            entities.GenerationConfig
	)
	err := row.Scan(&id, &name, &kind, &cfg.Model, &cfg.SystemPrompt,
		&cfg.Temperature, &cfg.TopP, &cfg.MaxTokens)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewNotFoundError("agent")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("scan agent", err)
	}
	agentID, err := valueobjects.NewAgentIDFromString(id)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode agent id", err)
	}
	return entities.ReconstructAgent(agentID, name, entities.AgentKind(kind), cfg), nil
}

// GetByID retrieves an agent by its ID
func (r *AgentRepository) GetByID(ctx context.Context, id valueobjects.AgentID) (*entities.Agent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, kind, model, system_prompt, temperature, top_p, max_tokens
		FROM agents WHERE id = ?`, id.String())
	return scanAgent(row)
}

// List retrieves all agents
func (r *AgentRepository) List(ctx context.Context) ([]*entities.Agent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, kind, model, system_prompt, temperature, top_p, max_tokens
		FROM agents ORDER BY id`)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list agents", err)
	}
	defer rows.Close()

	var out []*entities.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list agents", err)
	}
	return out, nil
}
