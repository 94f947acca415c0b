package memory

import (
	"context"
	"sort"
	"sync"

	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// AgentRepository is an in-memory ports.AgentRepository
type AgentRepository struct {
	mu     sync.RWMutex
	agents map[string]*entities.Agent
}

// NewAgentRepository creates an empty agent store
func NewAgentRepository() *AgentRepository {
	return &AgentRepository{agents: make(map[string]*entities.Agent)}
}

func cloneAgent(a *entities.Agent) *entities.Agent {
	return entities.ReconstructAgent(a.ID(), a.Name(), a.Kind(), a.Config())
}

// Save stores or replaces an agent
func (r *AgentRepository) Save(_ context.Context, agent *entities.Agent) error {
	if agent == nil {
		return pkgerrors.NewValidationError("agent cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.ID().String()] = cloneAgent(agent)
	return nil
}

// GetByID retrieves an agent by its ID
func (r *AgentRepository) GetByID(_ context.Context, id valueobjects.AgentID) (*entities.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("agent")
	}
	return cloneAgent(agent), nil
}

// List retrieves all agents
func (r *AgentRepository) List(_ context.Context) ([]*entities.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entities.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		out = append(out, cloneAgent(agent))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}
