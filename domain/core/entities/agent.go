package entities

import (
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// AgentKind distinguishes human identities from model configurations
type AgentKind string

const (
	AgentKindHuman AgentKind = "human"
	AgentKindModel AgentKind = "model"
)

// GenerationConfig carries the inference settings used when the agent is
// the model side of a turn
type GenerationConfig struct {
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float32 `json:"temperature"`
	TopP         float32 `json:"top_p"`
	MaxTokens    int     `json:"max_tokens"`
}

// Agent is an author identity, human or model
type Agent struct {
	id     valueobjects.AgentID
	name   string
	kind   AgentKind
	config GenerationConfig
}

// NewAgent creates an agent with validation
func NewAgent(name string, kind AgentKind, cfg GenerationConfig) (*Agent, error) {
	if name == "" {
		return nil, pkgerrors.NewValidationError("agent name cannot be empty")
	}
	if kind != AgentKindHuman && kind != AgentKindModel {
		return nil, pkgerrors.NewValidationError("unknown agent kind")
	}
	if kind == AgentKindModel && cfg.Model == "" {
		return nil, pkgerrors.NewValidationError("model agent requires a model name")
	}
	return &Agent{
		id:     valueobjects.NewAgentID(),
		name:   name,
		kind:   kind,
		config: cfg,
	}, nil
}

// ReconstructAgent rebuilds an agent from repository data
func ReconstructAgent(id valueobjects.AgentID, name string, kind AgentKind, cfg GenerationConfig) *Agent {
	return &Agent{id: id, name: name, kind: kind, config: cfg}
}

// ID returns the agent identifier
func (a *Agent) ID() valueobjects.AgentID { return a.id }

// Name returns the display name
func (a *Agent) Name() string { return a.name }

// Kind returns whether the agent is human or model
func (a *Agent) Kind() AgentKind { return a.kind }

// Config returns the generation configuration
func (a *Agent) Config() GenerationConfig { return a.config }

// UpdateConfig replaces the generation configuration
func (a *Agent) UpdateConfig(cfg GenerationConfig) error {
	if a.kind == AgentKindModel && cfg.Model == "" {
		return pkgerrors.NewValidationError("model agent requires a model name")
	}
	a.config = cfg
	return nil
}
