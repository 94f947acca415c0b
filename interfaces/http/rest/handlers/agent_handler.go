package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loom-backend/application/ports"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/pkg/common"
	pkgerrors "loom-backend/pkg/errors"
)

// AgentHandler handles agent registration and lookup
type AgentHandler struct {
	agents ports.AgentRepository
	logger *zap.Logger
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(agents ports.AgentRepository, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{agents: agents, logger: logger}
}

func agentResponse(agent *entities.Agent) map[string]interface{} {
	resp := map[string]interface{}{
		"id":   agent.ID().String(),
		"name": agent.Name(),
		"kind": string(agent.Kind()),
	}
	if agent.Kind() == entities.AgentKindModel {
		resp["config"] = agent.Config()
	}
	return resp
}

// CreateAgentRequest is the request body for registering an agent
type CreateAgentRequest struct {
	Name   string                    `json:"name"`
	Kind   string                    `json:"kind"`
	Config entities.GenerationConfig `json:"config,omitempty"`
}

// CreateAgent handles POST /agents
func (h *AgentHandler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "invalid request body: "+err.Error())
		return
	}

	agent, err := entities.NewAgent(req.Name, entities.AgentKind(req.Kind), req.Config)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	if err := h.agents.Save(r.Context(), agent); err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, agentResponse(agent))
}

// GetAgent handles GET /agents/{agentID}
func (h *AgentHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID, err := valueobjects.NewAgentIDFromString(chi.URLParam(r, "agentID"))
	if err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid agent id: "+err.Error()))
		return
	}
	agent, err := h.agents.GetByID(r.Context(), agentID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, agentResponse(agent))
}

// ListAgents handles GET /agents
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.List(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(agents))
	for _, agent := range agents {
		out = append(out, agentResponse(agent))
	}
	common.RespondJSON(w, http.StatusOK, out)
}
