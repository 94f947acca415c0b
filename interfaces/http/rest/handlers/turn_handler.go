package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loom-backend/application/commands"
	cmdhandlers "loom-backend/application/commands/handlers"
	"loom-backend/infrastructure/config"
	"loom-backend/pkg/common"
	pkgerrors "loom-backend/pkg/errors"
	"loom-backend/pkg/ratelimit"
)

// TurnHandler handles turn submission. Turns are the expensive operation
// of the API, so they are rate limited per path and bounded by the
// hot-reloadable prompt length limit.
type TurnHandler struct {
	orchestrator *cmdhandlers.TurnOrchestrator
	limiter      ratelimit.Limiter
	limits       func() config.TurnLimits
	logger       *zap.Logger
}

// NewTurnHandler creates a new turn handler. limits is consulted on
// every request so a config reload takes effect immediately.
func NewTurnHandler(
	orchestrator *cmdhandlers.TurnOrchestrator,
	limiter ratelimit.Limiter,
	limits func() config.TurnLimits,
	logger *zap.Logger,
) *TurnHandler {
	return &TurnHandler{
		orchestrator: orchestrator,
		limiter:      limiter,
		limits:       limits,
		logger:       logger,
	}
}

// SendTurnRequest is the request body for submitting a turn
type SendTurnRequest struct {
	HumanAgentID string `json:"human_agent_id"`
	ModelAgentID string `json:"model_agent_id"`
	Prompt       string `json:"prompt"`
	Stream       bool   `json:"stream,omitempty"`
}

// TurnResponse is the response for a completed turn
type TurnResponse struct {
	HumanNodeID      string `json:"human_node_id"`
	ModelNodeID      string `json:"model_node_id"`
	ModelContent     string `json:"model_content"`
	EvidenceID       string `json:"evidence_id"`
	ProvenanceStatus string `json:"provenance_status"`
	CompletionTokens int    `json:"completion_tokens"`
}

// SendTurn handles POST /paths/{pathID}/turns
func (h *TurnHandler) SendTurn(w http.ResponseWriter, r *http.Request) {
	pathID := chi.URLParam(r, "pathID")

	allowed, err := h.limiter.Allow(r.Context(), pathID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	if !allowed {
		common.RespondAppError(w, pkgerrors.NewRateLimitError(0, "per path"))
		return
	}

	var req SendTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "invalid request body: "+err.Error())
		return
	}
	if max := h.limits().MaxPromptLength; len(req.Prompt) > max {
		common.RespondAppError(w, pkgerrors.NewValidationError("prompt exceeds maximum length"))
		return
	}

	result, err := h.orchestrator.Handle(r.Context(), commands.SendTurnCommand{
		PathID:       pathID,
		HumanAgentID: req.HumanAgentID,
		ModelAgentID: req.ModelAgentID,
		Prompt:       req.Prompt,
		Stream:       req.Stream,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, TurnResponse{
		HumanNodeID:      result.HumanNode.ID().String(),
		ModelNodeID:      result.ModelNode.ID().String(),
		ModelContent:     result.ModelNode.Content().Text(),
		EvidenceID:       result.Evidence.ID().String(),
		ProvenanceStatus: string(result.Provenance.Status),
		CompletionTokens: result.Evidence.Usage().CompletionTokens,
	})
}
