package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loom-backend/application/services"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/pkg/common"
	pkgerrors "loom-backend/pkg/errors"
)

// EdgeHandler handles hyperedge HTTP requests
type EdgeHandler struct {
	graph  *services.GraphService
	logger *zap.Logger
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(graph *services.GraphService, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{graph: graph, logger: logger}
}

func edgeResponse(edge *entities.Edge) map[string]interface{} {
	sources := make([]map[string]string, 0, len(edge.Sources()))
	for _, src := range edge.Sources() {
		sources = append(sources, map[string]string{
			"node_id": src.NodeID.String(),
			"role":    string(src.Role),
		})
	}
	return map[string]interface{}{
		"id":        edge.ID().String(),
		"tree_id":   edge.TreeID().String(),
		"target_id": edge.TargetID().String(),
		"type":      string(edge.Type()),
		"sources":   sources,
	}
}

// SourceRefRequest is one source in an edge request
type SourceRefRequest struct {
	NodeID string `json:"node_id"`
	Role   string `json:"role,omitempty"`
}

// CreateEdgeRequest is the request body for creating an edge
type CreateEdgeRequest struct {
	Sources  []SourceRefRequest `json:"sources"`
	TargetID string             `json:"target_id"`
	Type     string             `json:"type"`
}

// CreateEdge handles POST /edges
func (h *EdgeHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var req CreateEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "invalid request body: "+err.Error())
		return
	}

	targetID, err := valueobjects.NewNodeIDFromString(req.TargetID)
	if err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid target id: "+err.Error()))
		return
	}
	sources := make([]entities.SourceRef, 0, len(req.Sources))
	for _, src := range req.Sources {
		nodeID, err := valueobjects.NewNodeIDFromString(src.NodeID)
		if err != nil {
			common.RespondAppError(w, pkgerrors.NewValidationError("invalid source node id: "+err.Error()))
			return
		}
		role := entities.SourceRole(src.Role)
		if src.Role == "" {
			role = entities.RolePrimary
		}
		sources = append(sources, entities.SourceRef{NodeID: nodeID, Role: role})
	}

	edge, err := h.graph.CreateEdge(r.Context(), sources, targetID, entities.EdgeType(req.Type))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, edgeResponse(edge))
}

// AddSourceRequest is the request body for adding an alternate source
type AddSourceRequest struct {
	NodeID string `json:"node_id"`
	Role   string `json:"role,omitempty"`
}

// AddSource handles POST /edges/{edgeID}/sources
func (h *EdgeHandler) AddSource(w http.ResponseWriter, r *http.Request) {
	edgeID, err := valueobjects.NewEdgeIDFromString(chi.URLParam(r, "edgeID"))
	if err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid edge id: "+err.Error()))
		return
	}
	var req AddSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "invalid request body: "+err.Error())
		return
	}
	nodeID, err := valueobjects.NewNodeIDFromString(req.NodeID)
	if err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid node id: "+err.Error()))
		return
	}
	role := entities.SourceRole(req.Role)
	if req.Role == "" {
		role = entities.RoleAlternate
	}

	edge, err := h.graph.AddVersionSource(r.Context(), edgeID, nodeID, role)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, edgeResponse(edge))
}

// RemoveSource handles DELETE /edges/{edgeID}/sources/{nodeID}. Removing
// the last source deletes the edge.
func (h *EdgeHandler) RemoveSource(w http.ResponseWriter, r *http.Request) {
	edgeID, err := valueobjects.NewEdgeIDFromString(chi.URLParam(r, "edgeID"))
	if err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid edge id: "+err.Error()))
		return
	}
	nodeID, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, "nodeID"))
	if err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid node id: "+err.Error()))
		return
	}

	edge, err := h.graph.RemoveSourceFromEdge(r.Context(), edgeID, nodeID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	if edge == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	common.RespondJSON(w, http.StatusOK, edgeResponse(edge))
}
