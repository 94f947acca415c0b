package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loom-backend/application/commands"
	cmdhandlers "loom-backend/application/commands/handlers"
	"loom-backend/application/queries"
	qryhandlers "loom-backend/application/queries/handlers"
	"loom-backend/application/services"
	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/pkg/common"
	pkgerrors "loom-backend/pkg/errors"
)

// PathHandler handles path-related HTTP requests
type PathHandler struct {
	paths        *services.PathService
	graph        *services.GraphService
	switchBranch *cmdhandlers.SwitchBranchHandler
	getPathView  *qryhandlers.GetPathViewHandler
	logger       *zap.Logger
}

// NewPathHandler creates a new path handler
func NewPathHandler(
	paths *services.PathService,
	graph *services.GraphService,
	switchBranch *cmdhandlers.SwitchBranchHandler,
	getPathView *qryhandlers.GetPathViewHandler,
	logger *zap.Logger,
) *PathHandler {
	return &PathHandler{
		paths:        paths,
		graph:        graph,
		switchBranch: switchBranch,
		getPathView:  getPathView,
		logger:       logger,
	}
}

func pathIDFromRequest(r *http.Request) (valueobjects.PathID, error) {
	id, err := valueobjects.NewPathIDFromString(chi.URLParam(r, "pathID"))
	if err != nil {
		return valueobjects.PathID{}, pkgerrors.NewValidationError("invalid path id: " + err.Error())
	}
	return id, nil
}

// GetPath handles GET /paths/{pathID}
func (h *PathHandler) GetPath(w http.ResponseWriter, r *http.Request) {
	view, err := h.getPathView.Handle(r.Context(), queries.GetPathViewQuery{
		PathID: chi.URLParam(r, "pathID"),
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// TruncateRequest is the request body for truncating a path
type TruncateRequest struct {
	NewLength int `json:"new_length"`
}

// Truncate handles POST /paths/{pathID}/truncate
func (h *PathHandler) Truncate(w http.ResponseWriter, r *http.Request) {
	pathID, err := pathIDFromRequest(r)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	var req TruncateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "invalid request body: "+err.Error())
		return
	}
	if err := h.paths.Truncate(r.Context(), pathID, req.NewLength); err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]int{"length": req.NewLength})
}

// SwitchBranchRequest is the request body for an atomic suffix swap
type SwitchBranchRequest struct {
	StartPosition int      `json:"start_position"`
	NodeIDs       []string `json:"node_ids"`
}

// SwitchBranch handles POST /paths/{pathID}/switch
func (h *PathHandler) SwitchBranch(w http.ResponseWriter, r *http.Request) {
	var req SwitchBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "invalid request body: "+err.Error())
		return
	}

	err := h.switchBranch.Handle(r.Context(), commands.SwitchBranchCommand{
		PathID:        chi.URLParam(r, "pathID"),
		StartPosition: req.StartPosition,
		NodeIDs:       req.NodeIDs,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"path_id":        chi.URLParam(r, "pathID"),
		"start_position": req.StartPosition,
		"replaced":       len(req.NodeIDs),
	})
}

// SelectionRequest is the request body for recording a selection
type SelectionRequest struct {
	TargetNodeID         string  `json:"target_node_id"`
	SelectedEdgeID       *string `json:"selected_edge_id,omitempty"`
	SelectedSourceNodeID *string `json:"selected_source_node_id,omitempty"`
}

// UpsertSelection handles PUT /paths/{pathID}/selections
func (h *PathHandler) UpsertSelection(w http.ResponseWriter, r *http.Request) {
	pathID, err := pathIDFromRequest(r)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "invalid request body: "+err.Error())
		return
	}

	sel := aggregates.PathSelection{}
	sel.TargetNodeID, err = valueobjects.NewNodeIDFromString(req.TargetNodeID)
	if err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid target node id: "+err.Error()))
		return
	}
	if req.SelectedEdgeID != nil {
		edgeID, err := valueobjects.NewEdgeIDFromString(*req.SelectedEdgeID)
		if err != nil {
			common.RespondAppError(w, pkgerrors.NewValidationError("invalid edge id: "+err.Error()))
			return
		}
		sel.SelectedEdgeID = &edgeID
	}
	if req.SelectedSourceNodeID != nil {
		sourceID, err := valueobjects.NewNodeIDFromString(*req.SelectedSourceNodeID)
		if err != nil {
			common.RespondAppError(w, pkgerrors.NewValidationError("invalid source node id: "+err.Error()))
			return
		}
		sel.SelectedSourceNodeID = &sourceID
	}

	if err := h.paths.UpsertSelection(r.Context(), pathID, sel); err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, sel)
}

// DeleteSelection handles DELETE /paths/{pathID}/selections/{targetNodeID}
func (h *PathHandler) DeleteSelection(w http.ResponseWriter, r *http.Request) {
	pathID, err := pathIDFromRequest(r)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	targetID, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, "targetNodeID"))
	if err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid target node id: "+err.Error()))
		return
	}
	if err := h.paths.DeleteSelection(r.Context(), pathID, targetID); err != nil {
		common.RespondAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetActiveNodeRequest is the request body for moving the cursor
type SetActiveNodeRequest struct {
	NodeID string `json:"node_id"`
	Mode   string `json:"mode,omitempty"`
}

// SetActiveNode handles PUT /paths/{pathID}/active-node
func (h *PathHandler) SetActiveNode(w http.ResponseWriter, r *http.Request) {
	pathID, err := pathIDFromRequest(r)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	var req SetActiveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "invalid request body: "+err.Error())
		return
	}
	nodeID, err := valueobjects.NewNodeIDFromString(req.NodeID)
	if err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid node id: "+err.Error()))
		return
	}
	if err := h.paths.SetActiveNode(r.Context(), pathID, nodeID, aggregates.TreeMode(req.Mode)); err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"active_node_id": req.NodeID})
}

// AncestryResponse lists the route from the root down to the requested node
type AncestryResponse struct {
	NodeIDs []string `json:"node_ids"`
}

// GetAncestry handles GET /paths/{pathID}/ancestry/{nodeID}. The route is
// resolved against the path's selection table, so overridden edges and
// sources are honored.
func (h *PathHandler) GetAncestry(w http.ResponseWriter, r *http.Request) {
	pathID, err := pathIDFromRequest(r)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	nodeID, err := valueobjects.NewNodeIDFromString(chi.URLParam(r, "nodeID"))
	if err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid node id: "+err.Error()))
		return
	}

	path, err := h.paths.GetPath(r.Context(), pathID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	route, err := h.graph.AncestorPath(r.Context(), nodeID, path.SelectionTable())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	resp := AncestryResponse{NodeIDs: make([]string, 0, len(route))}
	for _, id := range route {
		resp.NodeIDs = append(resp.NodeIDs, id.String())
	}
	common.RespondJSON(w, http.StatusOK, resp)
}

// GetState handles GET /paths/{pathID}/state
func (h *PathHandler) GetState(w http.ResponseWriter, r *http.Request) {
	pathID, err := pathIDFromRequest(r)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	state, err := h.paths.GetState(r.Context(), pathID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, state)
}
