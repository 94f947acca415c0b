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
	"loom-backend/domain/core/valueobjects"
	"loom-backend/pkg/common"
	pkgerrors "loom-backend/pkg/errors"
)

// TreeHandler handles tree-related HTTP requests
type TreeHandler struct {
	createTree  *cmdhandlers.CreateTreeHandler
	archiveTree *cmdhandlers.ArchiveTreeHandler
	getTree     *qryhandlers.GetTreeHandler
	graph       *services.GraphService
	logger      *zap.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(
	createTree *cmdhandlers.CreateTreeHandler,
	archiveTree *cmdhandlers.ArchiveTreeHandler,
	getTree *qryhandlers.GetTreeHandler,
	graph *services.GraphService,
	logger *zap.Logger,
) *TreeHandler {
	return &TreeHandler{
		createTree:  createTree,
		archiveTree: archiveTree,
		getTree:     getTree,
		graph:       graph,
		logger:      logger,
	}
}

// CreateTreeRequest is the request body for creating a tree
type CreateTreeRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	SystemContext  string `json:"system_context,omitempty"`
	Mode           string `json:"mode"`
	AgentID        string `json:"agent_id"`
	InitialContent string `json:"initial_content"`
}

// CreateTreeResponse is the response for creating a tree
type CreateTreeResponse struct {
	TreeID     string `json:"tree_id"`
	RootNodeID string `json:"root_node_id"`
	PathID     string `json:"path_id"`
}

// CreateTree handles POST /trees
func (h *TreeHandler) CreateTree(w http.ResponseWriter, r *http.Request) {
	var req CreateTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "invalid request body: "+err.Error())
		return
	}

	result, err := h.createTree.Handle(r.Context(), commands.CreateTreeCommand{
		Title:          req.Title,
		Description:    req.Description,
		SystemContext:  req.SystemContext,
		Mode:           req.Mode,
		AgentID:        req.AgentID,
		InitialContent: req.InitialContent,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, CreateTreeResponse{
		TreeID:     result.Tree.ID().String(),
		RootNodeID: result.RootNode.ID().String(),
		PathID:     result.Path.ID().String(),
	})
}

// GetTree handles GET /trees/{treeID}
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	view, err := h.getTree.Handle(r.Context(), queries.GetTreeQuery{
		TreeID: chi.URLParam(r, "treeID"),
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// ListTrees handles GET /trees
func (h *TreeHandler) ListTrees(w http.ResponseWriter, r *http.Request) {
	views, err := h.getTree.HandleList(r.Context(), queries.ListTreesQuery{
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, views)
}

// ArchiveTree handles POST /trees/{treeID}/archive
func (h *TreeHandler) ArchiveTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.archiveTree.Handle(r.Context(), commands.ArchiveTreeCommand{
		TreeID: chi.URLParam(r, "treeID"),
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"tree_id":  tree.ID().String(),
		"archived": tree.IsArchived(),
	})
}

// IntegrityResponse reports the outcome of a tree integrity check
type IntegrityResponse struct {
	TreeID string `json:"tree_id"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// CheckIntegrity handles GET /trees/{treeID}/integrity. It verifies the
// single-root invariant and reports a violation in the response body
// rather than as a transport error.
func (h *TreeHandler) CheckIntegrity(w http.ResponseWriter, r *http.Request) {
	treeID, err := valueobjects.NewTreeIDFromString(chi.URLParam(r, "treeID"))
	if err != nil {
		common.RespondAppError(w, pkgerrors.NewValidationError("invalid tree id: "+err.Error()))
		return
	}

	resp := IntegrityResponse{TreeID: treeID.String(), Status: "ok"}
	if err := h.graph.VerifyRootInvariant(r.Context(), treeID); err != nil {
		if pkgerrors.IsNotFound(err) {
			common.RespondAppError(w, err)
			return
		}
		resp.Status = "violated"
		resp.Detail = err.Error()
	}
	common.RespondJSON(w, http.StatusOK, resp)
}
