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
	"loom-backend/domain/core/entities"
	"loom-backend/pkg/common"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	editNode   *cmdhandlers.EditNodeHandler
	updateMeta *cmdhandlers.UpdateMetadataHandler
	getNode    *qryhandlers.GetNodeHandler
	provenance *qryhandlers.VerifyProvenanceHandler
	logger     *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(
	editNode *cmdhandlers.EditNodeHandler,
	updateMeta *cmdhandlers.UpdateMetadataHandler,
	getNode *qryhandlers.GetNodeHandler,
	provenance *qryhandlers.VerifyProvenanceHandler,
	logger *zap.Logger,
) *NodeHandler {
	return &NodeHandler{
		editNode:   editNode,
		updateMeta: updateMeta,
		getNode:    getNode,
		provenance: provenance,
		logger:     logger,
	}
}

func nodeResponse(node *entities.Node) map[string]interface{} {
	resp := map[string]interface{}{
		"id":           node.ID().String(),
		"tree_id":      node.TreeID().String(),
		"local_id":     node.LocalID(),
		"content":      node.Content().Text(),
		"author_type":  string(node.AuthorType()),
		"content_hash": node.ContentHash().String(),
		"created_at":   node.CreatedAt(),
	}
	if from := node.EditedFrom(); from != nil {
		resp["edited_from"] = from.String()
	}
	return resp
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	view, err := h.getNode.Handle(r.Context(), queries.GetNodeQuery{
		NodeID: chi.URLParam(r, "nodeID"),
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// GetNodeByLocalID handles GET /trees/{treeID}/nodes/{localID}
func (h *NodeHandler) GetNodeByLocalID(w http.ResponseWriter, r *http.Request) {
	view, err := h.getNode.Handle(r.Context(), queries.GetNodeQuery{
		TreeID:  chi.URLParam(r, "treeID"),
		LocalID: chi.URLParam(r, "localID"),
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// ListChildren handles GET /nodes/{nodeID}/children
func (h *NodeHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	views, err := h.getNode.HandleChildren(r.Context(), queries.ListChildrenQuery{
		NodeID: chi.URLParam(r, "nodeID"),
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, views)
}

// EditNodeRequest is the request body for editing a node
type EditNodeRequest struct {
	EditorAgentID string `json:"editor_agent_id"`
	NewContent    string `json:"new_content"`
}

// EditNode handles POST /nodes/{nodeID}/edit. Editing never mutates the
// original node; the response carries the freshly created version.
func (h *NodeHandler) EditNode(w http.ResponseWriter, r *http.Request) {
	var req EditNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "invalid request body: "+err.Error())
		return
	}

	version, err := h.editNode.Handle(r.Context(), commands.EditNodeCommand{
		NodeID:        chi.URLParam(r, "nodeID"),
		EditorAgentID: req.EditorAgentID,
		NewContent:    req.NewContent,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, nodeResponse(version))
}

// UpdateMetadataRequest is the request body for metadata updates; absent
// fields are left untouched
type UpdateMetadataRequest struct {
	Bookmarked    *bool   `json:"bookmarked,omitempty"`
	BookmarkLabel *string `json:"bookmark_label,omitempty"`
	Pruned        *bool   `json:"pruned,omitempty"`
	Excluded      *bool   `json:"excluded,omitempty"`
	Summary       *string `json:"summary,omitempty"`
}

// UpdateMetadata handles PATCH /nodes/{nodeID}/metadata
func (h *NodeHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req UpdateMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION", "invalid request body: "+err.Error())
		return
	}

	node, err := h.updateMeta.Handle(r.Context(), commands.UpdateNodeMetadataCommand{
		NodeID:        chi.URLParam(r, "nodeID"),
		Bookmarked:    req.Bookmarked,
		BookmarkLabel: req.BookmarkLabel,
		Pruned:        req.Pruned,
		Excluded:      req.Excluded,
		Summary:       req.Summary,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, nodeResponse(node))
}

// VerifyProvenance handles GET /nodes/{nodeID}/provenance
func (h *NodeHandler) VerifyProvenance(w http.ResponseWriter, r *http.Request) {
	report, err := h.provenance.Handle(r.Context(), queries.VerifyProvenanceQuery{
		NodeID: chi.URLParam(r, "nodeID"),
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, report)
}
