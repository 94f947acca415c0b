package handlers

import (
	"context"

	"go.uber.org/zap"

	"loom-backend/application/ports"
	"loom-backend/application/queries"
	"loom-backend/application/services"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// GetNodeHandler serves node read queries
type GetNodeHandler struct {
	nodes  ports.NodeRepository
	graph  *services.GraphService
	logger *zap.Logger
}

// NewGetNodeHandler creates a new node query handler
func NewGetNodeHandler(nodes ports.NodeRepository, graph *services.GraphService, logger *zap.Logger) *GetNodeHandler {
	return &GetNodeHandler{nodes: nodes, graph: graph, logger: logger}
}

// Handle fetches one node, by global ID or by tree-scoped local ID
func (h *GetNodeHandler) Handle(ctx context.Context, query queries.GetNodeQuery) (*queries.NodeView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var node *entities.Node
	var err error
	if query.NodeID != "" {
		var nodeID valueobjects.NodeID
		nodeID, err = valueobjects.NewNodeIDFromString(query.NodeID)
		if err != nil {
			return nil, pkgerrors.NewValidationError("invalid node id: " + err.Error())
		}
		node, err = h.nodes.GetByID(ctx, nodeID)
	} else {
		var treeID valueobjects.TreeID
		treeID, err = valueobjects.NewTreeIDFromString(query.TreeID)
		if err != nil {
			return nil, pkgerrors.NewValidationError("invalid tree id: " + err.Error())
		}
		node, err = h.nodes.GetByLocalID(ctx, treeID, query.LocalID)
	}
	if err != nil {
		return nil, err
	}

	view := nodeView(node)
	return &view, nil
}

// HandleChildren lists the continuation children of a node
func (h *GetNodeHandler) HandleChildren(ctx context.Context, query queries.ListChildrenQuery) ([]queries.NodeView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	nodeID, err := valueobjects.NewNodeIDFromString(query.NodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid node id: " + err.Error())
	}

	children, err := h.graph.FindChildren(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	views := make([]queries.NodeView, 0, len(children))
	for _, child := range children {
		views = append(views, nodeView(child))
	}
	return views, nil
}
