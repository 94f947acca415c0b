package handlers

import (
	"context"

	"go.uber.org/zap"

	"loom-backend/application/ports"
	"loom-backend/application/queries"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// GetTreeHandler serves tree read queries
type GetTreeHandler struct {
	trees  ports.TreeRepository
	nodes  ports.NodeRepository
	edges  ports.EdgeRepository
	logger *zap.Logger
}

// NewGetTreeHandler creates a new tree query handler
func NewGetTreeHandler(
	trees ports.TreeRepository,
	nodes ports.NodeRepository,
	edges ports.EdgeRepository,
	logger *zap.Logger,
) *GetTreeHandler {
	return &GetTreeHandler{trees: trees, nodes: nodes, edges: edges, logger: logger}
}

// Handle fetches one tree with its node and edge counts
func (h *GetTreeHandler) Handle(ctx context.Context, query queries.GetTreeQuery) (*queries.TreeView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	treeID, err := valueobjects.NewTreeIDFromString(query.TreeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid tree id: " + err.Error())
	}

	tree, err := h.trees.GetByID(ctx, treeID)
	if err != nil {
		return nil, err
	}

	nodes, err := h.nodes.GetByTreeID(ctx, treeID)
	if err != nil {
		return nil, err
	}
	edges, err := h.edges.GetByTreeID(ctx, treeID)
	if err != nil {
		return nil, err
	}

	view := treeView(tree, len(nodes), len(edges))
	return &view, nil
}

// HandleList lists trees, filtering archived ones unless asked for
func (h *GetTreeHandler) HandleList(ctx context.Context, query queries.ListTreesQuery) ([]queries.TreeView, error) {
	trees, err := h.trees.List(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]queries.TreeView, 0, len(trees))
	for _, tree := range trees {
		if tree.IsArchived() && !query.IncludeArchived {
			continue
		}
		nodes, err := h.nodes.GetByTreeID(ctx, tree.ID())
		if err != nil {
			h.logger.Warn("failed to count nodes for tree listing",
				zap.String("treeId", tree.ID().String()),
				zap.Error(err))
		}
		edges, err := h.edges.GetByTreeID(ctx, tree.ID())
		if err != nil {
			h.logger.Warn("failed to count edges for tree listing",
				zap.String("treeId", tree.ID().String()),
				zap.Error(err))
		}
		views = append(views, treeView(tree, len(nodes), len(edges)))
	}
	return views, nil
}
