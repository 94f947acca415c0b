package handlers

import (
	"context"

	"go.uber.org/zap"

	"loom-backend/application/ports"
	"loom-backend/application/queries"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// GetPathViewHandler materializes a path into its resolved node sequence
type GetPathViewHandler struct {
	paths  ports.PathRepository
	states ports.PathStateRepository
	nodes  ports.NodeRepository
	logger *zap.Logger
}

// NewGetPathViewHandler creates a new path view query handler
func NewGetPathViewHandler(
	paths ports.PathRepository,
	states ports.PathStateRepository,
	nodes ports.NodeRepository,
	logger *zap.Logger,
) *GetPathViewHandler {
	return &GetPathViewHandler{paths: paths, states: states, nodes: nodes, logger: logger}
}

// Handle resolves every entry of the path to its node content, in
// position order. A dangling entry is a data integrity failure, not a
// not-found condition, so it surfaces as an internal error.
func (h *GetPathViewHandler) Handle(ctx context.Context, query queries.GetPathViewQuery) (*queries.PathView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	pathID, err := valueobjects.NewPathIDFromString(query.PathID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid path id: " + err.Error())
	}

	path, err := h.paths.GetByID(ctx, pathID)
	if err != nil {
		return nil, err
	}

	view := &queries.PathView{
		ID:      path.ID().String(),
		TreeID:  path.TreeID().String(),
		AgentID: path.AgentID().String(),
		Length:  path.Length(),
		Entries: make([]queries.PathEntryView, 0, path.Length()),
	}

	for _, entry := range path.Entries() {
		node, err := h.nodes.GetByID(ctx, entry.NodeID)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				h.logger.Error("path entry references missing node",
					zap.String("pathId", path.ID().String()),
					zap.Int("position", entry.Position),
					zap.String("nodeId", entry.NodeID.String()))
				return nil, pkgerrors.NewInternalError("path references a missing node").WithCause(err)
			}
			return nil, err
		}
		view.Entries = append(view.Entries, queries.PathEntryView{
			Position: entry.Position,
			Node:     nodeView(node),
		})
	}

	state, err := h.states.Get(ctx, pathID)
	if err == nil && state != nil {
		view.ActiveNodeID = state.ActiveNodeID.String()
	} else if err != nil && !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	return view, nil
}
