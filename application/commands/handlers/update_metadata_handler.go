package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/ports"
	"loom-backend/application/services"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
	pkgerrors "loom-backend/pkg/errors"
)

// UpdateMetadataHandler mutates a node's metadata. Pruning a node also
// clears any path selections targeting it, since a pruned branch no
// longer needs disambiguation.
type UpdateMetadataHandler struct {
	graph     *services.GraphService
	nodes     ports.NodeRepository
	pathRepo  ports.PathRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewUpdateMetadataHandler creates the handler
func NewUpdateMetadataHandler(
	graph *services.GraphService,
	nodes ports.NodeRepository,
	pathRepo ports.PathRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *UpdateMetadataHandler {
	return &UpdateMetadataHandler{
		graph:     graph,
		nodes:     nodes,
		pathRepo:  pathRepo,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle applies the metadata changes
func (h *UpdateMetadataHandler) Handle(ctx context.Context, cmd commands.UpdateNodeMetadataCommand) (*entities.Node, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	nodeID, err := valueobjects.NewNodeIDFromString(cmd.NodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	node, err := h.graph.UpdateNodeMetadata(ctx, nodeID, services.NodeMetadataChanges{
		Bookmarked:    cmd.Bookmarked,
		BookmarkLabel: cmd.BookmarkLabel,
		Pruned:        cmd.Pruned,
		Excluded:      cmd.Excluded,
		Summary:       cmd.Summary,
	})
	if err != nil {
		return nil, err
	}

	if cmd.Pruned != nil && *cmd.Pruned {
		if err := h.clearSelectionsFor(ctx, node); err != nil {
			h.logger.Warn("failed to clear selections for pruned node",
				zap.String("node_id", nodeID.String()),
				zap.Error(err),
			)
		}
	}

	event := events.NewNodeMetadataUpdated(nodeID.String(), time.Now().UTC())
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Error("failed to publish metadata event", zap.Error(err))
	}

	return node, nil
}

func (h *UpdateMetadataHandler) clearSelectionsFor(ctx context.Context, node *entities.Node) error {
	paths, err := h.pathRepo.GetByTreeID(ctx, node.TreeID())
	if err != nil {
		return err
	}
	for _, path := range paths {
		if _, ok := path.SelectionFor(node.ID()); !ok {
			continue
		}
		if err := h.pathRepo.DeleteSelection(ctx, path.ID(), node.ID()); err != nil && !pkgerrors.IsNotFound(err) {
			return err
		}
	}
	return nil
}
