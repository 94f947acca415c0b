package handlers

import (
	"context"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/ports"
	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// ArchiveTreeHandler archives a tree
type ArchiveTreeHandler struct {
	trees     ports.TreeRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewArchiveTreeHandler creates the handler
func NewArchiveTreeHandler(trees ports.TreeRepository, publisher ports.EventPublisher, logger *zap.Logger) *ArchiveTreeHandler {
	return &ArchiveTreeHandler{trees: trees, publisher: publisher, logger: logger}
}

// Handle archives the tree
func (h *ArchiveTreeHandler) Handle(ctx context.Context, cmd commands.ArchiveTreeCommand) (*aggregates.LoomTree, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	treeID, err := valueobjects.NewTreeIDFromString(cmd.TreeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	tree, err := h.trees.GetByID(ctx, treeID)
	if err != nil {
		return nil, err
	}
	if err := tree.Archive(); err != nil {
		return nil, err
	}
	if err := h.trees.Save(ctx, tree); err != nil {
		return nil, err
	}

	if err := h.publisher.PublishBatch(ctx, tree.GetUncommittedEvents()); err != nil {
		h.logger.Error("failed to publish archive event", zap.Error(err))
	}
	tree.MarkEventsAsCommitted()

	return tree, nil
}
