package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/ports"
	"loom-backend/application/services"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
	pkgerrors "loom-backend/pkg/errors"
)

// SwitchBranchHandler replaces a path's suffix, moving the cursor onto
// the new tail
type SwitchBranchHandler struct {
	paths     *services.PathService
	trees     ports.TreeRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewSwitchBranchHandler creates the handler
func NewSwitchBranchHandler(
	paths *services.PathService,
	trees ports.TreeRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *SwitchBranchHandler {
	return &SwitchBranchHandler{
		paths:     paths,
		trees:     trees,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle performs the suffix replacement
func (h *SwitchBranchHandler) Handle(ctx context.Context, cmd commands.SwitchBranchCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	pathID, err := valueobjects.NewPathIDFromString(cmd.PathID)
	if err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}

	nodeIDs := make([]valueobjects.NodeID, 0, len(cmd.NodeIDs))
	for _, raw := range cmd.NodeIDs {
		id, err := valueobjects.NewNodeIDFromString(raw)
		if err != nil {
			return pkgerrors.NewValidationError(err.Error())
		}
		nodeIDs = append(nodeIDs, id)
	}

	if err := h.paths.ReplaceSuffix(ctx, pathID, cmd.StartPosition, nodeIDs); err != nil {
		return err
	}

	path, err := h.paths.GetPath(ctx, pathID)
	if err != nil {
		return err
	}
	tree, err := h.trees.GetByID(ctx, path.TreeID())
	if err != nil {
		return err
	}
	if err := h.paths.SetActiveNode(ctx, pathID, path.LastNodeID(), tree.Mode()); err != nil {
		return err
	}

	event := events.NewPathBranchSwitched(pathID.String(), cmd.StartPosition, path.Length(), time.Now().UTC())
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Error("failed to publish branch switch event", zap.Error(err))
	}
	return nil
}
