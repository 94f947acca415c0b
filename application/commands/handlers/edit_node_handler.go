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

// EditNodeHandler applies version-on-edit through the graph service
type EditNodeHandler struct {
	graph     *services.GraphService
	nodes     ports.NodeRepository
	agents    ports.AgentRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewEditNodeHandler creates the handler
func NewEditNodeHandler(
	graph *services.GraphService,
	nodes ports.NodeRepository,
	agents ports.AgentRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *EditNodeHandler {
	return &EditNodeHandler{
		graph:     graph,
		nodes:     nodes,
		agents:    agents,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle creates a version node for the edit
func (h *EditNodeHandler) Handle(ctx context.Context, cmd commands.EditNodeCommand) (*entities.Node, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	nodeID, err := valueobjects.NewNodeIDFromString(cmd.NodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	editorID, err := valueobjects.NewAgentIDFromString(cmd.EditorAgentID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	if _, err := h.agents.GetByID(ctx, editorID); err != nil {
		return nil, err
	}

	content, err := valueobjects.NewTextContent(cmd.NewContent)
	if err != nil {
		return nil, err
	}

	version, err := h.graph.EditNode(ctx, nodeID, content, editorID)
	if err != nil {
		return nil, err
	}

	event := events.NewNodeEdited(
		version.TreeID().String(), nodeID.String(), version.ID().String(), time.Now().UTC())
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Error("failed to publish edit event", zap.Error(err))
	}

	return version, nil
}
