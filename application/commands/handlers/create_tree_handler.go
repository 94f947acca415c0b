package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"loom-backend/application/commands"
	"loom-backend/application/ports"
	"loom-backend/application/sagas"
	"loom-backend/application/services"
	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
	pkgerrors "loom-backend/pkg/errors"
)

// CreateTreeResult carries everything tree creation produced
type CreateTreeResult struct {
	Tree     *aggregates.LoomTree
	RootNode *entities.Node
	Path     *aggregates.Path
}

// CreateTreeHandler creates a loom tree atomically: root node, tree
// record, initial path and path state, with compensating rollback of
// already-created entities on any failure. The root node is created
// before the tree record, which is what enforces the one-root-per-tree
// invariant by construction order.
type CreateTreeHandler struct {
	graph     *services.GraphService
	trees     ports.TreeRepository
	nodes     ports.NodeRepository
	pathRepo  ports.PathRepository
	states    ports.PathStateRepository
	agents    ports.AgentRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewCreateTreeHandler creates the handler
func NewCreateTreeHandler(
	graph *services.GraphService,
	trees ports.TreeRepository,
	nodes ports.NodeRepository,
	pathRepo ports.PathRepository,
	states ports.PathStateRepository,
	agents ports.AgentRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *CreateTreeHandler {
	return &CreateTreeHandler{
		graph:     graph,
		trees:     trees,
		nodes:     nodes,
		pathRepo:  pathRepo,
		states:    states,
		agents:    agents,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle creates the tree
func (h *CreateTreeHandler) Handle(ctx context.Context, cmd commands.CreateTreeCommand) (*CreateTreeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	agentID, err := valueobjects.NewAgentIDFromString(cmd.AgentID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	if _, err := h.agents.GetByID(ctx, agentID); err != nil {
		return nil, err
	}

	content, err := valueobjects.NewTextContent(cmd.InitialContent)
	if err != nil {
		return nil, err
	}

	mode := aggregates.TreeMode(cmd.Mode)
	treeID := valueobjects.NewTreeID()

	var (
		rootNode *entities.Node
		tree     *aggregates.LoomTree
		path     *aggregates.Path
	)

	saga := sagas.NewSaga("create-tree", h.logger)

	saga.AddStep(sagas.Step{
		Name: "CreateRootNode",
		Execute: func(ctx context.Context) error {
			var err error
			rootNode, err = h.graph.CreateNode(ctx, services.CreateNodeParams{
				TreeID:        treeID,
				Content:       content,
				AuthorAgentID: agentID,
				AuthorType:    entities.AuthorHuman,
			})
			return err
		},
		Compensate: func(ctx context.Context) error {
			return h.nodes.Delete(ctx, rootNode.ID())
		},
	})

	saga.AddStep(sagas.Step{
		Name: "CreateTree",
		Execute: func(ctx context.Context) error {
			var err error
			tree, err = aggregates.NewLoomTree(treeID, rootNode.ID(), mode, cmd.Title, cmd.Description, cmd.SystemContext)
			if err != nil {
				return err
			}
			return h.trees.Save(ctx, tree)
		},
		Compensate: func(ctx context.Context) error {
			return h.trees.Delete(ctx, treeID)
		},
	})

	// Path creation is two writes; each gets its own step so a failure
	// between them still rolls the first one back.
	saga.AddStep(sagas.Step{
		Name: "CreatePath",
		Execute: func(ctx context.Context) error {
			var err error
			path, err = aggregates.NewPath(treeID, agentID, rootNode.ID())
			if err != nil {
				return err
			}
			return h.pathRepo.Save(ctx, path)
		},
		Compensate: func(ctx context.Context) error {
			return h.pathRepo.Delete(ctx, path.ID())
		},
	})

	saga.AddStep(sagas.Step{
		Name: "InitializePathState",
		Execute: func(ctx context.Context) error {
			return h.states.SetActiveNode(ctx, path.ID(), rootNode.ID(), mode)
		},
	})

	if err := saga.Execute(ctx); err != nil {
		return nil, err
	}

	event := events.NewTreeCreated(
		treeID.String(), rootNode.ID().String(), path.ID().String(), cmd.Mode, time.Now().UTC())
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Error("failed to publish tree event", zap.Error(err))
	}

	h.logger.Info("tree created",
		zap.String("tree_id", treeID.String()),
		zap.String("root_node_id", rootNode.ID().String()),
		zap.String("path_id", path.ID().String()),
	)

	return &CreateTreeResult{Tree: tree, RootNode: rootNode, Path: path}, nil
}
