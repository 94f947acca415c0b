package services

import (
	"context"

	"go.uber.org/zap"

	"loom-backend/application/ports"
	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// PathService owns path-engine operations over the materialized cursor
// sequence. The engine assumes one logical writer per path; callers
// driving concurrent navigation on the same path must serialize
// externally.
type PathService struct {
	paths  ports.PathRepository
	states ports.PathStateRepository
	nodes  ports.NodeRepository
	logger *zap.Logger
}

// NewPathService creates a path service
func NewPathService(
	paths ports.PathRepository,
	states ports.PathStateRepository,
	nodes ports.NodeRepository,
	logger *zap.Logger,
) *PathService {
	return &PathService{
		paths:  paths,
		states: states,
		nodes:  nodes,
		logger: logger,
	}
}

// CreatePath creates and persists a path rooted at the given node, with
// its initial cursor state
func (s *PathService) CreatePath(ctx context.Context, treeID valueobjects.TreeID, agentID valueobjects.AgentID, rootNodeID valueobjects.NodeID, mode aggregates.TreeMode) (*aggregates.Path, error) {
	path, err := aggregates.NewPath(treeID, agentID, rootNodeID)
	if err != nil {
		return nil, err
	}
	if err := s.paths.Save(ctx, path); err != nil {
		return nil, err
	}
	if err := s.states.SetActiveNode(ctx, path.ID(), rootNodeID, mode); err != nil {
		return nil, err
	}
	return path, nil
}

// GetPath retrieves a path by ID
func (s *PathService) GetPath(ctx context.Context, id valueobjects.PathID) (*aggregates.Path, error) {
	return s.paths.GetByID(ctx, id)
}

// AppendNode appends a node to the path sequence. Not idempotent; the
// caller guarantees exactly-once per generated node.
func (s *PathService) AppendNode(ctx context.Context, pathID valueobjects.PathID, nodeID valueobjects.NodeID) error {
	path, err := s.paths.GetByID(ctx, pathID)
	if err != nil {
		return err
	}
	node, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if !node.TreeID().Equals(path.TreeID()) {
		return pkgerrors.NewValidationError("node belongs to a different tree than the path")
	}
	return s.paths.AppendNode(ctx, pathID, nodeID)
}

// Truncate discards all entries at positions >= newLength
func (s *PathService) Truncate(ctx context.Context, pathID valueobjects.PathID, newLength int) error {
	return s.paths.Truncate(ctx, pathID, newLength)
}

// ReplaceSuffix switches the branch a path follows from startPosition on.
// Atomic relative to readers; the repository never exposes a sequence
// with a gap or duplicate position.
func (s *PathService) ReplaceSuffix(ctx context.Context, pathID valueobjects.PathID, startPosition int, nodeIDs []valueobjects.NodeID) error {
	path, err := s.paths.GetByID(ctx, pathID)
	if err != nil {
		return err
	}
	for _, id := range nodeIDs {
		node, err := s.nodes.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !node.TreeID().Equals(path.TreeID()) {
			return pkgerrors.NewValidationError("node belongs to a different tree than the path")
		}
	}
	if err := s.paths.ReplaceSuffix(ctx, pathID, startPosition, nodeIDs); err != nil {
		return err
	}

	s.logger.Debug("path suffix replaced",
		zap.String("path_id", pathID.String()),
		zap.Int("start_position", startPosition),
		zap.Int("new_nodes", len(nodeIDs)),
	)
	return nil
}

// UpsertSelection records which incoming edge or which alternate source is
// active for a decision point on this path
func (s *PathService) UpsertSelection(ctx context.Context, pathID valueobjects.PathID, sel aggregates.PathSelection) error {
	return s.paths.UpsertSelection(ctx, pathID, sel)
}

// DeleteSelection clears a decision-point choice, falling back to the
// primary-marked default
func (s *PathService) DeleteSelection(ctx context.Context, pathID valueobjects.PathID, targetNodeID valueobjects.NodeID) error {
	return s.paths.DeleteSelection(ctx, pathID, targetNodeID)
}

// SetActiveNode updates the fast cursor for a path
func (s *PathService) SetActiveNode(ctx context.Context, pathID valueobjects.PathID, nodeID valueobjects.NodeID, mode aggregates.TreeMode) error {
	return s.states.SetActiveNode(ctx, pathID, nodeID, mode)
}

// GetState retrieves the fast cursor for a path
func (s *PathService) GetState(ctx context.Context, pathID valueobjects.PathID) (*aggregates.PathState, error) {
	return s.states.Get(ctx, pathID)
}
