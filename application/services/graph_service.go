package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"loom-backend/application/ports"
	"loom-backend/domain/config"
	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/hashing"
	pkgerrors "loom-backend/pkg/errors"
)

// NodeIDGenerator produces node identifiers. Injectable so tests can
// force localID prefix collisions.
type NodeIDGenerator func() valueobjects.NodeID

// GraphService owns graph-store operations: node creation with localID
// derivation, hyperedge creation and mutation, version-on-edit, and
// traversal queries.
type GraphService struct {
	nodes  ports.NodeRepository
	edges  ports.EdgeRepository
	trees  ports.TreeRepository
	cfg    *config.DomainConfig
	idGen  NodeIDGenerator
	logger *zap.Logger
}

// NewGraphService creates a graph service
func NewGraphService(
	nodes ports.NodeRepository,
	edges ports.EdgeRepository,
	trees ports.TreeRepository,
	logger *zap.Logger,
) *GraphService {
	return &GraphService{
		nodes:  nodes,
		edges:  edges,
		trees:  trees,
		cfg:    config.DefaultDomainConfig(),
		idGen:  valueobjects.NewNodeID,
		logger: logger,
	}
}

// WithIDGenerator overrides node ID generation (tests only)
func (s *GraphService) WithIDGenerator(gen NodeIDGenerator) *GraphService {
	s.idGen = gen
	return s
}

// CreateNodeParams collects the inputs for node creation. CreatedAt is
// optional; the zero value means "now". RawResponseHash is required for
// model-authored nodes and forbidden otherwise.
type CreateNodeParams struct {
	TreeID          valueobjects.TreeID
	Content         valueobjects.NodeContent
	AuthorAgentID   valueobjects.AgentID
	AuthorType      entities.AuthorType
	ParentHashes    []string
	CreatedAt       time.Time
	EditedFrom      *valueobjects.NodeID
	RawResponseHash string
}

// CreateNode computes the content hash, derives a tree-unique localID and
// persists a new immutable node.
func (s *GraphService) CreateNode(ctx context.Context, p CreateNodeParams) (*entities.Node, error) {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var (
		contentHash valueobjects.ContentHash
		err         error
	)
	switch p.AuthorType {
	case entities.AuthorHuman:
		if p.RawResponseHash != "" {
			return nil, pkgerrors.NewValidationError("human nodes carry no raw response hash")
		}
		contentHash, err = hashing.ComputeHumanContentHash(p.Content, p.ParentHashes, createdAt, p.AuthorAgentID)
	case entities.AuthorModel:
		contentHash, err = hashing.ComputeModelContentHash(p.Content, p.ParentHashes, createdAt, p.AuthorAgentID, p.RawResponseHash)
	default:
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown author type %q", p.AuthorType))
	}
	if err != nil {
		return nil, err
	}

	id := s.idGen()
	localID, err := s.deriveLocalID(ctx, p.TreeID, id)
	if err != nil {
		return nil, err
	}

	node, err := entities.NewNode(entities.NewNodeParams{
		ID:            id,
		TreeID:        p.TreeID,
		LocalID:       localID,
		Content:       p.Content,
		AuthorAgentID: p.AuthorAgentID,
		AuthorType:    p.AuthorType,
		ContentHash:   contentHash,
		CreatedAt:     createdAt,
		EditedFrom:    p.EditedFrom,
	})
	if err != nil {
		return nil, err
	}

	if err := s.nodes.Save(ctx, node); err != nil {
		return nil, err
	}

	s.logger.Debug("node created",
		zap.String("node_id", node.ID().String()),
		zap.String("tree_id", p.TreeID.String()),
		zap.String("local_id", localID),
		zap.String("author_type", string(p.AuthorType)),
	)

	return node, nil
}

// deriveLocalID takes an increasing prefix of the node's full identifier,
// starting at the configured length, extending by one character per
// collision. Exhausting the full identifier means the store already holds
// a node with this exact ID, which is a fatal inconsistency rather than
// something to loop on.
func (s *GraphService) deriveLocalID(ctx context.Context, treeID valueobjects.TreeID, id valueobjects.NodeID) (string, error) {
	full := id.String()
	for length := s.cfg.LocalIDInitialLength; length <= len(full); length++ {
		candidate := full[:length]
		taken, err := s.nodes.ExistsLocalID(ctx, treeID, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", pkgerrors.NewInternalError(
		fmt.Sprintf("local identifier space exhausted for node %s", full))
}

// CreateEdge validates that all referenced nodes exist and share one tree,
// then persists the hyperedge.
func (s *GraphService) CreateEdge(ctx context.Context, sources []entities.SourceRef, targetID valueobjects.NodeID, edgeType entities.EdgeType) (*entities.Edge, error) {
	if len(sources) == 0 {
		return nil, pkgerrors.NewValidationError("edge must have at least one source")
	}
	if len(sources) > s.cfg.MaxSourcesPerEdge {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("edge exceeds maximum of %d sources", s.cfg.MaxSourcesPerEdge))
	}

	target, err := s.nodes.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	for _, src := range sources {
		node, err := s.nodes.GetByID(ctx, src.NodeID)
		if err != nil {
			return nil, err
		}
		if !node.TreeID().Equals(target.TreeID()) {
			return nil, pkgerrors.NewValidationError(
				fmt.Sprintf("source %s belongs to a different tree than target %s",
					src.NodeID.String(), targetID.String()))
		}
	}

	edge, err := entities.NewEdge(target.TreeID(), sources, targetID, edgeType)
	if err != nil {
		return nil, err
	}

	if err := s.edges.Save(ctx, edge); err != nil {
		return nil, err
	}

	s.logger.Debug("edge created",
		zap.String("edge_id", edge.ID().String()),
		zap.String("target_id", targetID.String()),
		zap.String("edge_type", string(edgeType)),
		zap.Int("sources", len(sources)),
	)

	return edge, nil
}

// AddVersionSource adds an alternate source to an existing hyperedge
func (s *GraphService) AddVersionSource(ctx context.Context, edgeID valueobjects.EdgeID, newSourceNodeID valueobjects.NodeID, role entities.SourceRole) (*entities.Edge, error) {
	edge, err := s.edges.GetByID(ctx, edgeID)
	if err != nil {
		return nil, err
	}

	node, err := s.nodes.GetByID(ctx, newSourceNodeID)
	if err != nil {
		return nil, err
	}
	if !node.TreeID().Equals(edge.TreeID()) {
		return nil, pkgerrors.NewValidationError("version source belongs to a different tree")
	}

	if err := edge.AddSource(newSourceNodeID, role); err != nil {
		return nil, err
	}
	if err := s.edges.Save(ctx, edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// RemoveSourceFromEdge removes a source; the edge is deleted entirely once
// its source set becomes empty, in which case nil is returned.
func (s *GraphService) RemoveSourceFromEdge(ctx context.Context, edgeID valueobjects.EdgeID, sourceNodeID valueobjects.NodeID) (*entities.Edge, error) {
	edge, err := s.edges.GetByID(ctx, edgeID)
	if err != nil {
		return nil, err
	}

	remaining, err := edge.RemoveSource(sourceNodeID)
	if err != nil {
		return nil, err
	}

	if remaining == 0 {
		if err := s.edges.Delete(ctx, edgeID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := s.edges.Save(ctx, edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// EditNode implements version-on-edit: the original node is never
// rewritten. A new version node is created with editedFrom pointing at
// the original, and the version joins every edge the original feeds as an
// additional source with the original's role, so downstream continuation
// edges stay untouched.
func (s *GraphService) EditNode(ctx context.Context, nodeID valueobjects.NodeID, newContent valueobjects.NodeContent, editorAgentID valueobjects.AgentID) (*entities.Node, error) {
	original, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	parentHashes, err := s.parentHashesOf(ctx, original)
	if err != nil {
		return nil, err
	}

	editedFrom := original.ID()
	version, err := s.CreateNode(ctx, CreateNodeParams{
		TreeID:        original.TreeID(),
		Content:       newContent,
		AuthorAgentID: editorAgentID,
		AuthorType:    entities.AuthorHuman,
		ParentHashes:  parentHashes,
		EditedFrom:    &editedFrom,
	})
	if err != nil {
		return nil, err
	}

	fed, err := s.edges.GetBySourceID(ctx, original.ID())
	if err != nil {
		return nil, err
	}
	for _, edge := range fed {
		role, ok := edge.RoleOf(original.ID())
		if !ok {
			continue
		}
		if err := edge.AddSource(version.ID(), role); err != nil {
			return nil, err
		}
		if err := s.edges.Save(ctx, edge); err != nil {
			return nil, err
		}
	}

	s.logger.Info("node edited",
		zap.String("original_id", original.ID().String()),
		zap.String("version_id", version.ID().String()),
		zap.Int("edges_updated", len(fed)),
	)

	return version, nil
}

// NodeMetadataChanges collects optional metadata mutations; nil fields
// are left untouched
type NodeMetadataChanges struct {
	Bookmarked    *bool
	BookmarkLabel *string
	Pruned        *bool
	Excluded      *bool
	Summary       *string
}

// UpdateNodeMetadata applies the only mutations a node permits after
// creation
func (s *GraphService) UpdateNodeMetadata(ctx context.Context, nodeID valueobjects.NodeID, changes NodeMetadataChanges) (*entities.Node, error) {
	node, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if changes.Bookmarked != nil {
		if *changes.Bookmarked {
			label := node.Metadata().BookmarkLabel
			if changes.BookmarkLabel != nil {
				label = *changes.BookmarkLabel
			}
			if err := node.Bookmark(label); err != nil {
				return nil, err
			}
		} else {
			node.ClearBookmark()
		}
	} else if changes.BookmarkLabel != nil {
		if err := node.Bookmark(*changes.BookmarkLabel); err != nil {
			return nil, err
		}
	}
	if changes.Pruned != nil {
		node.SetPruned(*changes.Pruned)
	}
	if changes.Excluded != nil {
		node.SetExcluded(*changes.Excluded)
	}
	if changes.Summary != nil {
		if err := node.SetSummary(*changes.Summary); err != nil {
			return nil, err
		}
	}

	if err := s.nodes.Save(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

// FindChildren returns the targets of outgoing continuation edges
func (s *GraphService) FindChildren(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Node, error) {
	outgoing, err := s.edges.GetBySourceID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	children := make([]*entities.Node, 0, len(outgoing))
	for _, edge := range sortedEdges(outgoing) {
		if edge.Type() != entities.EdgeTypeContinuation {
			continue
		}
		child, err := s.nodes.GetByID(ctx, edge.TargetID())
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// FindParentEdge returns the primary incoming continuation edge, or nil
// at the root
func (s *GraphService) FindParentEdge(ctx context.Context, nodeID valueobjects.NodeID) (*entities.Edge, error) {
	incoming, err := s.incomingContinuations(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if len(incoming) == 0 {
		return nil, nil
	}
	return incoming[0], nil
}

// HasChildren reports whether a node has outgoing continuation edges
func (s *GraphService) HasChildren(ctx context.Context, nodeID valueobjects.NodeID) (bool, error) {
	outgoing, err := s.edges.GetBySourceID(ctx, nodeID)
	if err != nil {
		return false, err
	}
	for _, edge := range outgoing {
		if edge.Type() == entities.EdgeTypeContinuation {
			return true, nil
		}
	}
	return false, nil
}

// HasParent reports whether a node has an incoming continuation edge
func (s *GraphService) HasParent(ctx context.Context, nodeID valueobjects.NodeID) (bool, error) {
	edge, err := s.FindParentEdge(ctx, nodeID)
	if err != nil {
		return false, err
	}
	return edge != nil, nil
}

// AncestorPath reconstructs the route from the root to nodeID by walking
// incoming continuation edges, at each step taking the primary-marked
// source unless the selection table overrides the edge or source choice.
// The returned sequence is ordered root first, nodeID last.
func (s *GraphService) AncestorPath(ctx context.Context, nodeID valueobjects.NodeID, selections map[string]aggregates.PathSelection) ([]valueobjects.NodeID, error) {
	if _, err := s.nodes.GetByID(ctx, nodeID); err != nil {
		return nil, err
	}

	route := []valueobjects.NodeID{nodeID}
	visited := map[string]bool{nodeID.String(): true}
	current := nodeID

	for {
		incoming, err := s.incomingContinuations(ctx, current)
		if err != nil {
			return nil, err
		}
		if len(incoming) == 0 {
			break
		}

		edge := incoming[0]
		var sel *aggregates.PathSelection
		if selections != nil {
			if chosen, ok := selections[current.String()]; ok {
				sel = &chosen
			}
		}

		if sel != nil && sel.SelectedEdgeID != nil {
			for _, candidate := range incoming {
				if candidate.ID().Equals(*sel.SelectedEdgeID) {
					edge = candidate
					break
				}
			}
		}

		source := edge.PrimarySource()
		if sel != nil && sel.SelectedSourceNodeID != nil {
			if role, ok := edge.RoleOf(*sel.SelectedSourceNodeID); ok {
				source = entities.SourceRef{NodeID: *sel.SelectedSourceNodeID, Role: role}
			}
		}

		if visited[source.NodeID.String()] {
			return nil, pkgerrors.NewInternalError(
				fmt.Sprintf("continuation cycle detected at node %s", source.NodeID.String()))
		}
		visited[source.NodeID.String()] = true

		route = append(route, source.NodeID)
		current = source.NodeID
	}

	// Reverse into root-first order
	for i, j := 0, len(route)-1; i < j; i, j = i+1, j-1 {
		route[i], route[j] = route[j], route[i]
	}
	return route, nil
}

// VerifyRootInvariant checks that exactly one node of the tree has zero
// incoming continuation edges and that it is the tree's recorded root
func (s *GraphService) VerifyRootInvariant(ctx context.Context, treeID valueobjects.TreeID) error {
	tree, err := s.trees.GetByID(ctx, treeID)
	if err != nil {
		return err
	}
	nodes, err := s.nodes.GetByTreeID(ctx, treeID)
	if err != nil {
		return err
	}

	var roots []valueobjects.NodeID
	for _, node := range nodes {
		incoming, err := s.incomingContinuations(ctx, node.ID())
		if err != nil {
			return err
		}
		if len(incoming) == 0 {
			roots = append(roots, node.ID())
		}
	}

	if len(roots) != 1 {
		return pkgerrors.NewInternalError(
			fmt.Sprintf("tree %s has %d root nodes, expected exactly 1", treeID.String(), len(roots)))
	}
	if !roots[0].Equals(tree.RootNodeID()) {
		return pkgerrors.NewInternalError(
			fmt.Sprintf("tree %s root node %s does not match recorded root %s",
				treeID.String(), roots[0].String(), tree.RootNodeID().String()))
	}
	return nil
}

// parentHashesOf resolves the content hashes of a node's parents via its
// incoming continuation edges
func (s *GraphService) parentHashesOf(ctx context.Context, node *entities.Node) ([]string, error) {
	incoming, err := s.incomingContinuations(ctx, node.ID())
	if err != nil {
		return nil, err
	}
	if len(incoming) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var hashes []string
	for _, edge := range incoming {
		for _, src := range edge.Sources() {
			key := src.NodeID.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			parent, err := s.nodes.GetByID(ctx, src.NodeID)
			if err != nil {
				return nil, err
			}
			hashes = append(hashes, parent.ContentHash().String())
		}
	}
	return hashes, nil
}

// incomingContinuations returns incoming continuation edges in a stable
// order
func (s *GraphService) incomingContinuations(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error) {
	incoming, err := s.edges.GetByTargetID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	continuations := make([]*entities.Edge, 0, len(incoming))
	for _, edge := range incoming {
		if edge.Type() == entities.EdgeTypeContinuation {
			continuations = append(continuations, edge)
		}
	}
	return sortedEdges(continuations), nil
}

func sortedEdges(edges []*entities.Edge) []*entities.Edge {
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].ID().String() < edges[j].ID().String()
	})
	return edges
}
