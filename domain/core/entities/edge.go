package entities

import (
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// EdgeType distinguishes the traversal skeleton from side annotations.
// Only continuation edges take part in ancestor/descendant computation.
type EdgeType string

const (
	EdgeTypeContinuation EdgeType = "continuation"
	EdgeTypeAnnotation   EdgeType = "annotation"
)

// SourceRole tags a source within a hyperedge
type SourceRole string

const (
	// RolePrimary marks the default source used when no path selection
	// overrides the choice
	RolePrimary SourceRole = "primary"
	// RoleAlternate marks additional takes of the same position, added
	// when a source node is edited
	RoleAlternate SourceRole = "alternate"
)

// SourceRef is one tagged source of a hyperedge
type SourceRef struct {
	NodeID valueobjects.NodeID `json:"node_id"`
	Role   SourceRole          `json:"role"`
}

// Edge is a directed hyperedge: an ordered set of tagged sources
// converging on one target node. The source set is modeled as a list on
// the edge itself, never as separate graph edges, so that disambiguation
// at the target stays atomic.
type Edge struct {
	id       valueobjects.EdgeID
	treeID   valueobjects.TreeID
	sources  []SourceRef
	targetID valueobjects.NodeID
	edgeType EdgeType
}

// NewEdge creates an edge with invariant validation. Tree membership of
// the referenced nodes is the caller's responsibility (the graph service
// checks it against the store before construction).
func NewEdge(treeID valueobjects.TreeID, sources []SourceRef, targetID valueobjects.NodeID, edgeType EdgeType) (*Edge, error) {
	if treeID.IsZero() {
		return nil, pkgerrors.NewValidationError("treeID cannot be empty")
	}
	if len(sources) == 0 {
		return nil, pkgerrors.NewValidationError("edge must have at least one source")
	}
	if targetID.IsZero() {
		return nil, pkgerrors.NewValidationError("targetID cannot be empty")
	}
	if edgeType != EdgeTypeContinuation && edgeType != EdgeTypeAnnotation {
		return nil, pkgerrors.NewValidationError("unknown edge type")
	}
	for _, src := range sources {
		if src.NodeID.IsZero() {
			return nil, pkgerrors.NewValidationError("edge source nodeID cannot be empty")
		}
		if src.NodeID.Equals(targetID) {
			return nil, pkgerrors.NewValidationError("edge cannot reference its target as a source")
		}
	}

	refs := make([]SourceRef, len(sources))
	copy(refs, sources)

	return &Edge{
		id:       valueobjects.NewEdgeID(),
		treeID:   treeID,
		sources:  refs,
		targetID: targetID,
		edgeType: edgeType,
	}, nil
}

// ReconstructEdge rebuilds an edge from repository data
func ReconstructEdge(id valueobjects.EdgeID, treeID valueobjects.TreeID, sources []SourceRef, targetID valueobjects.NodeID, edgeType EdgeType) *Edge {
	return &Edge{
		id:       id,
		treeID:   treeID,
		sources:  sources,
		targetID: targetID,
		edgeType: edgeType,
	}
}

// ID returns the edge identifier
func (e *Edge) ID() valueobjects.EdgeID { return e.id }

// TreeID returns the tree this edge belongs to
func (e *Edge) TreeID() valueobjects.TreeID { return e.treeID }

// TargetID returns the node all sources converge on
func (e *Edge) TargetID() valueobjects.NodeID { return e.targetID }

// Type returns the edge type
func (e *Edge) Type() EdgeType { return e.edgeType }

// Sources returns a copy of the tagged source set
func (e *Edge) Sources() []SourceRef {
	refs := make([]SourceRef, len(e.sources))
	copy(refs, e.sources)
	return refs
}

// HasSource reports whether nodeID is among the edge's sources
func (e *Edge) HasSource(nodeID valueobjects.NodeID) bool {
	for _, src := range e.sources {
		if src.NodeID.Equals(nodeID) {
			return true
		}
	}
	return false
}

// PrimarySource returns the source marked primary, falling back to the
// first source when none carries the mark
func (e *Edge) PrimarySource() SourceRef {
	for _, src := range e.sources {
		if src.Role == RolePrimary {
			return src
		}
	}
	return e.sources[0]
}

// RoleOf returns the role of the given source node
func (e *Edge) RoleOf(nodeID valueobjects.NodeID) (SourceRole, bool) {
	for _, src := range e.sources {
		if src.NodeID.Equals(nodeID) {
			return src.Role, true
		}
	}
	return "", false
}

// AddSource adds an alternate source. Used when a source node is edited:
// the version node joins every hyperedge the original fed, with the same
// role, so downstream edges never have to change.
func (e *Edge) AddSource(nodeID valueobjects.NodeID, role SourceRole) error {
	if nodeID.IsZero() {
		return pkgerrors.NewValidationError("source nodeID cannot be empty")
	}
	if nodeID.Equals(e.targetID) {
		return pkgerrors.NewValidationError("edge cannot reference its target as a source")
	}
	if e.HasSource(nodeID) {
		return pkgerrors.NewConflictError("source already present on edge")
	}
	e.sources = append(e.sources, SourceRef{NodeID: nodeID, Role: role})
	return nil
}

// RemoveSource removes a source from the edge. Returns the remaining
// source count so callers can delete the edge once it becomes empty.
func (e *Edge) RemoveSource(nodeID valueobjects.NodeID) (int, error) {
	kept := e.sources[:0]
	found := false
	for _, src := range e.sources {
		if src.NodeID.Equals(nodeID) {
			found = true
			continue
		}
		kept = append(kept, src)
	}
	if !found {
		return len(e.sources), pkgerrors.NewNotFoundError("edge source")
	}
	e.sources = kept
	return len(e.sources), nil
}
