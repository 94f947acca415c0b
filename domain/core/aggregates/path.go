package aggregates

import (
	"fmt"
	"time"

	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// PathNode is one position→node entry in a path's materialized sequence
type PathNode struct {
	Position int                 `json:"position"`
	NodeID   valueobjects.NodeID `json:"node_id"`
}

// PathSelection disambiguates one decision point for one path: which
// incoming continuation edge, or which alternate source within one
// hyperedge, is active when resolving the route through the target node.
// Selections are per-path; two paths may resolve the same point
// differently.
type PathSelection struct {
	TargetNodeID         valueobjects.NodeID  `json:"target_node_id"`
	SelectedEdgeID       *valueobjects.EdgeID `json:"selected_edge_id,omitempty"`
	SelectedSourceNodeID *valueobjects.NodeID `json:"selected_source_node_id,omitempty"`
}

// PathState holds the fast-changing cursor for a path. Last writer wins;
// the PathNode sequence remains the durable source of truth for replay.
type PathState struct {
	ActiveNodeID valueobjects.NodeID              `json:"active_node_id"`
	PerMode      map[TreeMode]valueobjects.NodeID `json:"per_mode,omitempty"`
	UpdatedAt    time.Time                        `json:"updated_at"`
}

// Path is a durable, agent-owned cursor over a tree: an ordered,
// append-indexed node sequence plus the sparse selection table. Positions
// are contiguous from 0 and entry 0 is always the tree's root node.
type Path struct {
	id         valueobjects.PathID
	treeID     valueobjects.TreeID
	agentID    valueobjects.AgentID
	entries    []PathNode
	selections map[string]PathSelection
	createdAt  time.Time
}

// NewPath creates a path rooted at the tree's root node
func NewPath(treeID valueobjects.TreeID, agentID valueobjects.AgentID, rootNodeID valueobjects.NodeID) (*Path, error) {
	if treeID.IsZero() {
		return nil, pkgerrors.NewValidationError("treeID cannot be empty")
	}
	if agentID.IsZero() {
		return nil, pkgerrors.NewValidationError("agentID cannot be empty")
	}
	if rootNodeID.IsZero() {
		return nil, pkgerrors.NewValidationError("rootNodeID cannot be empty")
	}
	return &Path{
		id:         valueobjects.NewPathID(),
		treeID:     treeID,
		agentID:    agentID,
		entries:    []PathNode{{Position: 0, NodeID: rootNodeID}},
		selections: make(map[string]PathSelection),
		createdAt:  time.Now().UTC(),
	}, nil
}

// ReconstructPath rebuilds a path from repository data
func ReconstructPath(
	id valueobjects.PathID,
	treeID valueobjects.TreeID,
	agentID valueobjects.AgentID,
	entries []PathNode,
	selections []PathSelection,
	createdAt time.Time,
) (*Path, error) {
	if err := checkContiguous(entries); err != nil {
		return nil, err
	}
	sel := make(map[string]PathSelection, len(selections))
	for _, s := range selections {
		sel[s.TargetNodeID.String()] = s
	}
	return &Path{
		id:         id,
		treeID:     treeID,
		agentID:    agentID,
		entries:    entries,
		selections: sel,
		createdAt:  createdAt,
	}, nil
}

// ID returns the path identifier
func (p *Path) ID() valueobjects.PathID { return p.id }

// TreeID returns the tree this path traverses
func (p *Path) TreeID() valueobjects.TreeID { return p.treeID }

// AgentID returns the agent owning this path
func (p *Path) AgentID() valueobjects.AgentID { return p.agentID }

// CreatedAt returns when the path was created
func (p *Path) CreatedAt() time.Time { return p.createdAt }

// Length returns the number of path entries
func (p *Path) Length() int { return len(p.entries) }

// Entries returns a copy of the materialized sequence
func (p *Path) Entries() []PathNode {
	entries := make([]PathNode, len(p.entries))
	copy(entries, p.entries)
	return entries
}

// NodeIDAt returns the node at the given position
func (p *Path) NodeIDAt(position int) (valueobjects.NodeID, error) {
	if position < 0 || position >= len(p.entries) {
		return valueobjects.NodeID{}, pkgerrors.NewValidationError(
			fmt.Sprintf("position %d out of range [0,%d)", position, len(p.entries)))
	}
	return p.entries[position].NodeID, nil
}

// LastNodeID returns the node at the tail of the sequence
func (p *Path) LastNodeID() valueobjects.NodeID {
	return p.entries[len(p.entries)-1].NodeID
}

// RootNodeID returns the node at position 0
func (p *Path) RootNodeID() valueobjects.NodeID {
	return p.entries[0].NodeID
}

// AppendNode adds one entry at position = current length. Not idempotent:
// repeated calls append duplicates, so callers must guarantee exactly-once
// per generated node.
func (p *Path) AppendNode(nodeID valueobjects.NodeID) error {
	if nodeID.IsZero() {
		return pkgerrors.NewValidationError("nodeID cannot be empty")
	}
	p.entries = append(p.entries, PathNode{Position: len(p.entries), NodeID: nodeID})
	return nil
}

// Truncate discards all entries with position >= newLength. The root
// entry can never be discarded.
func (p *Path) Truncate(newLength int) error {
	if newLength < 1 {
		return pkgerrors.NewValidationError("path cannot be truncated below its root")
	}
	if newLength > len(p.entries) {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("truncate length %d exceeds path length %d", newLength, len(p.entries)))
	}
	p.entries = p.entries[:newLength]
	return nil
}

// ReplaceSuffix atomically discards entries at positions >= startPosition
// and appends nodeIDs from startPosition on, renumbering contiguously.
// This is the only operation that changes which branch the path follows
// past a given point.
func (p *Path) ReplaceSuffix(startPosition int, nodeIDs []valueobjects.NodeID) error {
	if startPosition < 1 {
		return pkgerrors.NewValidationError("suffix replacement cannot start at the root")
	}
	if startPosition > len(p.entries) {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("start position %d exceeds path length %d", startPosition, len(p.entries)))
	}
	for _, id := range nodeIDs {
		if id.IsZero() {
			return pkgerrors.NewValidationError("nodeID cannot be empty")
		}
	}

	replaced := make([]PathNode, 0, startPosition+len(nodeIDs))
	replaced = append(replaced, p.entries[:startPosition]...)
	for i, id := range nodeIDs {
		replaced = append(replaced, PathNode{Position: startPosition + i, NodeID: id})
	}
	p.entries = replaced
	return nil
}

// UpsertSelection records the active choice for a decision point
func (p *Path) UpsertSelection(sel PathSelection) error {
	if sel.TargetNodeID.IsZero() {
		return pkgerrors.NewValidationError("selection targetNodeID cannot be empty")
	}
	if sel.SelectedEdgeID == nil && sel.SelectedSourceNodeID == nil {
		return pkgerrors.NewValidationError("selection must name an edge or a source node")
	}
	p.selections[sel.TargetNodeID.String()] = sel
	return nil
}

// DeleteSelection clears the choice for a decision point, falling back to
// the primary-marked default
func (p *Path) DeleteSelection(targetNodeID valueobjects.NodeID) error {
	key := targetNodeID.String()
	if _, ok := p.selections[key]; !ok {
		return pkgerrors.NewNotFoundError("path selection")
	}
	delete(p.selections, key)
	return nil
}

// SelectionFor returns the recorded choice for a decision point, if any
func (p *Path) SelectionFor(targetNodeID valueobjects.NodeID) (PathSelection, bool) {
	sel, ok := p.selections[targetNodeID.String()]
	return sel, ok
}

// Selections returns a copy of all recorded selections
func (p *Path) Selections() []PathSelection {
	out := make([]PathSelection, 0, len(p.selections))
	for _, sel := range p.selections {
		out = append(out, sel)
	}
	return out
}

// SelectionTable returns the selections keyed by target node id, the shape
// ancestor-path resolution consumes
func (p *Path) SelectionTable() map[string]PathSelection {
	table := make(map[string]PathSelection, len(p.selections))
	for k, v := range p.selections {
		table[k] = v
	}
	return table
}

func checkContiguous(entries []PathNode) error {
	if len(entries) == 0 {
		return pkgerrors.NewValidationError("path must contain at least its root entry")
	}
	for i, e := range entries {
		if e.Position != i {
			return pkgerrors.NewValidationError(
				fmt.Sprintf("path positions must be contiguous from 0, got %d at index %d", e.Position, i))
		}
	}
	return nil
}
