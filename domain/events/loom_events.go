package events

import "time"

// Event type constants
const (
	EventTypeTreeCreated         = "loom.tree.created"
	EventTypeTreeArchived        = "loom.tree.archived"
	EventTypeTurnCompleted       = "loom.turn.completed"
	EventTypeNodeEdited          = "loom.node.edited"
	EventTypeNodeMetadataUpdated = "loom.node.metadata_updated"
	EventTypePathBranchSwitched  = "loom.path.branch_switched"
)

// TreeCreated is published after a tree, its root node and its initial
// path have all been persisted
type TreeCreated struct {
	BaseEvent
	RootNodeID string `json:"root_node_id"`
	PathID     string `json:"path_id"`
	Mode       string `json:"mode"`
}

// NewTreeCreated creates a TreeCreated event
func NewTreeCreated(treeID, rootNodeID, pathID, mode string, at time.Time) TreeCreated {
	return TreeCreated{
		BaseEvent:  NewBaseEvent(EventTypeTreeCreated, treeID, at),
		RootNodeID: rootNodeID,
		PathID:     pathID,
		Mode:       mode,
	}
}

// TreeArchived is published when a tree is archived
type TreeArchived struct {
	BaseEvent
}

// NewTreeArchived creates a TreeArchived event
func NewTreeArchived(treeID string, at time.Time) TreeArchived {
	return TreeArchived{BaseEvent: NewBaseEvent(EventTypeTreeArchived, treeID, at)}
}

// TurnCompleted is published once a human/model exchange has fully
// committed, including provenance verification of the model node
type TurnCompleted struct {
	BaseEvent
	PathID      string `json:"path_id"`
	HumanNodeID string `json:"human_node_id"`
	ModelNodeID string `json:"model_node_id"`
	EvidenceID  string `json:"evidence_id"`
}

// NewTurnCompleted creates a TurnCompleted event
func NewTurnCompleted(treeID, pathID, humanNodeID, modelNodeID, evidenceID string, at time.Time) TurnCompleted {
	return TurnCompleted{
		BaseEvent:   NewBaseEvent(EventTypeTurnCompleted, treeID, at),
		PathID:      pathID,
		HumanNodeID: humanNodeID,
		ModelNodeID: modelNodeID,
		EvidenceID:  evidenceID,
	}
}

// NodeEdited is published when a version node is created for an edit
type NodeEdited struct {
	BaseEvent
	OriginalNodeID string `json:"original_node_id"`
	VersionNodeID  string `json:"version_node_id"`
}

// NewNodeEdited creates a NodeEdited event
func NewNodeEdited(treeID, originalNodeID, versionNodeID string, at time.Time) NodeEdited {
	return NodeEdited{
		BaseEvent:      NewBaseEvent(EventTypeNodeEdited, treeID, at),
		OriginalNodeID: originalNodeID,
		VersionNodeID:  versionNodeID,
	}
}

// NodeMetadataUpdated is published when mutable node metadata changes
type NodeMetadataUpdated struct {
	BaseEvent
}

// NewNodeMetadataUpdated creates a NodeMetadataUpdated event
func NewNodeMetadataUpdated(nodeID string, at time.Time) NodeMetadataUpdated {
	return NodeMetadataUpdated{BaseEvent: NewBaseEvent(EventTypeNodeMetadataUpdated, nodeID, at)}
}

// PathBranchSwitched is published after a path's suffix has been replaced
type PathBranchSwitched struct {
	BaseEvent
	StartPosition int `json:"start_position"`
	NewLength     int `json:"new_length"`
}

// NewPathBranchSwitched creates a PathBranchSwitched event
func NewPathBranchSwitched(pathID string, startPosition, newLength int, at time.Time) PathBranchSwitched {
	return PathBranchSwitched{
		BaseEvent:     NewBaseEvent(EventTypePathBranchSwitched, pathID, at),
		StartPosition: startPosition,
		NewLength:     newLength,
	}
}
