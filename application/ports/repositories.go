package ports

import (
	"context"

	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
)

// Each repository call either succeeds and returns the described value or
// fails with one of NotFoundError/ValidationError/ConflictError from
// pkg/errors. Per-call atomicity is the persistence implementation's
// responsibility; the use cases rely on it plus compensation, never on
// cross-repository transactions.

// NodeRepository defines the interface for node persistence
type NodeRepository interface {
	// Save persists a node (create or metadata update)
	Save(ctx context.Context, node *entities.Node) error

	// GetByID retrieves a node by its ID
	GetByID(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error)

	// GetByTreeID retrieves all nodes of a tree
	GetByTreeID(ctx context.Context, treeID valueobjects.TreeID) ([]*entities.Node, error)

	// GetByLocalID resolves a short tree-unique identifier
	GetByLocalID(ctx context.Context, treeID valueobjects.TreeID, localID string) (*entities.Node, error)

	// ExistsLocalID reports whether a localID is taken within a tree
	ExistsLocalID(ctx context.Context, treeID valueobjects.TreeID, localID string) (bool, error)

	// Delete removes a node
	Delete(ctx context.Context, id valueobjects.NodeID) error
}

// EdgeRepository defines the interface for hyperedge persistence
type EdgeRepository interface {
	// Save persists an edge (create or source-set update)
	Save(ctx context.Context, edge *entities.Edge) error

	// GetByID retrieves an edge by its ID
	GetByID(ctx context.Context, id valueobjects.EdgeID) (*entities.Edge, error)

	// GetByTargetID retrieves the edges converging on a node
	GetByTargetID(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error)

	// GetBySourceID retrieves the edges that list a node among their sources
	GetBySourceID(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error)

	// GetByTreeID retrieves all edges of a tree
	GetByTreeID(ctx context.Context, treeID valueobjects.TreeID) ([]*entities.Edge, error)

	// Delete removes an edge
	Delete(ctx context.Context, id valueobjects.EdgeID) error
}

// TreeRepository defines the interface for loom tree persistence
type TreeRepository interface {
	// Save persists a tree (create or update)
	Save(ctx context.Context, tree *aggregates.LoomTree) error

	// GetByID retrieves a tree by its ID
	GetByID(ctx context.Context, id valueobjects.TreeID) (*aggregates.LoomTree, error)

	// List retrieves all trees
	List(ctx context.Context) ([]*aggregates.LoomTree, error)

	// Delete removes a tree record
	Delete(ctx context.Context, id valueobjects.TreeID) error
}

// PathRepository defines the interface for path persistence. The sequence
// mutations are repo-level operations so the implementation can make each
// one atomic relative to readers; no intermediate state with a gap or a
// duplicate position is ever observable.
type PathRepository interface {
	// Save persists a new path
	Save(ctx context.Context, path *aggregates.Path) error

	// GetByID retrieves a path by its ID
	GetByID(ctx context.Context, id valueobjects.PathID) (*aggregates.Path, error)

	// GetByTreeID retrieves all paths over a tree
	GetByTreeID(ctx context.Context, treeID valueobjects.TreeID) ([]*aggregates.Path, error)

	// AppendNode adds one entry at position = current length
	AppendNode(ctx context.Context, id valueobjects.PathID, nodeID valueobjects.NodeID) error

	// Truncate discards entries at positions >= newLength
	Truncate(ctx context.Context, id valueobjects.PathID, newLength int) error

	// ReplaceSuffix atomically swaps the suffix starting at startPosition
	ReplaceSuffix(ctx context.Context, id valueobjects.PathID, startPosition int, nodeIDs []valueobjects.NodeID) error

	// UpsertSelection records a decision-point choice for the path
	UpsertSelection(ctx context.Context, id valueobjects.PathID, sel aggregates.PathSelection) error

	// DeleteSelection clears a decision-point choice
	DeleteSelection(ctx context.Context, id valueobjects.PathID, targetNodeID valueobjects.NodeID) error

	// Delete removes a path
	Delete(ctx context.Context, id valueobjects.PathID) error
}

// PathStateRepository holds the fast-changing cursor per path.
// Last-writer-wins; reads must be served while the path's entry sequence
// is being appended.
type PathStateRepository interface {
	// SetActiveNode updates the cursor, optionally scoped to a tree mode
	SetActiveNode(ctx context.Context, pathID valueobjects.PathID, nodeID valueobjects.NodeID, mode aggregates.TreeMode) error

	// Get retrieves the cursor for a path
	Get(ctx context.Context, pathID valueobjects.PathID) (*aggregates.PathState, error)

	// Delete removes the cursor for a path
	Delete(ctx context.Context, pathID valueobjects.PathID) error
}

// AgentRepository defines the interface for agent persistence
type AgentRepository interface {
	// Save persists an agent (create or update)
	Save(ctx context.Context, agent *entities.Agent) error

	// GetByID retrieves an agent by its ID
	GetByID(ctx context.Context, id valueobjects.AgentID) (*entities.Agent, error)

	// List retrieves all agents
	List(ctx context.Context) ([]*entities.Agent, error)
}

// EvidenceRepository persists raw API response records. Append-only:
// there is no update operation, and Delete exists solely for turn
// compensation.
type EvidenceRepository interface {
	// Save persists an evidence record
	Save(ctx context.Context, evidence *entities.RawAPIResponse) error

	// GetByID retrieves an evidence record by its ID
	GetByID(ctx context.Context, id valueobjects.EvidenceID) (*entities.RawAPIResponse, error)

	// GetByNodeID retrieves the evidence record for a model node
	GetByNodeID(ctx context.Context, nodeID valueobjects.NodeID) (*entities.RawAPIResponse, error)

	// Delete removes an evidence record (compensation only)
	Delete(ctx context.Context, id valueobjects.EvidenceID) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// EventHandler processes published domain events
type EventHandler interface {
	Handle(ctx context.Context, event events.DomainEvent) error
	CanHandle(eventType string) bool
}

// EventBus is an EventPublisher with subscription support
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for an event type
	Subscribe(eventType string, handler EventHandler) error
}
