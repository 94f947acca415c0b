package aggregates

import (
	"time"

	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/events"
	pkgerrors "loom-backend/pkg/errors"
)

// TreeMode selects how a tree is presented and traversed
type TreeMode string

const (
	ModeDialogue TreeMode = "dialogue"
	ModeBuffer   TreeMode = "buffer"
)

// LoomTree is the aggregate root for a branching conversation/document.
// It references exactly one root node; the root node must exist before
// the tree record is created.
type LoomTree struct {
	id            valueobjects.TreeID
	rootNodeID    valueobjects.NodeID
	mode          TreeMode
	title         string
	description   string
	systemContext string
	archived      bool
	createdAt     time.Time
	updatedAt     time.Time

	uncommitted []events.DomainEvent
}

// NewLoomTree creates a tree referencing an already-created root node
func NewLoomTree(id valueobjects.TreeID, rootNodeID valueobjects.NodeID, mode TreeMode, title, description, systemContext string) (*LoomTree, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("treeID cannot be empty")
	}
	if rootNodeID.IsZero() {
		return nil, pkgerrors.NewValidationError("rootNodeID cannot be empty")
	}
	if mode != ModeDialogue && mode != ModeBuffer {
		return nil, pkgerrors.NewValidationError("unknown tree mode")
	}
	if title == "" {
		return nil, pkgerrors.NewValidationError("title cannot be empty")
	}

	now := time.Now().UTC()
	return &LoomTree{
		id:            id,
		rootNodeID:    rootNodeID,
		mode:          mode,
		title:         title,
		description:   description,
		systemContext: systemContext,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructLoomTree rebuilds a tree from repository data
func ReconstructLoomTree(
	id valueobjects.TreeID,
	rootNodeID valueobjects.NodeID,
	mode TreeMode,
	title, description, systemContext string,
	archived bool,
	createdAt, updatedAt time.Time,
) *LoomTree {
	return &LoomTree{
		id:            id,
		rootNodeID:    rootNodeID,
		mode:          mode,
		title:         title,
		description:   description,
		systemContext: systemContext,
		archived:      archived,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// ID returns the tree identifier
func (t *LoomTree) ID() valueobjects.TreeID { return t.id }

// RootNodeID returns the single root node
func (t *LoomTree) RootNodeID() valueobjects.NodeID { return t.rootNodeID }

// Mode returns the tree mode
func (t *LoomTree) Mode() TreeMode { return t.mode }

// Title returns the tree title
func (t *LoomTree) Title() string { return t.title }

// Description returns the tree description
func (t *LoomTree) Description() string { return t.description }

// SystemContext returns the system prompt context attached to the tree
func (t *LoomTree) SystemContext() string { return t.systemContext }

// IsArchived reports whether the tree has been archived
func (t *LoomTree) IsArchived() bool { return t.archived }

// CreatedAt returns when the tree was created
func (t *LoomTree) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns when the tree record last changed
func (t *LoomTree) UpdatedAt() time.Time { return t.updatedAt }

// UpdateDetails changes title/description/system context
func (t *LoomTree) UpdateDetails(title, description, systemContext string) error {
	if t.archived {
		return pkgerrors.NewInvalidStateError("cannot update an archived tree")
	}
	if title == "" {
		return pkgerrors.NewValidationError("title cannot be empty")
	}
	t.title = title
	t.description = description
	t.systemContext = systemContext
	t.updatedAt = time.Now().UTC()
	return nil
}

// Archive archives the tree. Archiving twice is an invalid state
// transition, not a no-op.
func (t *LoomTree) Archive() error {
	if t.archived {
		return pkgerrors.NewInvalidStateError("tree is already archived")
	}
	t.archived = true
	t.updatedAt = time.Now().UTC()
	t.addEvent(events.NewTreeArchived(t.id.String(), t.updatedAt))
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (t *LoomTree) GetUncommittedEvents() []events.DomainEvent { return t.uncommitted }

// MarkEventsAsCommitted clears the uncommitted events
func (t *LoomTree) MarkEventsAsCommitted() { t.uncommitted = nil }

func (t *LoomTree) addEvent(event events.DomainEvent) {
	t.uncommitted = append(t.uncommitted, event)
}
