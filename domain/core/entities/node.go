package entities

import (
	"fmt"
	"time"

	"loom-backend/domain/config"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// AuthorType distinguishes who produced a node's content
type AuthorType string

const (
	AuthorHuman AuthorType = "human"
	AuthorModel AuthorType = "model"
)

// NodeMetadata is the only mutable surface of a node
type NodeMetadata struct {
	Bookmarked    bool
	BookmarkLabel string
	Pruned        bool
	Excluded      bool
}

// Node is an immutable unit of content in a loom tree. Content, hash,
// author and creation time are write-once; only metadata and summary may
// change after creation. Edits never touch a node: they create a new
// version node whose editedFrom points back here.
type Node struct {
	id            valueobjects.NodeID
	treeID        valueobjects.TreeID
	localID       string
	content       valueobjects.NodeContent
	authorAgentID valueobjects.AgentID
	authorType    AuthorType
	contentHash   valueobjects.ContentHash
	createdAt     time.Time
	editedFrom    *valueobjects.NodeID
	metadata      NodeMetadata
	summary       string
}

// NewNodeParams collects the write-once attributes for node construction
type NewNodeParams struct {
	ID            valueobjects.NodeID
	TreeID        valueobjects.TreeID
	LocalID       string
	Content       valueobjects.NodeContent
	AuthorAgentID valueobjects.AgentID
	AuthorType    AuthorType
	ContentHash   valueobjects.ContentHash
	CreatedAt     time.Time
	EditedFrom    *valueobjects.NodeID
}

// NewNode creates a node with full business rule validation
func NewNode(p NewNodeParams) (*Node, error) {
	if p.TreeID.IsZero() {
		return nil, pkgerrors.NewValidationError("treeID cannot be empty")
	}
	if p.AuthorAgentID.IsZero() {
		return nil, pkgerrors.NewValidationError("authorAgentID cannot be empty")
	}
	if p.AuthorType != AuthorHuman && p.AuthorType != AuthorModel {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown author type %q", p.AuthorType))
	}
	if p.Content.IsEmpty() {
		return nil, pkgerrors.NewValidationError("content cannot be empty")
	}
	if p.ContentHash.IsZero() {
		return nil, pkgerrors.NewValidationError("contentHash cannot be empty")
	}
	if p.LocalID == "" {
		return nil, pkgerrors.NewValidationError("localID cannot be empty")
	}

	id := p.ID
	if id.IsZero() {
		id = valueobjects.NewNodeID()
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return &Node{
		id:            id,
		treeID:        p.TreeID,
		localID:       p.LocalID,
		content:       p.Content,
		authorAgentID: p.AuthorAgentID,
		authorType:    p.AuthorType,
		contentHash:   p.ContentHash,
		createdAt:     createdAt,
		editedFrom:    p.EditedFrom,
	}, nil
}

// ReconstructNode rebuilds a node from repository data
func ReconstructNode(
	id valueobjects.NodeID,
	treeID valueobjects.TreeID,
	localID string,
	content valueobjects.NodeContent,
	authorAgentID valueobjects.AgentID,
	authorType AuthorType,
	contentHash valueobjects.ContentHash,
	createdAt time.Time,
	editedFrom *valueobjects.NodeID,
	metadata NodeMetadata,
	summary string,
) *Node {
	return &Node{
		id:            id,
		treeID:        treeID,
		localID:       localID,
		content:       content,
		authorAgentID: authorAgentID,
		authorType:    authorType,
		contentHash:   contentHash,
		createdAt:     createdAt,
		editedFrom:    editedFrom,
		metadata:      metadata,
		summary:       summary,
	}
}

// ID returns the node's unique identifier
func (n *Node) ID() valueobjects.NodeID { return n.id }

// TreeID returns the tree this node belongs to
func (n *Node) TreeID() valueobjects.TreeID { return n.treeID }

// LocalID returns the short tree-unique identifier
func (n *Node) LocalID() string { return n.localID }

// Content returns the node's content
func (n *Node) Content() valueobjects.NodeContent { return n.content }

// AuthorAgentID returns the authoring agent
func (n *Node) AuthorAgentID() valueobjects.AgentID { return n.authorAgentID }

// AuthorType returns whether a human or a model authored this node
func (n *Node) AuthorType() AuthorType { return n.authorType }

// ContentHash returns the stored content hash
func (n *Node) ContentHash() valueobjects.ContentHash { return n.contentHash }

// CreatedAt returns when the node was created
func (n *Node) CreatedAt() time.Time { return n.createdAt }

// EditedFrom returns the node this one was derived from, if any
func (n *Node) EditedFrom() *valueobjects.NodeID { return n.editedFrom }

// Metadata returns the mutable metadata
func (n *Node) Metadata() NodeMetadata { return n.metadata }

// Summary returns the optional summary
func (n *Node) Summary() string { return n.summary }

// IsModelAuthored reports whether the node was produced by a model
func (n *Node) IsModelAuthored() bool { return n.authorType == AuthorModel }

// Bookmark marks the node with an optional label
func (n *Node) Bookmark(label string) error {
	return n.BookmarkWithConfig(label, config.DefaultDomainConfig())
}

// BookmarkWithConfig marks the node with an optional label and configuration
func (n *Node) BookmarkWithConfig(label string, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if len(label) > cfg.MaxBookmarkLabelLength {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("bookmark label exceeds maximum length of %d", cfg.MaxBookmarkLabelLength))
	}
	n.metadata.Bookmarked = true
	n.metadata.BookmarkLabel = label
	return nil
}

// ClearBookmark removes the bookmark
func (n *Node) ClearBookmark() {
	n.metadata.Bookmarked = false
	n.metadata.BookmarkLabel = ""
}

// SetPruned marks or unmarks the node as pruned
func (n *Node) SetPruned(pruned bool) { n.metadata.Pruned = pruned }

// SetExcluded marks or unmarks the node as excluded from model context
func (n *Node) SetExcluded(excluded bool) { n.metadata.Excluded = excluded }

// SetSummary sets the optional summary
func (n *Node) SetSummary(summary string) error {
	cfg := config.DefaultDomainConfig()
	if len(summary) > cfg.MaxSummaryLength {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("summary exceeds maximum length of %d", cfg.MaxSummaryLength))
	}
	n.summary = summary
	return nil
}
