package queries

import "time"

// TreeView is the read model for a loom tree
type TreeView struct {
	ID            string    `json:"id"`
	RootNodeID    string    `json:"root_node_id"`
	Mode          string    `json:"mode"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	SystemContext string    `json:"system_context,omitempty"`
	Archived      bool      `json:"archived"`
	NodeCount     int       `json:"node_count"`
	EdgeCount     int       `json:"edge_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// NodeView is the read model for a node
type NodeView struct {
	ID            string    `json:"id"`
	TreeID        string    `json:"tree_id"`
	LocalID       string    `json:"local_id"`
	Content       string    `json:"content"`
	ContentKind   string    `json:"content_kind"`
	AuthorAgentID string    `json:"author_agent_id"`
	AuthorType    string    `json:"author_type"`
	ContentHash   string    `json:"content_hash"`
	CreatedAt     time.Time `json:"created_at"`
	EditedFrom    string    `json:"edited_from,omitempty"`
	Bookmarked    bool      `json:"bookmarked"`
	BookmarkLabel string    `json:"bookmark_label,omitempty"`
	Pruned        bool      `json:"pruned"`
	Excluded      bool      `json:"excluded"`
	Summary       string    `json:"summary,omitempty"`
}

// PathEntryView is one resolved entry of a materialized path
type PathEntryView struct {
	Position int      `json:"position"`
	Node     NodeView `json:"node"`
}

// PathView is the read model for a path: the fully resolved linear view
// through the branching structure
type PathView struct {
	ID           string          `json:"id"`
	TreeID       string          `json:"tree_id"`
	AgentID      string          `json:"agent_id"`
	ActiveNodeID string          `json:"active_node_id,omitempty"`
	Length       int             `json:"length"`
	Entries      []PathEntryView `json:"entries"`
}
