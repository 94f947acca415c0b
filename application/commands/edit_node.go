package commands

// EditNodeCommand creates a version node for an existing node. The
// original is never rewritten; the version is linked through editedFrom
// and joins the original's outgoing hyperedges as an alternate source.
type EditNodeCommand struct {
	NodeID        string `validate:"required,uuid"`
	EditorAgentID string `validate:"required,uuid"`
	NewContent    string `validate:"required"`
}

// Validate checks the command's fields
func (c EditNodeCommand) Validate() error {
	return runValidation(c)
}

// UpdateNodeMetadataCommand mutates the only mutable surface of a node
type UpdateNodeMetadataCommand struct {
	NodeID        string `validate:"required,uuid"`
	Bookmarked    *bool
	BookmarkLabel *string
	Pruned        *bool
	Excluded      *bool
	Summary       *string
}

// Validate checks the command's fields
func (c UpdateNodeMetadataCommand) Validate() error {
	return runValidation(c)
}

// SwitchBranchCommand replaces a path's suffix from a given position
type SwitchBranchCommand struct {
	PathID        string   `validate:"required,uuid"`
	StartPosition int      `validate:"min=1"`
	NodeIDs       []string `validate:"required,min=1,dive,uuid"`
}

// Validate checks the command's fields
func (c SwitchBranchCommand) Validate() error {
	return runValidation(c)
}

// ArchiveTreeCommand archives a tree
type ArchiveTreeCommand struct {
	TreeID string `validate:"required,uuid"`
}

// Validate checks the command's fields
func (c ArchiveTreeCommand) Validate() error {
	return runValidation(c)
}
