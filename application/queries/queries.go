package queries

import (
	"github.com/go-playground/validator/v10"

	pkgerrors "loom-backend/pkg/errors"
)

var validate = validator.New()

func runValidation(q interface{}) error {
	if err := validate.Struct(q); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

// GetTreeQuery fetches a single tree with its counts.
type GetTreeQuery struct {
	TreeID string `validate:"required,uuid"`
}

// Validate checks the query fields.
func (q GetTreeQuery) Validate() error { return runValidation(q) }

// ListTreesQuery lists trees, optionally including archived ones.
type ListTreesQuery struct {
	IncludeArchived bool
}

// GetNodeQuery fetches a node by its global or local identifier.
// Exactly one of NodeID and LocalID must be set; LocalID requires TreeID.
type GetNodeQuery struct {
	NodeID  string `validate:"omitempty,uuid"`
	TreeID  string `validate:"omitempty,uuid"`
	LocalID string
}

// Validate checks the query fields.
func (q GetNodeQuery) Validate() error {
	if err := runValidation(q); err != nil {
		return err
	}
	if q.NodeID == "" && q.LocalID == "" {
		return pkgerrors.NewValidationError("either node_id or local_id is required")
	}
	if q.LocalID != "" && q.TreeID == "" {
		return pkgerrors.NewValidationError("local_id lookup requires tree_id")
	}
	return nil
}

// ListChildrenQuery lists the continuation children of a node.
type ListChildrenQuery struct {
	NodeID string `validate:"required,uuid"`
}

// Validate checks the query fields.
func (q ListChildrenQuery) Validate() error { return runValidation(q) }

// GetPathViewQuery materializes a path into its resolved node sequence.
type GetPathViewQuery struct {
	PathID string `validate:"required,uuid"`
}

// Validate checks the query fields.
func (q GetPathViewQuery) Validate() error { return runValidation(q) }

// VerifyProvenanceQuery checks the evidence chain of a model node.
type VerifyProvenanceQuery struct {
	NodeID string `validate:"required,uuid"`
}

// Validate checks the query fields.
func (q VerifyProvenanceQuery) Validate() error { return runValidation(q) }
