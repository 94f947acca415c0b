package memory

import (
	"context"
	"sort"
	"sync"

	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// TreeRepository is an in-memory ports.TreeRepository
type TreeRepository struct {
	mu    sync.RWMutex
	trees map[string]*aggregates.LoomTree
}

// NewTreeRepository creates an empty tree store
func NewTreeRepository() *TreeRepository {
	return &TreeRepository{trees: make(map[string]*aggregates.LoomTree)}
}

func cloneTree(t *aggregates.LoomTree) *aggregates.LoomTree {
	return aggregates.ReconstructLoomTree(
		t.ID(), t.RootNodeID(), t.Mode(),
		t.Title(), t.Description(), t.SystemContext(),
		t.IsArchived(), t.CreatedAt(), t.UpdatedAt(),
	)
}

// Save stores or replaces a tree
func (r *TreeRepository) Save(_ context.Context, tree *aggregates.LoomTree) error {
	if tree == nil {
		return pkgerrors.NewValidationError("tree cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trees[tree.ID().String()] = cloneTree(tree)
	return nil
}

// GetByID retrieves a tree by its ID
func (r *TreeRepository) GetByID(_ context.Context, id valueobjects.TreeID) (*aggregates.LoomTree, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tree, ok := r.trees[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("tree")
	}
	return cloneTree(tree), nil
}

// List retrieves all trees ordered by creation time
func (r *TreeRepository) List(_ context.Context) ([]*aggregates.LoomTree, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*aggregates.LoomTree, 0, len(r.trees))
	for _, tree := range r.trees {
		out = append(out, cloneTree(tree))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().Before(out[j].CreatedAt())
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

// Delete removes a tree record
func (r *TreeRepository) Delete(_ context.Context, id valueobjects.TreeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trees[id.String()]; !ok {
		return pkgerrors.NewNotFoundError("tree")
	}
	delete(r.trees, id.String())
	return nil
}
