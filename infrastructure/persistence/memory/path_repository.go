package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"loom-backend/domain/core/aggregates"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// PathRepository is an in-memory ports.PathRepository. Each sequence
// mutation loads the stored aggregate, applies the domain operation and
// swaps the result in under the write lock, so readers never observe a
// half-applied suffix.
type PathRepository struct {
	mu    sync.RWMutex
	paths map[string]*aggregates.Path
}

// NewPathRepository creates an empty path store
func NewPathRepository() *PathRepository {
	return &PathRepository{paths: make(map[string]*aggregates.Path)}
}

func clonePath(p *aggregates.Path) (*aggregates.Path, error) {
	return aggregates.ReconstructPath(
		p.ID(), p.TreeID(), p.AgentID(),
		p.Entries(), p.Selections(), p.CreatedAt(),
	)
}

// Save stores a new path
func (r *PathRepository) Save(_ context.Context, path *aggregates.Path) error {
	if path == nil {
		return pkgerrors.NewValidationError("path cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.paths[path.ID().String()]; ok {
		return pkgerrors.NewConflictError("path already exists")
	}
	clone, err := clonePath(path)
	if err != nil {
		return err
	}
	r.paths[path.ID().String()] = clone
	return nil
}

// GetByID retrieves a path by its ID
func (r *PathRepository) GetByID(_ context.Context, id valueobjects.PathID) (*aggregates.Path, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	path, ok := r.paths[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("path")
	}
	return clonePath(path)
}

// GetByTreeID retrieves all paths over a tree
func (r *PathRepository) GetByTreeID(_ context.Context, treeID valueobjects.TreeID) ([]*aggregates.Path, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*aggregates.Path
	for _, path := range r.paths {
		if path.TreeID().Equals(treeID) {
			clone, err := clonePath(path)
			if err != nil {
				return nil, err
			}
			out = append(out, clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

func (r *PathRepository) mutate(id valueobjects.PathID, fn func(*aggregates.Path) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	path, ok := r.paths[id.String()]
	if !ok {
		return pkgerrors.NewNotFoundError("path")
	}
	working, err := clonePath(path)
	if err != nil {
		return err
	}
	if err := fn(working); err != nil {
		return err
	}
	r.paths[id.String()] = working
	return nil
}

// AppendNode adds one entry at position = current length
func (r *PathRepository) AppendNode(_ context.Context, id valueobjects.PathID, nodeID valueobjects.NodeID) error {
	return r.mutate(id, func(p *aggregates.Path) error {
		return p.AppendNode(nodeID)
	})
}

// Truncate discards entries at positions >= newLength
func (r *PathRepository) Truncate(_ context.Context, id valueobjects.PathID, newLength int) error {
	return r.mutate(id, func(p *aggregates.Path) error {
		return p.Truncate(newLength)
	})
}

// ReplaceSuffix atomically swaps the suffix starting at startPosition
func (r *PathRepository) ReplaceSuffix(_ context.Context, id valueobjects.PathID, startPosition int, nodeIDs []valueobjects.NodeID) error {
	return r.mutate(id, func(p *aggregates.Path) error {
		return p.ReplaceSuffix(startPosition, nodeIDs)
	})
}

// UpsertSelection records a decision-point choice for the path
func (r *PathRepository) UpsertSelection(_ context.Context, id valueobjects.PathID, sel aggregates.PathSelection) error {
	return r.mutate(id, func(p *aggregates.Path) error {
		return p.UpsertSelection(sel)
	})
}

// DeleteSelection clears a decision-point choice
func (r *PathRepository) DeleteSelection(_ context.Context, id valueobjects.PathID, targetNodeID valueobjects.NodeID) error {
	return r.mutate(id, func(p *aggregates.Path) error {
		return p.DeleteSelection(targetNodeID)
	})
}

// Delete removes a path
func (r *PathRepository) Delete(_ context.Context, id valueobjects.PathID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.paths[id.String()]; !ok {
		return pkgerrors.NewNotFoundError("path")
	}
	delete(r.paths, id.String())
	return nil
}

// PathStateRepository is an in-memory ports.PathStateRepository
type PathStateRepository struct {
	mu     sync.RWMutex
	states map[string]*aggregates.PathState
}

// NewPathStateRepository creates an empty cursor store
func NewPathStateRepository() *PathStateRepository {
	return &PathStateRepository{states: make(map[string]*aggregates.PathState)}
}

// SetActiveNode updates the cursor, last writer wins
func (r *PathStateRepository) SetActiveNode(_ context.Context, pathID valueobjects.PathID, nodeID valueobjects.NodeID, mode aggregates.TreeMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[pathID.String()]
	if !ok {
		state = &aggregates.PathState{}
		r.states[pathID.String()] = state
	}
	state.ActiveNodeID = nodeID
	if mode != "" {
		if state.PerMode == nil {
			state.PerMode = make(map[aggregates.TreeMode]valueobjects.NodeID)
		}
		state.PerMode[mode] = nodeID
	}
	state.UpdatedAt = time.Now().UTC()
	return nil
}

// Get retrieves the cursor for a path
func (r *PathStateRepository) Get(_ context.Context, pathID valueobjects.PathID) (*aggregates.PathState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[pathID.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("path state")
	}
	copied := &aggregates.PathState{
		ActiveNodeID: state.ActiveNodeID,
		UpdatedAt:    state.UpdatedAt,
	}
	if state.PerMode != nil {
		copied.PerMode = make(map[aggregates.TreeMode]valueobjects.NodeID, len(state.PerMode))
		for k, v := range state.PerMode {
			copied.PerMode[k] = v
		}
	}
	return copied, nil
}

// Delete removes the cursor for a path
func (r *PathStateRepository) Delete(_ context.Context, pathID valueobjects.PathID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, pathID.String())
	return nil
}
