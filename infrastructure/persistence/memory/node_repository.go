// Package memory provides mutex-guarded in-memory implementations of the
// persistence ports. They back tests and the default development wiring;
// every read returns a copy so callers never share aggregate state with
// the store.
package memory

import (
	"context"
	"sort"
	"sync"

	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// NodeRepository is an in-memory ports.NodeRepository
type NodeRepository struct {
	mu    sync.RWMutex
	nodes map[string]*entities.Node
}

// NewNodeRepository creates an empty node store
func NewNodeRepository() *NodeRepository {
	return &NodeRepository{nodes: make(map[string]*entities.Node)}
}

func cloneNode(n *entities.Node) *entities.Node {
	var editedFrom *valueobjects.NodeID
	if f := n.EditedFrom(); f != nil {
		v := *f
		editedFrom = &v
	}
	return entities.ReconstructNode(
		n.ID(), n.TreeID(), n.LocalID(), n.Content(),
		n.AuthorAgentID(), n.AuthorType(), n.ContentHash(),
		n.CreatedAt(), editedFrom, n.Metadata(), n.Summary(),
	)
}

// Save stores or replaces a node
func (r *NodeRepository) Save(_ context.Context, node *entities.Node) error {
	if node == nil {
		return pkgerrors.NewValidationError("node cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[node.ID().String()] = cloneNode(node)
	return nil
}

// GetByID retrieves a node by its ID
func (r *NodeRepository) GetByID(_ context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.nodes[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	return cloneNode(node), nil
}

// GetByTreeID retrieves all nodes of a tree ordered by creation time
func (r *NodeRepository) GetByTreeID(_ context.Context, treeID valueobjects.TreeID) ([]*entities.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Node
	for _, node := range r.nodes {
		if node.TreeID().Equals(treeID) {
			out = append(out, cloneNode(node))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().Before(out[j].CreatedAt())
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

// GetByLocalID resolves a short tree-unique identifier
func (r *NodeRepository) GetByLocalID(_ context.Context, treeID valueobjects.TreeID, localID string) (*entities.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, node := range r.nodes {
		if node.TreeID().Equals(treeID) && node.LocalID() == localID {
			return cloneNode(node), nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("node")
}

// ExistsLocalID reports whether a localID is taken within a tree
func (r *NodeRepository) ExistsLocalID(_ context.Context, treeID valueobjects.TreeID, localID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, node := range r.nodes {
		if node.TreeID().Equals(treeID) && node.LocalID() == localID {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes a node
func (r *NodeRepository) Delete(_ context.Context, id valueobjects.NodeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[id.String()]; !ok {
		return pkgerrors.NewNotFoundError("node")
	}
	delete(r.nodes, id.String())
	return nil
}
