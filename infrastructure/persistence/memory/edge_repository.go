package memory

import (
	"context"
	"sort"
	"sync"

	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// EdgeRepository is an in-memory ports.EdgeRepository
type EdgeRepository struct {
	mu    sync.RWMutex
	edges map[string]*entities.Edge
}

// NewEdgeRepository creates an empty edge store
func NewEdgeRepository() *EdgeRepository {
	return &EdgeRepository{edges: make(map[string]*entities.Edge)}
}

func cloneEdge(e *entities.Edge) *entities.Edge {
	return entities.ReconstructEdge(e.ID(), e.TreeID(), e.Sources(), e.TargetID(), e.Type())
}

func sortEdgesByID(edges []*entities.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].ID().String() < edges[j].ID().String()
	})
}

// Save stores or replaces an edge
func (r *EdgeRepository) Save(_ context.Context, edge *entities.Edge) error {
	if edge == nil {
		return pkgerrors.NewValidationError("edge cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges[edge.ID().String()] = cloneEdge(edge)
	return nil
}

// GetByID retrieves an edge by its ID
func (r *EdgeRepository) GetByID(_ context.Context, id valueobjects.EdgeID) (*entities.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	edge, ok := r.edges[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	return cloneEdge(edge), nil
}

// GetByTargetID retrieves the edges converging on a node
func (r *EdgeRepository) GetByTargetID(_ context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Edge
	for _, edge := range r.edges {
		if edge.TargetID().Equals(nodeID) {
			out = append(out, cloneEdge(edge))
		}
	}
	sortEdgesByID(out)
	return out, nil
}

// GetBySourceID retrieves the edges that list a node among their sources
func (r *EdgeRepository) GetBySourceID(_ context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Edge
	for _, edge := range r.edges {
		if edge.HasSource(nodeID) {
			out = append(out, cloneEdge(edge))
		}
	}
	sortEdgesByID(out)
	return out, nil
}

// GetByTreeID retrieves all edges of a tree
func (r *EdgeRepository) GetByTreeID(_ context.Context, treeID valueobjects.TreeID) ([]*entities.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entities.Edge
	for _, edge := range r.edges {
		if edge.TreeID().Equals(treeID) {
			out = append(out, cloneEdge(edge))
		}
	}
	sortEdgesByID(out)
	return out, nil
}

// Delete removes an edge
func (r *EdgeRepository) Delete(_ context.Context, id valueobjects.EdgeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.edges[id.String()]; !ok {
		return pkgerrors.NewNotFoundError("edge")
	}
	delete(r.edges, id.String())
	return nil
}
