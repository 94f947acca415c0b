package memory

import (
	"context"
	"sync"

	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// EvidenceRepository is an in-memory ports.EvidenceRepository
type EvidenceRepository struct {
	mu     sync.RWMutex
	byID   map[string]*entities.RawAPIResponse
	byNode map[string]string
}

// NewEvidenceRepository creates an empty evidence store
func NewEvidenceRepository() *EvidenceRepository {
	return &EvidenceRepository{
		byID:   make(map[string]*entities.RawAPIResponse),
		byNode: make(map[string]string),
	}
}

func cloneEvidence(e *entities.RawAPIResponse) *entities.RawAPIResponse {
	headers := make([]byte, len(e.RawHeaders()))
	copy(headers, e.RawHeaders())
	body := make([]byte, len(e.RawBody()))
	copy(body, e.RawBody())
	return entities.ReconstructRawAPIResponse(
		e.ID(), e.NodeID(), e.Provider(),
		headers, body,
		e.RequestAt(), e.RespondedAt(), e.Latency(), e.Usage(),
	)
}

// Save stores an evidence record. Append-only: a second record for the
// same node is a conflict.
func (r *EvidenceRepository) Save(_ context.Context, evidence *entities.RawAPIResponse) error {
	if evidence == nil {
		return pkgerrors.NewValidationError("evidence cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[evidence.ID().String()]; ok {
		return pkgerrors.NewConflictError("evidence record already exists")
	}
	if _, ok := r.byNode[evidence.NodeID().String()]; ok {
		return pkgerrors.NewConflictError("node already has an evidence record")
	}
	r.byID[evidence.ID().String()] = cloneEvidence(evidence)
	r.byNode[evidence.NodeID().String()] = evidence.ID().String()
	return nil
}

// GetByID retrieves an evidence record by its ID
func (r *EvidenceRepository) GetByID(_ context.Context, id valueobjects.EvidenceID) (*entities.RawAPIResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	evidence, ok := r.byID[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("evidence")
	}
	return cloneEvidence(evidence), nil
}

// GetByNodeID retrieves the evidence record for a model node
func (r *EvidenceRepository) GetByNodeID(_ context.Context, nodeID valueobjects.NodeID) (*entities.RawAPIResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byNode[nodeID.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("evidence")
	}
	return cloneEvidence(r.byID[id]), nil
}

// Delete removes an evidence record (compensation only)
func (r *EvidenceRepository) Delete(_ context.Context, id valueobjects.EvidenceID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	evidence, ok := r.byID[id.String()]
	if !ok {
		return pkgerrors.NewNotFoundError("evidence")
	}
	delete(r.byNode, evidence.NodeID().String())
	delete(r.byID, id.String())
	return nil
}
