package handlers

import (
	"context"

	"go.uber.org/zap"

	"loom-backend/application/queries"
	"loom-backend/application/services"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// VerifyProvenanceHandler runs provenance verification as a read query
type VerifyProvenanceHandler struct {
	provenance *services.ProvenanceService
	logger     *zap.Logger
}

// NewVerifyProvenanceHandler creates a new provenance query handler
func NewVerifyProvenanceHandler(provenance *services.ProvenanceService, logger *zap.Logger) *VerifyProvenanceHandler {
	return &VerifyProvenanceHandler{provenance: provenance, logger: logger}
}

// Handle recomputes the hash chain of a model node and reports the outcome.
// Verification never mutates anything; a failed check is a report, not an
// error, so mismatches come back in the result.
func (h *VerifyProvenanceHandler) Handle(ctx context.Context, query queries.VerifyProvenanceQuery) (*services.ProvenanceReport, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	nodeID, err := valueobjects.NewNodeIDFromString(query.NodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid node id: " + err.Error())
	}

	report, err := h.provenance.VerifyModelNodeProvenance(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if !report.IsValid {
		h.logger.Warn("provenance verification failed",
			zap.String("nodeId", query.NodeID),
			zap.String("status", string(report.Status)))
	}
	return report, nil
}
