package services

import (
	"context"

	"go.uber.org/zap"

	"loom-backend/application/ports"
	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	"loom-backend/domain/hashing"
	pkgerrors "loom-backend/pkg/errors"
)

// ProvenanceStatus is the outcome of a verification run
type ProvenanceStatus string

const (
	ProvenanceValid             ProvenanceStatus = "valid"
	ProvenanceNodeNotFound      ProvenanceStatus = "nodeNotFound"
	ProvenanceNotModelNode      ProvenanceStatus = "notModelNode"
	ProvenanceMissingEvidence   ProvenanceStatus = "missingRawApiResponse"
	ProvenanceMissingParentNode ProvenanceStatus = "missingParentNode"
	ProvenanceHashMismatch      ProvenanceStatus = "hashMismatch"
)

// ProvenanceReport carries the verification outcome and diagnostics
type ProvenanceReport struct {
	NodeID         valueobjects.NodeID `json:"node_id"`
	IsValid        bool                `json:"is_valid"`
	Status         ProvenanceStatus    `json:"status"`
	ExpectedHash   string              `json:"expected_hash,omitempty"`
	StoredHash     string              `json:"stored_hash,omitempty"`
	MissingParents []string            `json:"missing_parents,omitempty"`
}

// ProvenanceService recomputes and compares content hashes against stored
// evidence. Purely diagnostic: it performs no writes. The turn
// orchestrator invokes it synchronously before a model node may join a
// durable path.
type ProvenanceService struct {
	nodes    ports.NodeRepository
	edges    ports.EdgeRepository
	evidence ports.EvidenceRepository
	logger   *zap.Logger
}

// NewProvenanceService creates a provenance verifier
func NewProvenanceService(
	nodes ports.NodeRepository,
	edges ports.EdgeRepository,
	evidence ports.EvidenceRepository,
	logger *zap.Logger,
) *ProvenanceService {
	return &ProvenanceService{
		nodes:    nodes,
		edges:    edges,
		evidence: evidence,
		logger:   logger,
	}
}

// VerifyModelNodeProvenance recomputes the expected content hash for a
// model node from its stored content, resolved parent hashes and raw API
// evidence, and compares it to the stored hash. Any alteration of
// content, evidence or declared parentage changes the recomputed value
// and is detected deterministically.
func (s *ProvenanceService) VerifyModelNodeProvenance(ctx context.Context, nodeID valueobjects.NodeID) (*ProvenanceReport, error) {
	report := &ProvenanceReport{NodeID: nodeID}

	node, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			report.Status = ProvenanceNodeNotFound
			return report, nil
		}
		return nil, err
	}

	if !node.IsModelAuthored() {
		report.Status = ProvenanceNotModelNode
		return report, nil
	}

	evidence, err := s.evidence.GetByNodeID(ctx, nodeID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			report.Status = ProvenanceMissingEvidence
			return report, nil
		}
		return nil, err
	}

	parentHashes, missing, err := s.resolveParentHashes(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		report.Status = ProvenanceMissingParentNode
		report.MissingParents = missing
		return report, nil
	}

	rawResponseHash := hashing.HashRawResponse(evidence.RawHeaders(), evidence.RawBody())
	expected, err := hashing.ComputeModelContentHash(
		node.Content(),
		parentHashes,
		node.CreatedAt(),
		node.AuthorAgentID(),
		rawResponseHash,
	)
	if err != nil {
		return nil, err
	}

	report.ExpectedHash = expected.String()
	report.StoredHash = node.ContentHash().String()

	if !expected.Equals(node.ContentHash()) {
		report.Status = ProvenanceHashMismatch
		s.logger.Warn("provenance hash mismatch",
			zap.String("node_id", nodeID.String()),
			zap.String("expected", report.ExpectedHash),
			zap.String("stored", report.StoredHash),
		)
		return report, nil
	}

	report.IsValid = true
	report.Status = ProvenanceValid
	return report, nil
}

// resolveParentHashes flattens all incoming continuation edge sources to
// recover candidate parents, and resolves each to its stored hash
func (s *ProvenanceService) resolveParentHashes(ctx context.Context, nodeID valueobjects.NodeID) ([]string, []string, error) {
	incoming, err := s.edges.GetByTargetID(ctx, nodeID)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool)
	var hashes []string
	var missing []string
	for _, edge := range incoming {
		if edge.Type() != entities.EdgeTypeContinuation {
			continue
		}
		for _, src := range edge.Sources() {
			key := src.NodeID.String()
			if seen[key] {
				continue
			}
			seen[key] = true

			parent, err := s.nodes.GetByID(ctx, src.NodeID)
			if err != nil {
				if pkgerrors.IsNotFound(err) {
					missing = append(missing, key)
					continue
				}
				return nil, nil, err
			}
			hashes = append(hashes, parent.ContentHash().String())
		}
	}
	return hashes, missing, nil
}
