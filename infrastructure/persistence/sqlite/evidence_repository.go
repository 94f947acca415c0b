package sqlite

import (
	"context"
	"database/sql"
	"time"

	"loom-backend/domain/core/entities"
	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// EvidenceRepository is a SQLite-backed ports.EvidenceRepository.
// Append-only: there is no update statement anywhere in this file.
type EvidenceRepository struct {
	db *sql.DB
}

// NewEvidenceRepository creates an evidence repository over db
func NewEvidenceRepository(db *sql.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Save stores an evidence record; a duplicate per node is a conflict
func (r *EvidenceRepository) Save(ctx context.Context, evidence *entities.RawAPIResponse) error {
	usage := evidence.Usage()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO evidence (id, node_id, provider, raw_headers, raw_body,
			request_at, responded_at, latency_ns,
			prompt_tokens, completion_tokens, total_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evidence.ID().String(), evidence.NodeID().String(), evidence.Provider(),
		evidence.RawHeaders(), evidence.RawBody(),
		encodeTime(evidence.RequestAt()), encodeTime(evidence.RespondedAt()),
		evidence.Latency().Nanoseconds(),
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.NewConflictError("node already has an evidence record")
		}
		return pkgerrors.NewDatabaseError("save evidence", err)
	}
	return nil
}

func scanEvidence(row interface{ Scan(...interface{}) error }) (*entities.RawAPIResponse, error) {
	var (
		id, nodeID, provider   string
		rawHeaders, rawBody    []byte
		requestAt, respondedAt string
		latencyNs              int64
		usage                  entities.TokenUsage
	)
	err := row.Scan(&id, &nodeID, &provider, &rawHeaders, &rawBody,
		&requestAt, &respondedAt, &latencyNs,
		&usage.PromptTokens, &usage.CompletionTokens, &usage.TotalTokens)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.NewNotFoundError("evidence")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("scan evidence", err)
	}

	evidenceID, err := valueobjects.NewEvidenceIDFromString(id)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode evidence id", err)
	}
	nID, err := valueobjects.NewNodeIDFromString(nodeID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode node id", err)
	}
	reqAt, err := decodeTime(requestAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode request_at", err)
	}
	respAt, err := decodeTime(respondedAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode responded_at", err)
	}

	return entities.ReconstructRawAPIResponse(evidenceID, nID, provider,
		rawHeaders, rawBody, reqAt, respAt, time.Duration(latencyNs), usage), nil
}

const evidenceColumns = `id, node_id, provider, raw_headers, raw_body,
	request_at, responded_at, latency_ns,
	prompt_tokens, completion_tokens, total_tokens`

// GetByID retrieves an evidence record by its ID
func (r *EvidenceRepository) GetByID(ctx context.Context, id valueobjects.EvidenceID) (*entities.RawAPIResponse, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+evidenceColumns+` FROM evidence WHERE id = ?`, id.String())
	return scanEvidence(row)
}

// GetByNodeID retrieves the evidence record for a model node
func (r *EvidenceRepository) GetByNodeID(ctx context.Context, nodeID valueobjects.NodeID) (*entities.RawAPIResponse, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+evidenceColumns+` FROM evidence WHERE node_id = ?`, nodeID.String())
	return scanEvidence(row)
}

// Delete removes an evidence record (compensation only)
func (r *EvidenceRepository) Delete(ctx context.Context, id valueobjects.EvidenceID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM evidence WHERE id = ?`, id.String())
	if err != nil {
		return pkgerrors.NewDatabaseError("delete evidence", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.NewNotFoundError("evidence")
	}
	return nil
}
