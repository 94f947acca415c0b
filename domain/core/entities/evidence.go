package entities

import (
	"time"

	"loom-backend/domain/core/valueobjects"
	pkgerrors "loom-backend/pkg/errors"
)

// TokenUsage records provider-reported token counts for one completion
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RawAPIResponse is the append-only evidence record for one model-authored
// node: the provider's response captured verbatim, headers and body,
// before any parsing. Exactly one exists per model node and it is never
// mutated after creation; the provenance verifier recomputes hashes from
// these bytes.
type RawAPIResponse struct {
	id          valueobjects.EvidenceID
	nodeID      valueobjects.NodeID
	provider    string
	rawHeaders  []byte
	rawBody     []byte
	requestAt   time.Time
	respondedAt time.Time
	latency     time.Duration
	usage       TokenUsage
}

// NewRawAPIResponseParams collects the attributes of an evidence record
type NewRawAPIResponseParams struct {
	NodeID      valueobjects.NodeID
	Provider    string
	RawHeaders  []byte
	RawBody     []byte
	RequestAt   time.Time
	RespondedAt time.Time
	Latency     time.Duration
	Usage       TokenUsage
}

// NewRawAPIResponse creates an evidence record with validation
func NewRawAPIResponse(p NewRawAPIResponseParams) (*RawAPIResponse, error) {
	if p.NodeID.IsZero() {
		return nil, pkgerrors.NewValidationError("evidence nodeID cannot be empty")
	}
	if p.Provider == "" {
		return nil, pkgerrors.NewValidationError("evidence provider cannot be empty")
	}
	if len(p.RawBody) == 0 {
		return nil, pkgerrors.NewValidationError("evidence raw body cannot be empty")
	}
	return &RawAPIResponse{
		id:          valueobjects.NewEvidenceID(),
		nodeID:      p.NodeID,
		provider:    p.Provider,
		rawHeaders:  p.RawHeaders,
		rawBody:     p.RawBody,
		requestAt:   p.RequestAt,
		respondedAt: p.RespondedAt,
		latency:     p.Latency,
		usage:       p.Usage,
	}, nil
}

// ReconstructRawAPIResponse rebuilds an evidence record from repository data
func ReconstructRawAPIResponse(
	id valueobjects.EvidenceID,
	nodeID valueobjects.NodeID,
	provider string,
	rawHeaders, rawBody []byte,
	requestAt, respondedAt time.Time,
	latency time.Duration,
	usage TokenUsage,
) *RawAPIResponse {
	return &RawAPIResponse{
		id:          id,
		nodeID:      nodeID,
		provider:    provider,
		rawHeaders:  rawHeaders,
		rawBody:     rawBody,
		requestAt:   requestAt,
		respondedAt: respondedAt,
		latency:     latency,
		usage:       usage,
	}
}

// ID returns the evidence identifier
func (r *RawAPIResponse) ID() valueobjects.EvidenceID { return r.id }

// NodeID returns the model node this evidence belongs to
func (r *RawAPIResponse) NodeID() valueobjects.NodeID { return r.nodeID }

// Provider returns the provider name
func (r *RawAPIResponse) Provider() string { return r.provider }

// RawHeaders returns the verbatim response headers
func (r *RawAPIResponse) RawHeaders() []byte { return r.rawHeaders }

// RawBody returns the verbatim response body
func (r *RawAPIResponse) RawBody() []byte { return r.rawBody }

// RequestAt returns when the request was sent
func (r *RawAPIResponse) RequestAt() time.Time { return r.requestAt }

// RespondedAt returns when the response completed
func (r *RawAPIResponse) RespondedAt() time.Time { return r.respondedAt }

// Latency returns the request round-trip duration
func (r *RawAPIResponse) Latency() time.Duration { return r.latency }

// Usage returns the provider-reported token usage
func (r *RawAPIResponse) Usage() TokenUsage { return r.usage }
