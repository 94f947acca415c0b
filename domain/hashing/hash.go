// Package hashing computes and verifies the content-addressed hashes that
// bind every node to its content, lineage and, for model nodes, the raw
// API evidence of the call that produced it. Everything here is pure: no
// I/O, no clock reads, identical inputs always yield identical digests.
// Digests computed on different devices must be comparable, so the
// canonical serialization and field layout are a wire contract.
package hashing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"loom-backend/domain/core/valueobjects"
)

// fieldSeparator joins hash payload fields. The ASCII unit separator can
// never occur in canonical JSON, timestamps, UUIDs or hex digests, which
// rules out field-boundary collision attacks.
const fieldSeparator = "\x1f"

// CanonicalJSON encodes a value deterministically: object keys are sorted
// recursively at every nesting level, array element order is preserved.
func CanonicalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyJSON)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		encoded, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	default:
		return fmt.Errorf("canonical serialization does not support type %T", v)
	}
	return nil
}

// HashRawResponse returns the SHA-256 hex digest of a provider response's
// verbatim bytes, headers concatenated with body, exactly as captured
// before any parsing.
func HashRawResponse(rawHeaders, rawBody []byte) string {
	h := sha256.New()
	h.Write(rawHeaders)
	h.Write(rawBody)
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeHumanContentHash computes the content hash for a human-authored
// node from its content, sorted parent hashes, creation time and author.
func ComputeHumanContentHash(
	content valueobjects.NodeContent,
	parentHashes []string,
	createdAt time.Time,
	authorAgentID valueobjects.AgentID,
) (valueobjects.ContentHash, error) {
	return computeContentHash(content, parentHashes, createdAt, authorAgentID, "")
}

// ComputeModelContentHash computes the content hash for a model-authored
// node. It additionally binds the digest of the raw API response bytes,
// giving the node tamper-evident provenance.
func ComputeModelContentHash(
	content valueobjects.NodeContent,
	parentHashes []string,
	createdAt time.Time,
	authorAgentID valueobjects.AgentID,
	rawResponseHash string,
) (valueobjects.ContentHash, error) {
	if rawResponseHash == "" {
		return valueobjects.ContentHash{}, fmt.Errorf("model content hash requires a raw response hash")
	}
	return computeContentHash(content, parentHashes, createdAt, authorAgentID, rawResponseHash)
}

func computeContentHash(
	content valueobjects.NodeContent,
	parentHashes []string,
	createdAt time.Time,
	authorAgentID valueobjects.AgentID,
	rawResponseHash string,
) (valueobjects.ContentHash, error) {
	canonical, err := CanonicalJSON(content.CanonicalMap())
	if err != nil {
		return valueobjects.ContentHash{}, err
	}

	sorted := make([]string, len(parentHashes))
	copy(sorted, parentHashes)
	sort.Strings(sorted)

	fields := []string{
		string(canonical),
		strings.Join(sorted, ","),
		createdAt.UTC().Format(time.RFC3339Nano),
		authorAgentID.String(),
	}
	if rawResponseHash != "" {
		fields = append(fields, rawResponseHash)
	}

	digest := sha256.Sum256([]byte(strings.Join(fields, fieldSeparator)))
	return valueobjects.NewContentHashFromString(hex.EncodeToString(digest[:]))
}
