package valueobjects

import (
	"errors"
)

// ContentHash is a SHA-256 digest binding a node's content, lineage and,
// for model nodes, its API evidence. Stored as lowercase hex.
type ContentHash struct {
	value string
}

// NewContentHashFromString creates a ContentHash from a hex digest string
func NewContentHashFromString(hash string) (ContentHash, error) {
	if len(hash) != 64 {
		return ContentHash{}, errors.New("content hash must be a 64-character hex digest")
	}
	for _, r := range hash {
		if !isHexDigit(r) {
			return ContentHash{}, errors.New("content hash must be lowercase hex")
		}
	}
	return ContentHash{value: hash}, nil
}

// String returns the hex digest
func (h ContentHash) String() string { return h.value }

// Equals checks if two hashes are equal
func (h ContentHash) Equals(other ContentHash) bool { return h.value == other.value }

// IsZero checks if the hash is the zero value
func (h ContentHash) IsZero() bool { return h.value == "" }

// MarshalJSON implements json.Marshaler
func (h ContentHash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (h *ContentHash) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("ContentHash must be a string")
	}
	h.value = string(data[1 : len(data)-1])
	return nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}
