package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// The engine addresses every entity by a UUID value object. Value objects
// are immutable and have no identity beyond their value.

// NodeID identifies a node
type NodeID struct{ value string }

// EdgeID identifies an edge
type EdgeID struct{ value string }

// TreeID identifies a loom tree
type TreeID struct{ value string }

// PathID identifies a path
type PathID struct{ value string }

// AgentID identifies an agent
type AgentID struct{ value string }

// EvidenceID identifies a raw API response record
type EvidenceID struct{ value string }

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID { return NodeID{value: uuid.New().String()} }

// NewEdgeID creates a new random EdgeID
func NewEdgeID() EdgeID { return EdgeID{value: uuid.New().String()} }

// NewTreeID creates a new random TreeID
func NewTreeID() TreeID { return TreeID{value: uuid.New().String()} }

// NewPathID creates a new random PathID
func NewPathID() PathID { return PathID{value: uuid.New().String()} }

// NewAgentID creates a new random AgentID
func NewAgentID() AgentID { return AgentID{value: uuid.New().String()} }

// NewEvidenceID creates a new random EvidenceID
func NewEvidenceID() EvidenceID { return EvidenceID{value: uuid.New().String()} }

func parseID(id string) (string, error) {
	if id == "" {
		return "", errors.New("identifier cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.New("identifier must be a valid UUID")
	}
	return id, nil
}

// NewNodeIDFromString creates a NodeID from an existing string
func NewNodeIDFromString(id string) (NodeID, error) {
	v, err := parseID(id)
	return NodeID{value: v}, err
}

// NewEdgeIDFromString creates an EdgeID from an existing string
func NewEdgeIDFromString(id string) (EdgeID, error) {
	v, err := parseID(id)
	return EdgeID{value: v}, err
}

// NewTreeIDFromString creates a TreeID from an existing string
func NewTreeIDFromString(id string) (TreeID, error) {
	v, err := parseID(id)
	return TreeID{value: v}, err
}

// NewPathIDFromString creates a PathID from an existing string
func NewPathIDFromString(id string) (PathID, error) {
	v, err := parseID(id)
	return PathID{value: v}, err
}

// NewAgentIDFromString creates an AgentID from an existing string
func NewAgentIDFromString(id string) (AgentID, error) {
	v, err := parseID(id)
	return AgentID{value: v}, err
}

// NewEvidenceIDFromString creates an EvidenceID from an existing string
func NewEvidenceIDFromString(id string) (EvidenceID, error) {
	v, err := parseID(id)
	return EvidenceID{value: v}, err
}

func (id NodeID) String() string     { return id.value }
func (id EdgeID) String() string     { return id.value }
func (id TreeID) String() string     { return id.value }
func (id PathID) String() string     { return id.value }
func (id AgentID) String() string    { return id.value }
func (id EvidenceID) String() string { return id.value }

func (id NodeID) Equals(other NodeID) bool         { return id.value == other.value }
func (id EdgeID) Equals(other EdgeID) bool         { return id.value == other.value }
func (id TreeID) Equals(other TreeID) bool         { return id.value == other.value }
func (id PathID) Equals(other PathID) bool         { return id.value == other.value }
func (id AgentID) Equals(other AgentID) bool       { return id.value == other.value }
func (id EvidenceID) Equals(other EvidenceID) bool { return id.value == other.value }

func (id NodeID) IsZero() bool     { return id.value == "" }
func (id EdgeID) IsZero() bool     { return id.value == "" }
func (id TreeID) IsZero() bool     { return id.value == "" }
func (id PathID) IsZero() bool     { return id.value == "" }
func (id AgentID) IsZero() bool    { return id.value == "" }
func (id EvidenceID) IsZero() bool { return id.value == "" }

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) { return marshalID(id.value) }

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error { return unmarshalID(&id.value, data) }

// MarshalJSON implements json.Marshaler
func (id EdgeID) MarshalJSON() ([]byte, error) { return marshalID(id.value) }

// UnmarshalJSON implements json.Unmarshaler
func (id *EdgeID) UnmarshalJSON(data []byte) error { return unmarshalID(&id.value, data) }

// MarshalJSON implements json.Marshaler
func (id TreeID) MarshalJSON() ([]byte, error) { return marshalID(id.value) }

// UnmarshalJSON implements json.Unmarshaler
func (id *TreeID) UnmarshalJSON(data []byte) error { return unmarshalID(&id.value, data) }

// MarshalJSON implements json.Marshaler
func (id PathID) MarshalJSON() ([]byte, error) { return marshalID(id.value) }

// UnmarshalJSON implements json.Unmarshaler
func (id *PathID) UnmarshalJSON(data []byte) error { return unmarshalID(&id.value, data) }

// MarshalJSON implements json.Marshaler
func (id AgentID) MarshalJSON() ([]byte, error) { return marshalID(id.value) }

// UnmarshalJSON implements json.Unmarshaler
func (id *AgentID) UnmarshalJSON(data []byte) error { return unmarshalID(&id.value, data) }

// MarshalJSON implements json.Marshaler
func (id EvidenceID) MarshalJSON() ([]byte, error) { return marshalID(id.value) }

// UnmarshalJSON implements json.Unmarshaler
func (id *EvidenceID) UnmarshalJSON(data []byte) error { return unmarshalID(&id.value, data) }

func marshalID(value string) ([]byte, error) {
	return []byte(`"` + value + `"`), nil
}

func unmarshalID(target *string, data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("identifier must be a string")
	}
	*target = string(data[1 : len(data)-1])
	return nil
}
