package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"loom-backend/domain/config"
	pkgerrors "loom-backend/pkg/errors"
)

// ContentKind tags the variant of a node's content union
type ContentKind string

const (
	ContentKindText ContentKind = "text"
)

// NodeContent is the immutable content carried by a node. It is a tagged
// union; only the text variant exists today, but the canonical form keeps
// room for further variants without changing hash semantics.
type NodeContent struct {
	kind ContentKind
	text string
}

// NewTextContent creates text content with validation using default configuration
func NewTextContent(text string) (NodeContent, error) {
	return NewTextContentWithConfig(text, config.DefaultDomainConfig())
}

// NewTextContentWithConfig creates text content with validation and configuration
func NewTextContentWithConfig(text string, cfg *config.DomainConfig) (NodeContent, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if strings.TrimSpace(text) == "" && !cfg.AllowEmptyContent {
		return NodeContent{}, pkgerrors.NewValidationError("content cannot be empty")
	}

	if utf8.RuneCountInString(text) > cfg.MaxContentLength {
		return NodeContent{}, pkgerrors.NewValidationError(
			fmt.Sprintf("content exceeds maximum length of %d characters", cfg.MaxContentLength))
	}

	return NodeContent{kind: ContentKindText, text: text}, nil
}

// ReconstructContent rebuilds content from repository data without validation
func ReconstructContent(kind ContentKind, text string) NodeContent {
	return NodeContent{kind: kind, text: text}
}

// Kind returns the content variant tag
func (c NodeContent) Kind() ContentKind { return c.kind }

// Text returns the text payload
func (c NodeContent) Text() string { return c.text }

// IsEmpty reports whether the content carries no payload
func (c NodeContent) IsEmpty() bool { return strings.TrimSpace(c.text) == "" }

// Equals checks if two contents are equal
func (c NodeContent) Equals(other NodeContent) bool {
	return c.kind == other.kind && c.text == other.text
}

// CanonicalMap returns the content as a plain map for canonical
// serialization. Hash values computed on different devices must agree,
// so this shape is part of the wire contract and must not change.
func (c NodeContent) CanonicalMap() map[string]interface{} {
	return map[string]interface{}{
		"kind": string(c.kind),
		"text": c.text,
	}
}
