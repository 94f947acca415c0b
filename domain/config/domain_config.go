package config

// DomainConfig holds tunable domain rules for the loom engine
type DomainConfig struct {
	// Content limits
	MaxContentLength  int
	AllowEmptyContent bool

	// Local identifier derivation
	LocalIDInitialLength int

	// Hyperedge limits
	MaxSourcesPerEdge int

	// Node metadata
	MaxBookmarkLabelLength int
	MaxSummaryLength       int
}

// DefaultDomainConfig returns the default domain rules
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxContentLength:       1 << 20, // 1 MiB of text
		AllowEmptyContent:      false,
		LocalIDInitialLength:   6,
		MaxSourcesPerEdge:      64,
		MaxBookmarkLabelLength: 256,
		MaxSummaryLength:       4096,
	}
}
