package ports

import (
	"context"
	"time"
)

// ChatMessage is one turn of conversation context sent to the provider
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles understood by providers
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest describes one model invocation
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []ChatMessage
	Temperature  float32
	TopP         float32
	MaxTokens    int
}

// RawCapture is the verbatim provider response, recorded before any
// parsing: status line plus headers, and the body bytes exactly as they
// arrived on the wire. It is mandatory input to the hash engine.
type RawCapture struct {
	Headers     []byte
	Body        []byte
	RequestAt   time.Time
	RespondedAt time.Time
	Latency     time.Duration
}

// Usage reports provider token accounting
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResult is the parsed completion plus its raw evidence
type CompletionResult struct {
	Content      string
	FinishReason string
	Usage        Usage
	Raw          RawCapture
}

// Credentials carries provider authentication material
type Credentials struct {
	APIKey string
}

// ProviderOptions carries provider tuning applied at initialization
type ProviderOptions struct {
	BaseURL string
	Timeout time.Duration
}

// ModelProvider is the model-inference collaborator. A streaming
// implementation must buffer all chunks and return one completed result;
// no partial assistant content is ever surfaced to the orchestrator.
// Cancellation travels through ctx: a canceled call aborts before any
// node is created.
type ModelProvider interface {
	// Name returns the provider identifier recorded on evidence
	Name() string

	// Initialize configures the provider with credentials and options
	Initialize(ctx context.Context, creds Credentials, opts ProviderOptions) error

	// GenerateCompletion performs one blocking completion call
	GenerateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResult, error)

	// GenerateStreamingCompletion performs a streaming call, buffering all
	// chunks and returning the completed result
	GenerateStreamingCompletion(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}
