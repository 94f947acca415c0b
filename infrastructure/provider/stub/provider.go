// Package stub provides a deterministic in-process ModelProvider for
// development and tests. It fabricates a plausible HTTP response so the
// evidence chain stays verifiable end to end without network access.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"loom-backend/application/ports"
)

// ProviderName is recorded on evidence rows produced by this adapter
const ProviderName = "stub"

// Provider echoes a canned or scripted completion. Responses queued with
// EnqueueResponse are consumed in order; once drained it falls back to
// echoing the last user message.
type Provider struct {
	mu       sync.Mutex
	queue    []string
	calls    int
	failWith error
}

// NewProvider creates a stub provider
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns the provider identifier recorded on evidence
func (p *Provider) Name() string { return ProviderName }

// Initialize is a no-op for the stub
func (p *Provider) Initialize(context.Context, ports.Credentials, ports.ProviderOptions) error {
	return nil
}

// EnqueueResponse scripts the next completion content
func (p *Provider) EnqueueResponse(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, content)
}

// FailWith makes every subsequent call return err
func (p *Provider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = err
}

// Calls reports how many completions have been requested
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Provider) nextContent(req ports.CompletionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failWith != nil {
		return "", p.failWith
	}
	if len(p.queue) > 0 {
		content := p.queue[0]
		p.queue = p.queue[1:]
		return content, nil
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ports.RoleUser {
			return "echo: " + req.Messages[i].Content, nil
		}
	}
	return "echo", nil
}

// GenerateCompletion returns the next scripted completion with a
// fabricated raw response
func (p *Provider) GenerateCompletion(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := p.nextContent(req)
	if err != nil {
		return nil, err
	}

	requestAt := time.Now().UTC()
	body, _ := json.Marshal(map[string]interface{}{
		"model": req.Model,
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	})
	respondedAt := time.Now().UTC()

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	completionTokens := len(content) / 4

	return &ports.CompletionResult{
		Content:      content,
		FinishReason: "stop",
		Usage: ports.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		Raw: ports.RawCapture{
			Headers:     []byte(fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: %d\r\n\r\n", len(body))),
			Body:        body,
			RequestAt:   requestAt,
			RespondedAt: respondedAt,
			Latency:     respondedAt.Sub(requestAt),
		},
	}, nil
}

// GenerateStreamingCompletion behaves identically to GenerateCompletion;
// the stub has nothing to stream
func (p *Provider) GenerateStreamingCompletion(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	return p.GenerateCompletion(ctx, req)
}
