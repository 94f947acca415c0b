// Package openai adapts the OpenAI chat completion API to the
// ports.ModelProvider contract. Every call records the verbatim HTTP
// response alongside the parsed completion so the hash engine can bind
// model content to its evidence.
package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"loom-backend/application/ports"
	pkgerrors "loom-backend/pkg/errors"
)

// ProviderName is recorded on evidence rows produced by this adapter
const ProviderName = "openai"

const defaultTimeout = 120 * time.Second

// Provider is a circuit-broken OpenAI chat completion client
type Provider struct {
	client  *goopenai.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewProvider creates an uninitialized provider; call Initialize before use
func NewProvider(logger *zap.Logger) *Provider {
	return &Provider{logger: logger}
}

// Name returns the provider identifier recorded on evidence
func (p *Provider) Name() string { return ProviderName }

// Initialize configures the client, the recording transport and the
// circuit breaker
func (p *Provider) Initialize(_ context.Context, creds ports.Credentials, opts ports.ProviderOptions) error {
	if creds.APIKey == "" {
		return pkgerrors.NewValidationError("openai api key is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	cfg := goopenai.DefaultConfig(creds.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &recordingTransport{},
	}
	p.client = goopenai.NewClientWithConfig(cfg)

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        ProviderName,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("provider circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return nil
}

func (p *Provider) buildRequest(req ports.CompletionRequest) goopenai.ChatCompletionRequest {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}
}

// GenerateCompletion performs one blocking completion call
func (p *Provider) GenerateCompletion(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	if p.client == nil {
		return nil, pkgerrors.NewInvalidStateError("provider is not initialized")
	}

	callCtx, rec := withCapture(ctx)
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.client.CreateChatCompletion(callCtx, p.buildRequest(req))
	})
	if err != nil {
		return nil, p.mapError(err)
	}

	resp := result.(goopenai.ChatCompletionResponse)
	if len(resp.Choices) == 0 {
		return nil, pkgerrors.NewExternalError(ProviderName, errors.New("response contained no choices"))
	}

	return &ports.CompletionResult{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: ports.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Raw: rawCapture(rec),
	}, nil
}

// GenerateStreamingCompletion performs a streaming call, buffering all
// chunks into one completed result. The recorded body is the full SSE
// stream as it arrived.
func (p *Provider) GenerateStreamingCompletion(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResult, error) {
	if p.client == nil {
		return nil, pkgerrors.NewInvalidStateError("provider is not initialized")
	}

	chatReq := p.buildRequest(req)
	chatReq.Stream = true
	chatReq.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}

	callCtx, rec := withCapture(ctx)
	result, err := p.breaker.Execute(func() (interface{}, error) {
		stream, err := p.client.CreateChatCompletionStream(callCtx, chatReq)
		if err != nil {
			return nil, err
		}
		defer stream.Close()

		var content strings.Builder
		var finishReason string
		var usage ports.Usage
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			if chunk.Usage != nil {
				usage = ports.Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			content.WriteString(chunk.Choices[0].Delta.Content)
			if chunk.Choices[0].FinishReason != "" {
				finishReason = string(chunk.Choices[0].FinishReason)
			}
		}

		return &ports.CompletionResult{
			Content:      content.String(),
			FinishReason: finishReason,
			Usage:        usage,
		}, nil
	})
	if err != nil {
		return nil, p.mapError(err)
	}

	completion := result.(*ports.CompletionResult)
	completion.Raw = rawCapture(rec)
	return completion, nil
}

func rawCapture(c *capture) ports.RawCapture {
	return ports.RawCapture{
		Headers:     c.headers,
		Body:        c.body,
		RequestAt:   c.requestAt,
		RespondedAt: c.respondedAt,
		Latency:     c.respondedAt.Sub(c.requestAt),
	}
}

func (p *Provider) mapError(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return pkgerrors.NewUnavailableError(ProviderName).WithCause(err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.NewTimeoutError("model completion").WithCause(err)
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return pkgerrors.NewRateLimitError(0, "provider").WithCause(err)
		}
	}
	p.logger.Error("openai call failed", zap.Error(err))
	return pkgerrors.NewExternalError(ProviderName, err)
}
