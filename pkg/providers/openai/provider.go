package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/eternnoir/elderlisten/pkg/providers"
)

const (
	// DefaultBaseURL points at the DashScope OpenAI-compatible endpoint
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultModel   = "qwen-plus"
)

// Provider implements providers.Summarizer on any OpenAI-compatible chat
// completions endpoint
type Provider struct {
	client      openai.Client
	model       string
	baseURL     string
	timeout     time.Duration
	temperature float32
}

// ProviderOption allows customizing the provider
type ProviderOption func(*Provider)

// WithModel sets the chat model
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL
func WithBaseURL(url string) ProviderOption {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		p.timeout = timeout
	}
}

// WithTemperature sets the sampling temperature; zero leaves the server default
func WithTemperature(t float32) ProviderOption {
	return func(p *Provider) {
		p.temperature = t
	}
}

// NewProvider creates a summarizer. An empty key is a configuration error.
func NewProvider(apiKey string, options ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", providers.ErrMissingCredentials)
	}

	p := &Provider{
		model:   defaultModel,
		baseURL: DefaultBaseURL,
		timeout: 2 * time.Minute,
	}
	for _, opt := range options {
		opt(p)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithMaxRetries(0),
	}
	if p.timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(p.timeout))
	}
	p.client = openai.NewClient(opts...)

	return p, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

// Generate sends systemPrompt as the system message and text as the user message
func (p *Provider) Generate(ctx context.Context, text, systemPrompt string) (*providers.Generation, error) {
	req := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
	}
	if p.temperature > 0 {
		req.Temperature = openai.Float(float64(p.temperature))
	}

	completion, err := p.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion response")
	}

	choice := completion.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return nil, fmt.Errorf("empty content in completion response")
	}

	return &providers.Generation{
		Content:  content,
		Provider: p.Name(),
		Model:    p.model,
		Metadata: map[string]interface{}{
			"finish_reason": choice.FinishReason,
			"id":            completion.ID,
		},
	}, nil
}
