package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/eternnoir/elderlisten/pkg/providers"
)

const (
	defaultModel = "gemini-2.5-flash"

	transcribePrompt = "Transcribe the speech in this audio verbatim in its original language. " +
		"Output only the transcript text, without timestamps, speaker labels or commentary."
)

// Provider implements both providers.SpeechRecognizer and providers.Summarizer
// on the Gemini API
type Provider struct {
	client      *genai.Client
	model       string
	baseURL     string
	timeout     time.Duration
	temperature float32
}

// ProviderOption allows customizing the provider
type ProviderOption func(*Provider)

// WithModel sets the model name
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		p.timeout = timeout
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float32) ProviderOption {
	return func(p *Provider) {
		p.temperature = t
	}
}

// NewProvider creates a Gemini provider. An empty key is a configuration error.
func NewProvider(ctx context.Context, apiKey string, options ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", providers.ErrMissingCredentials)
	}

	p := &Provider{
		model:   defaultModel,
		timeout: 5 * time.Minute,
	}
	for _, opt := range options {
		opt(p)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions.BaseURL = p.baseURL
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	p.client = client

	return p, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "gemini"
}

// Transcribe sends the audio inline with a verbatim transcription prompt
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (*providers.Transcription, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio file: %s", audioPath)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(transcribePrompt),
			genai.NewPartFromBytes(data, providers.AudioMimeType(audioPath)),
		}, genai.RoleUser),
	}

	text, err := p.generate(ctx, contents, nil)
	if err != nil {
		return nil, err
	}

	return &providers.Transcription{
		Text:     text,
		Provider: p.Name(),
		Model:    p.model,
	}, nil
}

// Generate runs text under systemPrompt as the system instruction
func (p *Provider) Generate(ctx context.Context, text, systemPrompt string) (*providers.Generation, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	system := genai.NewContentFromText(systemPrompt, genai.RoleUser)

	content, err := p.generate(ctx, contents, system)
	if err != nil {
		return nil, err
	}

	return &providers.Generation{
		Content:  content,
		Provider: p.Name(),
		Model:    p.model,
	}, nil
}

func (p *Provider) generate(ctx context.Context, contents []*genai.Content, system *genai.Content) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if p.temperature > 0 {
		cfg.Temperature = genai.Ptr(p.temperature)
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no text in Gemini response (finish reason %s)", result.Candidates[0].FinishReason)
	}
	return text, nil
}
