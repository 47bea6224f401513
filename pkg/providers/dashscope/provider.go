package dashscope

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/eternnoir/elderlisten/pkg/providers"
)

const (
	defaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	defaultModel   = "qwen3-asr-flash"
	generationPath = "/services/aigc/multimodal-generation/generation"
)

// Provider implements providers.SpeechRecognizer on the DashScope
// multimodal-generation API
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Request is the multimodal-generation request body
type Request struct {
	Model      string     `json:"model"`
	Input      Input      `json:"input"`
	Parameters Parameters `json:"parameters"`
}

// Input wraps the conversation
type Input struct {
	Messages []Message `json:"messages"`
}

// Message is one conversation turn
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart holds either text or audio
type ContentPart struct {
	Text  *string `json:"text,omitempty"`
	Audio string  `json:"audio,omitempty"`
}

// Parameters controls the response shape
type Parameters struct {
	ResultFormat string     `json:"result_format"`
	ASROptions   ASROptions `json:"asr_options"`
}

// ASROptions are recognizer switches
type ASROptions struct {
	EnableITN bool `json:"enable_itn"`
}

// Response is the multimodal-generation response body
type Response struct {
	RequestID string  `json:"request_id"`
	Code      string  `json:"code,omitempty"`
	Message   string  `json:"message,omitempty"`
	Output    *Output `json:"output,omitempty"`
}

// Output holds the choices
type Output struct {
	Choices []Choice `json:"choices"`
}

// Choice is one candidate answer
type Choice struct {
	FinishReason string  `json:"finish_reason"`
	Message      Message `json:"message"`
}

// ProviderOption allows customizing the provider
type ProviderOption func(*Provider)

// WithBaseURL sets a custom API base URL
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithModel sets the recognition model
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		if timeout > 0 {
			p.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// NewProvider creates a DashScope recognizer. An empty key is a configuration error.
func NewProvider(apiKey string, options ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("dashscope: %w", providers.ErrMissingCredentials)
	}

	p := &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "dashscope"
}

// Transcribe sends the audio file inline as a base64 data URI
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (*providers.Transcription, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio file: %s", audioPath)
	}

	empty := ""
	req := &Request{
		Model: p.model,
		Input: Input{
			Messages: []Message{
				{Role: "system", Content: []ContentPart{{Text: &empty}}},
				{Role: "user", Content: []ContentPart{{
					Audio: fmt.Sprintf("data:%s;base64,%s",
						providers.AudioMimeType(audioPath),
						base64.StdEncoding.EncodeToString(data)),
				}}},
			},
		},
		Parameters: Parameters{
			ResultFormat: "message",
			ASROptions:   ASROptions{EnableITN: false},
		},
	}

	resp, err := p.makeRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	text, ok := extractText(resp)
	if !ok {
		return nil, fmt.Errorf("no transcription text in response (request_id %s)", resp.RequestID)
	}

	return &providers.Transcription{
		Text:     text,
		Provider: p.Name(),
		Model:    p.model,
		Metadata: map[string]interface{}{
			"request_id": resp.RequestID,
		},
	}, nil
}

func (p *Provider) makeRequest(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+generationPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	respData, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API request failed with status %d: %s", httpResp.StatusCode, string(respData))
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK || resp.Code != "" {
		return nil, fmt.Errorf("API error (status %d) %s: %s", httpResp.StatusCode, resp.Code, resp.Message)
	}

	return &resp, nil
}

// extractText walks output.choices[0].message.content[0].text
func extractText(resp *Response) (string, bool) {
	if resp.Output == nil || len(resp.Output.Choices) == 0 {
		return "", false
	}
	content := resp.Output.Choices[0].Message.Content
	if len(content) == 0 || content[0].Text == nil {
		return "", false
	}
	return *content[0].Text, true
}
