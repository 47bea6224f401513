package providers

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"
)

// ErrMissingCredentials is returned by constructors when no API key is configured
var ErrMissingCredentials = errors.New("provider credentials are not configured")

// Transcription is the text recognized from one audio file
type Transcription struct {
	Text     string                 `json:"text"`
	Provider string                 `json:"provider"`
	Model    string                 `json:"model,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Generation is the raw text produced by a summarization call
type Generation struct {
	Content  string                 `json:"content"`
	Provider string                 `json:"provider"`
	Model    string                 `json:"model,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SpeechRecognizer converts one audio file to text. Implementations do not retry.
type SpeechRecognizer interface {
	// Name returns the provider name (e.g., "dashscope", "gemini")
	Name() string

	// Transcribe recognizes the audio file at audioPath
	Transcribe(ctx context.Context, audioPath string) (*Transcription, error)
}

// Summarizer produces text from an input and a system prompt. Implementations do not retry.
type Summarizer interface {
	// Name returns the provider name (e.g., "openai", "gemini")
	Name() string

	// Generate runs one completion of text under systemPrompt
	Generate(ctx context.Context, text, systemPrompt string) (*Generation, error)
}

// AudioMimeType maps an audio file extension to a MIME type
func AudioMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".amr":
		return "audio/amr"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
