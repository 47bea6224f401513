// Package factory builds provider implementations from configuration.
// Missing credentials fail here, at construction, never at call time.
package factory

import (
	"context"
	"fmt"

	"github.com/eternnoir/elderlisten/pkg/config"
	"github.com/eternnoir/elderlisten/pkg/providers"
	"github.com/eternnoir/elderlisten/pkg/providers/dashscope"
	"github.com/eternnoir/elderlisten/pkg/providers/gemini"
	"github.com/eternnoir/elderlisten/pkg/providers/openai"
)

// NewRecognizer returns the speech recognizer named by cfg
func NewRecognizer(ctx context.Context, cfg config.ProviderConfig) (providers.SpeechRecognizer, error) {
	switch cfg.Name {
	case "dashscope":
		p, err := dashscope.NewProvider(cfg.APIKey,
			dashscope.WithBaseURL(cfg.BaseURL),
			dashscope.WithModel(cfg.Model),
			dashscope.WithTimeout(cfg.Timeout),
		)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "gemini":
		p, err := newGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported speech recognition provider: %q", cfg.Name)
	}
}

// NewSummarizer returns the summarizer named by cfg
func NewSummarizer(ctx context.Context, cfg config.ProviderConfig) (providers.Summarizer, error) {
	switch cfg.Name {
	case "openai":
		p, err := openai.NewProvider(cfg.APIKey,
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithModel(cfg.Model),
			openai.WithTimeout(cfg.Timeout),
			openai.WithTemperature(cfg.Temperature),
		)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "gemini":
		p, err := newGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported summarization provider: %q", cfg.Name)
	}
}

func newGemini(ctx context.Context, cfg config.ProviderConfig) (*gemini.Provider, error) {
	return gemini.NewProvider(ctx, cfg.APIKey,
		gemini.WithBaseURL(cfg.BaseURL),
		gemini.WithModel(cfg.Model),
		gemini.WithTimeout(cfg.Timeout),
		gemini.WithTemperature(cfg.Temperature),
	)
}
