package config

import (
	"time"

	"github.com/eternnoir/elderlisten/pkg/logger"
)

// Config represents the application configuration
type Config struct {
	// Storage roots
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Speech recognition provider
	ASR ProviderConfig `yaml:"asr" mapstructure:"asr"`

	// Summarization provider
	LLM ProviderConfig `yaml:"llm" mapstructure:"llm"`

	// Attempt ledger
	History HistoryConfig `yaml:"history" mapstructure:"history"`

	// Watch mode
	Watch WatchConfig `yaml:"watch" mapstructure:"watch"`

	// Logging Configuration
	Logging logger.Config `yaml:"logging" mapstructure:"logging"`
}

// StorageConfig holds the three filesystem roots
type StorageConfig struct {
	AudioRoot   string `yaml:"audio_root" mapstructure:"audio_root"`
	ContextRoot string `yaml:"context_root" mapstructure:"context_root"`
	SummaryRoot string `yaml:"summary_root" mapstructure:"summary_root"`
}

// ProviderConfig contains provider settings
type ProviderConfig struct {
	// Provider name (dashscope, openai, gemini)
	Name string `yaml:"name" mapstructure:"name"`

	// API Configuration
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Request Configuration
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Model Configuration
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// HistoryConfig controls the bbolt attempt ledger
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DBPath  string `yaml:"db_path" mapstructure:"db_path"`
}

// WatchConfig contains watch mode settings
type WatchConfig struct {
	// Quiet period after the last audio event before a run is triggered
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`

	// Whether to trigger one run when watching starts
	RunOnStart bool `yaml:"run_on_start" mapstructure:"run_on_start"`

	// Periodic run interval, catching missed events and retrying failures; zero disables
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			AudioRoot:   "store/audio",
			ContextRoot: "store/context",
			SummaryRoot: "store/summary",
		},
		ASR: ProviderConfig{
			Name:    "dashscope",
			Model:   "qwen3-asr-flash",
			Timeout: 5 * time.Minute,
		},
		LLM: ProviderConfig{
			Name:    "openai",
			BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:   "qwen-plus",
			Timeout: 2 * time.Minute,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  "store/context/_history.db",
		},
		Watch: WatchConfig{
			Debounce:   10 * time.Second,
			RunOnStart: true,
		},
		Logging: *logger.DefaultConfig(),
	}
}
