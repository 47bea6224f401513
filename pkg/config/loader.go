package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. ELDERLISTEN_LLM_API_KEY
const EnvPrefix = "ELDERLISTEN"

// DashScopeKeyEnv is honoured as a fallback key for DashScope-backed providers
const DashScopeKeyEnv = "DASHSCOPE_API_KEY"

// Loader handles configuration loading and management
type Loader struct {
	configPath string
	viper      *viper.Viper
}

// NewLoader creates a configuration loader. A nil v gets a fresh viper
// instance; pass the instance flags were bound to so they take effect.
func NewLoader(configPath string, v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, _ := os.UserHomeDir()
		if home != "" {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/elderlisten")
		v.SetConfigName(".elderlisten")
		v.SetConfigType("yaml")
	}

	return &Loader{
		configPath: configPath,
		viper:      v,
	}
}

// Load reads and returns the configuration
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || l.configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyKeyFallbacks(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// GetConfigFile returns the path to the config file being used
func (l *Loader) GetConfigFile() string {
	return l.viper.ConfigFileUsed()
}

func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.viper.SetDefault("storage.audio_root", d.Storage.AudioRoot)
	l.viper.SetDefault("storage.context_root", d.Storage.ContextRoot)
	l.viper.SetDefault("storage.summary_root", d.Storage.SummaryRoot)

	for _, p := range []struct {
		key string
		cfg ProviderConfig
	}{{"asr", d.ASR}, {"llm", d.LLM}} {
		l.viper.SetDefault(p.key+".name", p.cfg.Name)
		l.viper.SetDefault(p.key+".api_key", p.cfg.APIKey)
		l.viper.SetDefault(p.key+".base_url", p.cfg.BaseURL)
		l.viper.SetDefault(p.key+".timeout", p.cfg.Timeout)
		l.viper.SetDefault(p.key+".model", p.cfg.Model)
		l.viper.SetDefault(p.key+".temperature", p.cfg.Temperature)
	}

	l.viper.SetDefault("history.enabled", d.History.Enabled)
	l.viper.SetDefault("history.db_path", d.History.DBPath)

	l.viper.SetDefault("watch.debounce", d.Watch.Debounce)
	l.viper.SetDefault("watch.run_on_start", d.Watch.RunOnStart)
	l.viper.SetDefault("watch.interval", d.Watch.Interval)

	l.viper.SetDefault("logging.level", d.Logging.Level)
	l.viper.SetDefault("logging.format", d.Logging.Format)
	l.viper.SetDefault("logging.output", d.Logging.Output)
	l.viper.SetDefault("logging.timestamp", d.Logging.Timestamp)
	l.viper.SetDefault("logging.caller", d.Logging.Caller)
	l.viper.SetDefault("logging.no_color", d.Logging.NoColor)
}

// applyKeyFallbacks fills empty keys of DashScope-backed providers from DASHSCOPE_API_KEY
func applyKeyFallbacks(cfg *Config) {
	key := os.Getenv(DashScopeKeyEnv)
	if key == "" {
		return
	}
	for _, p := range []*ProviderConfig{&cfg.ASR, &cfg.LLM} {
		if p.APIKey != "" {
			continue
		}
		if p.Name == "dashscope" || (p.Name == "openai" && strings.Contains(p.BaseURL, "dashscope")) {
			p.APIKey = key
		}
	}
}

var (
	recognizerNames = map[string]bool{"dashscope": true, "gemini": true}
	summarizerNames = map[string]bool{"openai": true, "gemini": true}
)

// validateConfig validates the loaded configuration. Missing credentials are
// not checked here; provider constructors reject them.
func validateConfig(cfg *Config) error {
	if cfg.Storage.AudioRoot == "" {
		return fmt.Errorf("storage.audio_root is required")
	}
	if cfg.Storage.ContextRoot == "" {
		return fmt.Errorf("storage.context_root is required")
	}
	if cfg.Storage.SummaryRoot == "" {
		return fmt.Errorf("storage.summary_root is required")
	}

	if !recognizerNames[cfg.ASR.Name] {
		return fmt.Errorf("unsupported asr provider: %q", cfg.ASR.Name)
	}
	if !summarizerNames[cfg.LLM.Name] {
		return fmt.Errorf("unsupported llm provider: %q", cfg.LLM.Name)
	}

	for name, p := range map[string]ProviderConfig{"asr": cfg.ASR, "llm": cfg.LLM} {
		if p.Timeout < 0 {
			return fmt.Errorf("%s.timeout cannot be negative", name)
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			return fmt.Errorf("%s.temperature must be between 0 and 2", name)
		}
	}

	if cfg.History.Enabled && cfg.History.DBPath == "" {
		return fmt.Errorf("history.db_path is required when history is enabled")
	}

	if cfg.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive")
	}
	if cfg.Watch.Interval < 0 {
		return fmt.Errorf("watch.interval cannot be negative")
	}

	return nil
}

// WriteSample writes a sample configuration file with placeholder keys
func WriteSample(path string) error {
	cfg := DefaultConfig()
	cfg.ASR.APIKey = "your-dashscope-key"
	cfg.LLM.APIKey = "your-dashscope-key"

	data, err := yaml.Marshal(Document(cfg))
	if err != nil {
		return fmt.Errorf("failed to marshal sample config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Document renders cfg for YAML output with durations as strings, the form
// the loader reads back
func Document(cfg *Config) map[string]interface{} {
	provider := func(p ProviderConfig) map[string]interface{} {
		return map[string]interface{}{
			"name":        p.Name,
			"api_key":     p.APIKey,
			"base_url":    p.BaseURL,
			"timeout":     p.Timeout.String(),
			"model":       p.Model,
			"temperature": p.Temperature,
		}
	}

	return map[string]interface{}{
		"storage": cfg.Storage,
		"asr":     provider(cfg.ASR),
		"llm":     provider(cfg.LLM),
		"history": cfg.History,
		"watch": map[string]interface{}{
			"debounce":     cfg.Watch.Debounce.String(),
			"run_on_start": cfg.Watch.RunOnStart,
			"interval":     cfg.Watch.Interval.String(),
		},
		"logging": cfg.Logging,
	}
}
