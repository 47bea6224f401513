package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "elderlisten.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv(DashScopeKeyEnv, "")
	path := writeConfig(t, "storage:\n  audio_root: /data/audio\n")

	cfg, err := NewLoader(path, nil).Load()
	require.NoError(t, err)

	require.Equal(t, "/data/audio", cfg.Storage.AudioRoot)
	require.Equal(t, "store/context", cfg.Storage.ContextRoot)
	require.Equal(t, "dashscope", cfg.ASR.Name)
	require.Equal(t, "openai", cfg.LLM.Name)
	require.Equal(t, "qwen-plus", cfg.LLM.Model)
	require.Equal(t, 2*time.Minute, cfg.LLM.Timeout)
	require.Equal(t, 10*time.Second, cfg.Watch.Debounce)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverridesAndKeyFallback(t *testing.T) {
	path := writeConfig(t, "llm:\n  timeout: 45s\n")
	t.Setenv("ELDERLISTEN_LLM_MODEL", "qwen-max")
	t.Setenv(DashScopeKeyEnv, "ds-key")

	cfg, err := NewLoader(path, nil).Load()
	require.NoError(t, err)
	require.Equal(t, "qwen-max", cfg.LLM.Model)
	require.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	require.Equal(t, "ds-key", cfg.ASR.APIKey)
	require.Equal(t, "ds-key", cfg.LLM.APIKey)
}

func TestLoadExplicitKeyWins(t *testing.T) {
	path := writeConfig(t, "asr:\n  api_key: explicit\n")
	t.Setenv(DashScopeKeyEnv, "ds-key")

	cfg, err := NewLoader(path, nil).Load()
	require.NoError(t, err)
	require.Equal(t, "explicit", cfg.ASR.APIKey)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml"), nil).Load()
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing audio root", mutate: func(c *Config) { c.Storage.AudioRoot = "" }, wantErr: true},
		{name: "missing summary root", mutate: func(c *Config) { c.Storage.SummaryRoot = "" }, wantErr: true},
		{name: "unknown asr", mutate: func(c *Config) { c.ASR.Name = "whisper" }, wantErr: true},
		{name: "openai cannot recognize", mutate: func(c *Config) { c.ASR.Name = "openai" }, wantErr: true},
		{name: "gemini llm", mutate: func(c *Config) { c.LLM.Name = "gemini" }},
		{name: "bad temperature", mutate: func(c *Config) { c.LLM.Temperature = 3 }, wantErr: true},
		{name: "history without path", mutate: func(c *Config) { c.History.DBPath = "" }, wantErr: true},
		{name: "history disabled without path", mutate: func(c *Config) { c.History.Enabled = false; c.History.DBPath = "" }},
		{name: "zero debounce", mutate: func(c *Config) { c.Watch.Debounce = 0 }, wantErr: true},
		{name: "negative interval", mutate: func(c *Config) { c.Watch.Interval = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWriteSampleLoadsBack(t *testing.T) {
	t.Setenv(DashScopeKeyEnv, "")
	path := filepath.Join(t.TempDir(), "conf", "sample.yaml")
	require.NoError(t, WriteSample(path))

	cfg, err := NewLoader(path, nil).Load()
	require.NoError(t, err)
	require.Equal(t, "your-dashscope-key", cfg.LLM.APIKey)
	require.Equal(t, 5*time.Minute, cfg.ASR.Timeout)
	require.Equal(t, DefaultConfig().Storage, cfg.Storage)
}
