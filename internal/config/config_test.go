package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:6142", cfg.Addr())
	assert.Equal(t, 0.10, cfg.Hallucination.DetectionThreshold)
	assert.Equal(t, 3, cfg.Agent.MaxIterations)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
safety:
  rpm_limit: 10
  format_check: warn
generator:
  provider: ollama
  model: llama3
  timeout: 45s
audit:
  backend: sqlite
  path: /tmp/audit.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10, cfg.Safety.RPMLimit)
	assert.Equal(t, "warn", cfg.Safety.FormatCheck)
	assert.Equal(t, "ollama", cfg.Generator.Provider)
	assert.Equal(t, 45*time.Second, cfg.Generator.Timeout)
	assert.Equal(t, "sqlite", cfg.Audit.Backend)

	// Untouched keys keep their defaults.
	assert.Equal(t, 100.0, cfg.Safety.MaxDiffKB)
	assert.Equal(t, 0.35, cfg.Hallucination.High)
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "safety: [unclosed"))
	assert.ErrorContains(t, err, "parse config file")
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"unknown provider", "generator:\n  provider: markov\n", "Provider"},
		{"bands out of order", "hallucination:\n  medium: 0.5\n  high: 0.4\n", "High"},
		{"negative weight", "quality:\n  bleu: -1\n", "BLEU"},
		{"no iterations", "agent:\n  max_iterations: 0\n", "MaxIterations"},
		{"bad log level", "log_level: loud\n", "LogLevel"},
		{"bad audit backend", "audit:\n  backend: s3\n", "Backend"},
		{"message length above output cap", "safety:\n  max_message_length: 800\n", "MaxMessageLength"},
		{"message length too small", "safety:\n  max_message_length: 10\n", "MaxMessageLength"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
