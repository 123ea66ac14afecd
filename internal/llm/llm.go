// Package llm generates commit messages from diffs. It holds the external
// generator backends the agent loop calls into.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sprite-ai/smartcommit/internal/config"
	"github.com/sprite-ai/smartcommit/internal/log"
)

// Provider names accepted by New.
const (
	ProviderHeuristic = "heuristic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// ErrMissingAPIKey is returned when a hosted provider has no key in the environment.
var ErrMissingAPIKey = errors.New("missing API key")

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("provider returned an empty message")

// Info describes the backend behind a Generator for audit records.
type Info struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
}

func (i Info) String() string {
	return fmt.Sprintf("%s/%s", i.Provider, i.Model)
}

// Generator turns a diff into a commit message.
type Generator interface {
	Generate(ctx context.Context, diff string) (string, error)
	Info() Info
}

// New builds the generator selected by cfg, wrapped with throttling and a
// per-call timeout when configured. API keys come from the environment.
func New(ctx context.Context, cfg config.GeneratorConfig) (Generator, error) {
	var (
		g   Generator
		err error
	)
	switch cfg.Provider {
	case ProviderHeuristic, "":
		g = NewHeuristic()
	case ProviderGemini:
		key := firstEnv("GOOGLE_API_KEY", "GEMINI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("gemini: %w (set GOOGLE_API_KEY)", ErrMissingAPIKey)
		}
		g, err = NewGemini(ctx, key, cfg.Model, cfg.Temperature, cfg.MaxPromptChars)
	case ProviderOpenAI:
		key := firstEnv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrMissingAPIKey)
		}
		g = NewOpenAI(key, cfg.Model, cfg.Temperature, cfg.MaxPromptChars)
	case ProviderOllama:
		g, err = NewOllama(cfg.ServerURL, cfg.Model, cfg.Temperature, cfg.MaxPromptChars)
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RequestsPerSecond > 0 {
		g = Throttle(g, cfg.RequestsPerSecond)
	}
	if cfg.Timeout > 0 {
		g = WithTimeout(g, cfg.Timeout)
	}
	log.Infof("generator ready: %s (temperature %.1f)", g.Info(), g.Info().Temperature)
	return g, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// cleanMessage strips the wrapping models like to add around a message:
// code fences, quotes and a leading label.
func cleanMessage(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	for _, label := range []string{"Commit message:", "commit message:", "Message:"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, label))
	}
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
