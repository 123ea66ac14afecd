// Package config loads smartcommit configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".smartcommit.yaml"

// SafetyConfig bounds what the input gate admits and what the sanitizer emits.
type SafetyConfig struct {
	// MaxDiffKB is the maximum diff size in kilobytes.
	MaxDiffKB float64 `yaml:"max_diff_kb" validate:"gt=0"`

	// MaxDiffLines is the maximum number of lines in a diff.
	MaxDiffLines int `yaml:"max_diff_lines" validate:"gt=0"`

	// RPMLimit is the number of requests a client may make per minute.
	RPMLimit int `yaml:"rpm_limit" validate:"gt=0"`

	// MaxMessageLength is where sanitized messages are truncated. It cannot
	// exceed the 500 characters the validator and output checks accept.
	MaxMessageLength int `yaml:"max_message_length" validate:"gt=20,lte=500"`

	// FormatCheck is "reject" or "warn" for input that does not look like a diff.
	FormatCheck string `yaml:"format_check" validate:"oneof=reject warn"`
}

// HallucinationConfig holds the grounding cutoff and the severity bands.
type HallucinationConfig struct {
	DetectionThreshold float64 `yaml:"detection_threshold" validate:"gte=0,lte=1"`
	Low                float64 `yaml:"low" validate:"gt=0,lte=1"`
	Medium             float64 `yaml:"medium" validate:"gtfield=Low,lte=1"`
	High               float64 `yaml:"high" validate:"gtfield=Medium,lte=1"`
}

// QualityConfig weights the aggregated quality score.
type QualityConfig struct {
	BLEU                 float64 `yaml:"bleu" validate:"gte=0"`
	RougeL               float64 `yaml:"rouge_l" validate:"gte=0"`
	Semantic             float64 `yaml:"semantic" validate:"gte=0"`
	NoHallucinationBonus float64 `yaml:"no_hallucination_bonus" validate:"gte=0"`
	Clamp                bool    `yaml:"clamp"`
}

// AgentConfig controls the generate/validate/refine loop.
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations" validate:"gte=1,lte=20"`
}

// GeneratorConfig selects and tunes the message generator backend.
type GeneratorConfig struct {
	// Provider is one of heuristic, gemini, openai, ollama.
	Provider string `yaml:"provider" validate:"oneof=heuristic gemini openai ollama"`

	// Model defaults per provider when empty.
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`

	// Timeout bounds a single generation call.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// RequestsPerSecond throttles calls to the provider. Zero disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`

	// MaxPromptChars caps how much of the diff is placed in the prompt.
	MaxPromptChars int `yaml:"max_prompt_chars" validate:"gte=500"`

	// ServerURL is used by the ollama provider.
	ServerURL string `yaml:"server_url" validate:"omitempty,url"`
}

// SimilarityConfig selects the semantic-overlap provider.
type SimilarityConfig struct {
	Provider string `yaml:"provider" validate:"oneof=jaccard openai"`
	Model    string `yaml:"model"`
}

// AuditConfig selects where audit events are persisted.
type AuditConfig struct {
	Backend string `yaml:"backend" validate:"oneof=jsonl sqlite none"`
	// Dir holds the JSONL files and the daily metrics CSV.
	Dir string `yaml:"dir"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// APIConfig is the HTTP listener.
type APIConfig struct {
	Addr string `yaml:"addr" validate:"required"`
	Port int    `yaml:"port" validate:"gt=0,lt=65536"`
}

// Config is the full smartcommit configuration.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Safety        SafetyConfig        `yaml:"safety"`
	Hallucination HallucinationConfig `yaml:"hallucination"`
	Quality       QualityConfig       `yaml:"quality"`
	Agent         AgentConfig         `yaml:"agent"`
	Generator     GeneratorConfig     `yaml:"generator"`
	Similarity    SimilarityConfig    `yaml:"similarity"`
	Audit         AuditConfig         `yaml:"audit"`
	API           APIConfig           `yaml:"api"`
}

// Default returns a Config with the production defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Safety: SafetyConfig{
			MaxDiffKB:        100,
			MaxDiffLines:     1000,
			RPMLimit:         60,
			MaxMessageLength: 500,
			FormatCheck:      "reject",
		},
		Hallucination: HallucinationConfig{
			DetectionThreshold: 0.10,
			Low:                0.10,
			Medium:             0.20,
			High:               0.35,
		},
		Quality: QualityConfig{
			BLEU:                 0.3,
			RougeL:               0.3,
			Semantic:             0.3,
			NoHallucinationBonus: 0.1,
			Clamp:                true,
		},
		Agent: AgentConfig{MaxIterations: 3},
		Generator: GeneratorConfig{
			Provider:       "heuristic",
			Temperature:    0.1,
			Timeout:        30 * time.Second,
			MaxPromptChars: 12000,
			ServerURL:      "http://localhost:11434",
		},
		Similarity: SimilarityConfig{
			Provider: "jaccard",
			Model:    "text-embedding-3-small",
		},
		Audit: AuditConfig{
			Backend: "jsonl",
			Dir:     ".smartcommit/audit",
			Path:    ".smartcommit/audit.db",
		},
		API: APIConfig{
			Addr: "127.0.0.1",
			Port: 6142,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr is the host:port the API server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Addr, c.API.Port)
}
