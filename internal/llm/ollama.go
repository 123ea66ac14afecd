package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/sprite-ai/smartcommit/internal/log"
)

// DefaultOllamaModel is used when no model is configured.
const DefaultOllamaModel = "llama3.2"

// Ollama generates messages with a local Ollama server.
type Ollama struct {
	llm         llms.Model
	model       string
	temperature float32
	maxPrompt   int
}

// NewOllama connects to the Ollama server at serverURL.
func NewOllama(serverURL, model string, temperature float32, maxPrompt int) (*Ollama, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return &Ollama{llm: llm, model: model, temperature: temperature, maxPrompt: maxPrompt}, nil
}

func (o *Ollama) Info() Info {
	return Info{Provider: ProviderOllama, Model: o.model, Temperature: o.temperature}
}

func (o *Ollama) Generate(ctx context.Context, diff string) (string, error) {
	prompt, err := BuildPrompt(diff, o.maxPrompt)
	if err != nil {
		return "", err
	}
	log.Debugf("ollama: generating with %s (%d prompt chars)", o.model, len(prompt))

	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt,
		llms.WithTemperature(float64(o.temperature)))
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	msg := cleanMessage(out)
	if msg == "" {
		return "", fmt.Errorf("ollama: %w", ErrEmptyResponse)
	}
	return msg, nil
}
