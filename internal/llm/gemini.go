package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/sprite-ai/smartcommit/internal/log"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// geminiModels is the part of *genai.Models the generator calls.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates messages with the Gemini API.
type Gemini struct {
	models      geminiModels
	model       string
	temperature float32
	maxPrompt   int
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, apiKey, model string, temperature float32, maxPrompt int) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newGemini(client.Models, model, temperature, maxPrompt), nil
}

func newGemini(models geminiModels, model string, temperature float32, maxPrompt int) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{models: models, model: model, temperature: temperature, maxPrompt: maxPrompt}
}

func (g *Gemini) Info() Info {
	return Info{Provider: ProviderGemini, Model: g.model, Temperature: g.temperature}
}

func (g *Gemini) Generate(ctx context.Context, diff string) (string, error) {
	prompt, err := BuildPrompt(diff, g.maxPrompt)
	if err != nil {
		return "", err
	}
	log.Debugf("gemini: generating with %s (%d prompt chars)", g.model, len(prompt))

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	msg := cleanMessage(resp.Text())
	if msg == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return msg, nil
}
