package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/sprite-ai/smartcommit/internal/log"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

const systemPrompt = "You write concise, accurate git commit messages grounded only in the diff you are given."

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI generates messages with the chat completions API.
type OpenAI struct {
	client      chatCompleter
	model       string
	temperature float32
	maxPrompt   int
}

// NewOpenAI creates a chat-completions generator.
func NewOpenAI(apiKey, model string, temperature float32, maxPrompt int) *OpenAI {
	return newOpenAI(openai.NewClient(apiKey), model, temperature, maxPrompt)
}

func newOpenAI(client chatCompleter, model string, temperature float32, maxPrompt int) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{client: client, model: model, temperature: temperature, maxPrompt: maxPrompt}
}

func (o *OpenAI) Info() Info {
	return Info{Provider: ProviderOpenAI, Model: o.model, Temperature: o.temperature}
}

func (o *OpenAI) Generate(ctx context.Context, diff string) (string, error) {
	prompt, err := BuildPrompt(diff, o.maxPrompt)
	if err != nil {
		return "", err
	}
	log.Debugf("openai: generating with %s (%d prompt chars)", o.model, len(prompt))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	msg := cleanMessage(resp.Choices[0].Message.Content)
	if msg == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return msg, nil
}
