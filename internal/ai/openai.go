// openai.go implements the primary generator. The provider supports a real
// system instruction, so the instruction block rides in the system message and
// the user's question stays a clean user turn.
package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/maritime-ai/maritime-ai-backend/internal/config"
)

// OpenAIGenerator is the primary generative client.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	cfg    GenerationConfig
}

// NewOpenAIGenerator creates the primary generator from configuration.
func NewOpenAIGenerator(cfg *config.OpenAIConfig, gen GenerationConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		cfg:    gen,
	}, nil
}

func (g *OpenAIGenerator) Name() string { return "openai/" + g.model }

// Generate runs one chat completion. A content_filter finish reason becomes a
// safety-blocked generation, not an error.
func (g *OpenAIGenerator) Generate(ctx context.Context, instructions, prompt string) (*Generation, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.cfg.MaxOutputTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return &Generation{SafetyBlocked: true}, nil
	}
	if choice.Message.Content == "" {
		return nil, fmt.Errorf("empty content in response")
	}

	return &Generation{Text: choice.Message.Content}, nil
}
