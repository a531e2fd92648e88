// anthropic.go implements the fallback generator. The instruction block is
// inlined ahead of the question in a single user turn.
package ai

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/maritime-ai/maritime-ai-backend/internal/config"
)

// AnthropicGenerator is the fallback generative client.
type AnthropicGenerator struct {
	client *anthropic.Client
	model  string
	cfg    GenerationConfig
}

// NewAnthropicGenerator creates the fallback generator from configuration.
func NewAnthropicGenerator(cfg *config.AnthropicConfig, gen GenerationConfig) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}

	return &AnthropicGenerator{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		cfg:    gen,
	}, nil
}

func (g *AnthropicGenerator) Name() string { return "anthropic/" + g.model }

func (g *AnthropicGenerator) Generate(ctx context.Context, instructions, prompt string) (*Generation, error) {
	text := instructions + "\n\n" + prompt
	temperature := g.cfg.Temperature

	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(g.model),
		MaxTokens:   g.cfg.MaxOutputTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &text},
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("message creation failed: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil && *block.Text != "" {
			return &Generation{Text: *block.Text}, nil
		}
	}

	return nil, fmt.Errorf("no text content in response")
}
