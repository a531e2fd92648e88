// Package ai turns a tenant's question and its retrieved document excerpts
// into an answer. Generation degrades in stages: primary model, fallback
// model, then a fixed apology, so a chat request always produces a response.
package ai

import "context"

// Generation is one model response. A safety block is a distinct outcome, not
// an error: the model answered, the answer just cannot be shown.
type Generation struct {
	Text          string
	SafetyBlocked bool
}

// Generator is a single generative model client. instructions carries the
// fixed instruction block and document context; prompt is the user's literal
// question. How the two are combined is up to the implementation, since not
// every provider supports a separate system instruction.
type Generator interface {
	Name() string
	Generate(ctx context.Context, instructions, prompt string) (*Generation, error)
}

// GenerationConfig carries the sampling parameters shared by all generators.
type GenerationConfig struct {
	MaxOutputTokens int
	Temperature     float32
}
