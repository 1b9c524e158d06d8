package summarizer

import (
	"context"
)

// Input describes the payload for a summary request.
type Input struct {
	// Prompt is the fully rendered user prompt.
	Prompt string
	// Instructions is the system instruction framing the model's role.
	Instructions string
	// MaxOutputTokens caps the generated summary; zero means provider default.
	MaxOutputTokens int64
}

// Summarizer produces a single summary for a given prompt.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
