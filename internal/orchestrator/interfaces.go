package orchestrator

import (
	"context"
	"time"
)

// ModelOutput is what a model backend returns for one prompt.
type ModelOutput struct {
	Text      string
	TokensIn  int
	TokensOut int
	Duration  time.Duration
}

// ModelExecutor sends one rendered prompt to a model backend and waits for
// the generated text. Calls block; the engine serializes them deliberately
// because local backends usually share a single GPU. Cancellation and
// timeouts are the executor's job to surface as an error.
type ModelExecutor interface {
	Execute(ctx context.Context, modelID string, prompt string) (*ModelOutput, error)
}

// ExecutorFunc adapts a plain function to the ModelExecutor interface.
type ExecutorFunc func(ctx context.Context, modelID string, prompt string) (*ModelOutput, error)

func (f ExecutorFunc) Execute(ctx context.Context, modelID string, prompt string) (*ModelOutput, error) {
	return f(ctx, modelID, prompt)
}

// TemplateRenderer resolves {{variable}} placeholders and control
// structures inside a template given the current variable scope.
type TemplateRenderer interface {
	Render(template string, variables map[string]any) (string, error)
}
