package agent

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolDefinition describes one catalog entry offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// GenerateRequest is one model-decision step: the system instructions,
// the conversation so far, and the tools the model may call.
type GenerateRequest struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition

	// Stream, when non-nil, receives text fragments as the model
	// produces them. Returning an error aborts generation.
	Stream func(delta string) error
}

// Reply is the model's decision for one step: final (or intermediate)
// text, plus zero or more tool calls to execute before the next step.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// Model is the language-model boundary. Implementations must not
// execute tool calls themselves; they return them for the caller to
// dispatch.
type Model interface {
	Generate(ctx context.Context, req GenerateRequest) (*Reply, error)
}
