package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// errToolNotDispatched guards the stub tool bodies. Generation runs
// with ReturnToolRequests, so Genkit hands tool calls back instead of
// invoking them; the orchestrator owns dispatch.
var errToolNotDispatched = errors.New("tool execution is owned by the orchestrator")

// GenkitModel adapts a Genkit-hosted model to the Model interface.
//
// Tool calls are returned to the caller rather than executed inside
// Genkit, so the orchestrator's step budget and event stream see every
// invocation.
type GenkitModel struct {
	g         *genkit.Genkit
	modelName string
	toolRefs  map[string]ai.ToolRef
	logger    *slog.Logger
}

// NewGenkitModel registers the closed tool catalog with g and returns
// the adapter. modelName is a full Genkit model name, for example
// "googleai/gemini-2.5-flash".
func NewGenkitModel(g *genkit.Genkit, modelName string, logger *slog.Logger) (*GenkitModel, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if modelName == "" {
		return nil, errors.New("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	addResource := genkit.DefineTool(
		g,
		ToolAddResource,
		"Add a resource to your knowledge base. If the user provides a random piece of "+
			"knowledge unprompted, use this tool without asking for confirmation.",
		func(toolCtx *ai.ToolContext, input AddResourceCall) (string, error) {
			return "", errToolNotDispatched
		},
	)
	getInformation := genkit.DefineTool(
		g,
		ToolGetInformation,
		"Get information from your knowledge base to answer questions.",
		func(toolCtx *ai.ToolContext, input GetInformationCall) (string, error) {
			return "", errToolNotDispatched
		},
	)

	return &GenkitModel{
		g:         g,
		modelName: modelName,
		toolRefs: map[string]ai.ToolRef{
			ToolAddResource:    addResource,
			ToolGetInformation: getInformation,
		},
		logger: logger,
	}, nil
}

// Generate runs one model-decision step.
func (m *GenkitModel) Generate(ctx context.Context, req GenerateRequest) (*Reply, error) {
	messages, err := toGenkitMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(m.modelName),
		ai.WithSystem(req.System),
		ai.WithMessages(messages...),
		ai.WithReturnToolRequests(true),
	}

	if len(req.Tools) > 0 {
		refs := make([]ai.ToolRef, 0, len(req.Tools))
		for _, def := range req.Tools {
			ref, ok := m.toolRefs[def.Name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownTool, def.Name)
			}
			refs = append(refs, ref)
		}
		opts = append(opts, ai.WithTools(refs...))
	}

	if req.Stream != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return req.Stream(chunk.Text())
		}))
	}

	resp, err := genkit.Generate(ctx, m.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	reply := &Reply{Text: resp.Text()}
	for _, tr := range resp.ToolRequests() {
		args, err := json.Marshal(tr.Input)
		if err != nil {
			return nil, fmt.Errorf("marshal tool input for %s: %w", tr.Name, err)
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tr.Ref,
			Name:      tr.Name,
			Arguments: args,
		})
	}

	m.logger.Debug("model step done", "text_len", len(reply.Text), "tool_calls", len(reply.ToolCalls))
	return reply, nil
}

// toGenkitMessages converts conversation messages to Genkit's wire
// types. Tool calls round-trip through JSON because Genkit carries tool
// inputs as decoded values, not raw bytes.
func toGenkitMessages(messages []Message) ([]*ai.Message, error) {
	out := make([]*ai.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(msg.Text)))

		case RoleAssistant:
			var parts []*ai.Part
			if msg.Text != "" {
				parts = append(parts, ai.NewTextPart(msg.Text))
			}
			for _, call := range msg.ToolCalls {
				var input any
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &input); err != nil {
						return nil, fmt.Errorf("unmarshal tool arguments for %s: %w", call.Name, err)
					}
				}
				parts = append(parts, ai.NewToolRequestPart(&ai.ToolRequest{
					Name:  call.Name,
					Ref:   call.ID,
					Input: input,
				}))
			}
			out = append(out, ai.NewModelMessage(parts...))

		case RoleTool:
			parts := make([]*ai.Part, 0, len(msg.ToolResults))
			for _, res := range msg.ToolResults {
				parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
					Name:   res.Name,
					Ref:    res.ID,
					Output: res.Output,
				}))
			}
			out = append(out, &ai.Message{Role: ai.RoleTool, Content: parts})

		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	return out, nil
}
