package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/lorebase/lore/internal/knowledge"
)

// Tool names as exposed to the model.
const (
	ToolAddResource    = "addResource"
	ToolGetInformation = "getInformation"
)

// Tool results are strings the model reads and reacts to; they must be
// short and non-technical, and they distinguish what the model can act
// on (bad input it may correct) from what it cannot (a failing service).
const (
	// ToolErrorMessage is the generic apology for service and storage
	// failures.
	ToolErrorMessage = "Error, please try again."

	// InvalidInputMessage reports a request that failed schema
	// validation. The model may reformulate and retry.
	InvalidInputMessage = "Invalid tool input, please check the arguments and try again."

	// EmptyContentMessage reports an ingestion request with nothing to
	// store.
	EmptyContentMessage = "Error, the resource content must not be empty."
)

// ErrUnknownTool indicates the model requested a tool outside the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// ErrInvalidToolInput indicates tool arguments failed schema validation.
var ErrInvalidToolInput = errors.New("invalid tool input")

// AddResourceCall is a validated request to ingest content.
type AddResourceCall struct {
	Content string `json:"content" jsonschema:"the content or resource to add to the knowledge base"`
}

// GetInformationCall is a validated request to query the knowledge base.
type GetInformationCall struct {
	Question string `json:"question" jsonschema:"the question to look up in the knowledge base"`
}

// KnowledgeBase is what the tool layer needs from the knowledge
// service. *knowledge.Service satisfies it.
type KnowledgeBase interface {
	AddResource(ctx context.Context, content string) (string, error)
	FindRelevant(ctx context.Context, question string) ([]knowledge.Match, error)
}

// toolbox holds the resolved schemas and dispatches validated calls.
type toolbox struct {
	kb     KnowledgeBase
	logger *slog.Logger

	addResourceSchema    *jsonschema.Resolved
	getInformationSchema *jsonschema.Resolved

	definitions []ToolDefinition
}

func newToolbox(kb KnowledgeBase, autoIngest bool, logger *slog.Logger) (*toolbox, error) {
	if logger == nil {
		logger = slog.Default()
	}

	addSchema, err := jsonschema.For[AddResourceCall](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", ToolAddResource, err)
	}
	addResolved, err := addSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema for %s: %w", ToolAddResource, err)
	}

	getSchema, err := jsonschema.For[GetInformationCall](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", ToolGetInformation, err)
	}
	getResolved, err := getSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema for %s: %w", ToolGetInformation, err)
	}

	definitions := []ToolDefinition{
		{
			Name: ToolGetInformation,
			Description: "Get information from your knowledge base to answer questions. " +
				"Always call this before answering a factual question.",
			InputSchema: getSchema,
		},
	}
	// Ingestion is only offered when the no-confirmation policy is on;
	// without it the model has no write path to the knowledge base.
	if autoIngest {
		definitions = append(definitions, ToolDefinition{
			Name: ToolAddResource,
			Description: "Add a resource to your knowledge base. " +
				"If the user provides a random piece of knowledge unprompted, " +
				"use this tool without asking for confirmation.",
			InputSchema: addSchema,
		})
	}

	return &toolbox{
		kb:                   kb,
		logger:               logger,
		addResourceSchema:    addResolved,
		getInformationSchema: getResolved,
		definitions:          definitions,
	}, nil
}

// parse validates call arguments against the tool's schema and returns
// the matching tagged variant: *AddResourceCall or *GetInformationCall.
func (t *toolbox) parse(call ToolCall) (any, error) {
	raw := call.Arguments
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	var instance map[string]any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidToolInput, call.Name, err)
	}

	switch call.Name {
	case ToolAddResource:
		if err := t.addResourceSchema.Validate(instance); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidToolInput, call.Name, err)
		}
		var parsed AddResourceCall
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidToolInput, call.Name, err)
		}
		return &parsed, nil

	case ToolGetInformation:
		if err := t.getInformationSchema.Validate(instance); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidToolInput, call.Name, err)
		}
		var parsed GetInformationCall
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidToolInput, call.Name, err)
		}
		return &parsed, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
}

// execute runs one tool call and always returns a string the model can
// read. Failures never propagate as errors on this path; validation
// failures become descriptive strings the model can correct, service
// and storage failures become the generic apology.
func (t *toolbox) execute(ctx context.Context, call ToolCall) string {
	parsed, err := t.parse(call)
	if err != nil {
		t.logger.Warn("tool call rejected", "tool", call.Name, "error", err)
		return InvalidInputMessage
	}

	switch c := parsed.(type) {
	case *AddResourceCall:
		msg, err := t.kb.AddResource(ctx, c.Content)
		if err != nil {
			if errors.Is(err, knowledge.ErrEmptyContent) {
				t.logger.Warn("addResource rejected empty content")
				return EmptyContentMessage
			}
			t.logger.Error("addResource failed", "error", err)
			return ToolErrorMessage
		}
		return msg

	case *GetInformationCall:
		matches, err := t.kb.FindRelevant(ctx, c.Question)
		if err != nil {
			t.logger.Error("getInformation failed", "error", err)
			return ToolErrorMessage
		}
		return formatMatches(matches)

	default:
		return ToolErrorMessage
	}
}

// formatMatches renders retrieval results as JSON for the model. An
// empty result renders as an empty array, signalling "no relevant
// knowledge" rather than an error.
func formatMatches(matches []knowledge.Match) string {
	type row struct {
		Content    string  `json:"content"`
		Similarity float64 `json:"similarity"`
	}
	rows := make([]row, len(matches))
	for i, m := range matches {
		rows[i] = row{Content: m.Content, Similarity: m.Similarity}
	}
	out, err := json.Marshal(rows)
	if err != nil {
		return ToolErrorMessage
	}
	return string(out)
}
