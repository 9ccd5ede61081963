package agent

import "encoding/json"

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured request the model issued against the tool
// catalog. Arguments are raw JSON, validated against the tool's schema
// before dispatch.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the string outcome of an executed ToolCall, fed back to
// the model as a tool message.
type ToolResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Output string `json:"output"`
}

// Message is one entry in a conversation. User and assistant messages
// carry text; assistant messages may additionally carry tool calls, and
// tool messages carry the matching results.
//
// Messages live only for the duration of a conversation; nothing here
// is persisted.
type Message struct {
	Role        Role         `json:"role"`
	Text        string       `json:"text,omitempty"`
	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`
	ToolResults []ToolResult `json:"toolResults,omitempty"`
}

// UserMessage builds a plain text user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// AssistantMessage builds a plain text assistant message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}
