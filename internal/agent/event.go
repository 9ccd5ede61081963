package agent

import "encoding/json"

// EventType tags the events emitted during a turn.
type EventType int

const (
	// EventTextDelta carries an incremental fragment of model text.
	EventTextDelta EventType = iota

	// EventToolRequested signals the model asked for a tool invocation.
	EventToolRequested

	// EventToolResolved signals a requested tool finished and its output
	// was appended to the conversation.
	EventToolResolved

	// EventDone terminates a successful turn.
	EventDone

	// EventError terminates a failed turn.
	EventError
)

// DoneReason explains why a turn terminated.
type DoneReason string

const (
	// DoneComplete means the model produced a final answer with no
	// further tool calls.
	DoneComplete DoneReason = "complete"

	// DoneStepLimit means the decision-step budget ran out before the
	// model stopped calling tools.
	DoneStepLimit DoneReason = "step_limit"
)

// Event is one item of a turn's output stream. Exactly the fields for
// its Type are set. Emission order matches generation order.
type Event struct {
	Type EventType

	// EventTextDelta
	TextDelta string

	// EventToolRequested and EventToolResolved
	ToolCallID string
	ToolName   string
	ToolArgs   json.RawMessage // requested only
	ToolOutput string          // resolved only

	// EventDone
	Reason    DoneReason
	FinalText string

	// EventError
	Err error
}

func (t EventType) String() string {
	switch t {
	case EventTextDelta:
		return "text-delta"
	case EventToolRequested:
		return "tool-requested"
	case EventToolResolved:
		return "tool-resolved"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}
