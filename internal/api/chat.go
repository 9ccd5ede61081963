package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lorebase/lore/internal/agent"
)

// maxChatBodyBytes caps chat request bodies at 1 MiB.
const maxChatBodyBytes = 1 << 20

// SSE event names for the streaming chat endpoint.
const (
	sseEventTextDelta     = "text-delta"
	sseEventToolRequested = "tool-requested"
	sseEventToolResolved  = "tool-resolved"
	sseEventDone          = "done"
	sseEventError         = "error"
)

// chatHandler serves the conversational endpoints.
//
//   - POST /api/chat        - whole turn as one JSON response
//   - POST /api/chat/stream - turn as an SSE event stream
type chatHandler struct {
	agent  *agent.Agent
	logger *slog.Logger
}

// chatMessage is one history entry on the wire. Only plain text crosses
// the API boundary; tool traffic stays internal to a turn.
type chatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// chatRequest is an ordered message history. The last message must be
// from the user; it is the input for this turn.
type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Response string `json:"response"`
	Reason   string `json:"reason"`
	Steps    int    `json:"steps"`
}

// toolEventPayload is the SSE data for tool lifecycle events.
type toolEventPayload struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Args   json.RawMessage `json:"args,omitempty"`
	Output string          `json:"output,omitempty"`
}

type textDeltaPayload struct {
	Text string `json:"text"`
}

type donePayload struct {
	Response string `json:"response"`
	Reason   string `json:"reason"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// parseChatRequest decodes and validates the request body, splitting it
// into prior history and the current user input.
func parseChatRequest(w http.ResponseWriter, r *http.Request) (history []agent.Message, input string, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req chatRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		return nil, "", fmt.Errorf("invalid JSON body: %w", decodeErr)
	}
	if len(req.Messages) == 0 {
		return nil, "", fmt.Errorf("messages must not be empty")
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Role != string(agent.RoleUser) {
		return nil, "", fmt.Errorf("last message must be from the user")
	}
	if strings.TrimSpace(last.Text) == "" {
		return nil, "", fmt.Errorf("message text must not be empty")
	}

	for _, m := range req.Messages[:len(req.Messages)-1] {
		switch m.Role {
		case string(agent.RoleUser):
			history = append(history, agent.UserMessage(m.Text))
		case string(agent.RoleAssistant):
			history = append(history, agent.AssistantMessage(m.Text))
		default:
			return nil, "", fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	return history, last.Text, nil
}

// send handles POST /api/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	history, input, err := parseChatRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
		return
	}

	resp, err := h.agent.Execute(r.Context(), history, input)
	if err != nil {
		h.logger.Error("chat turn failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "chat_failed", "could not complete the conversation turn", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response: resp.FinalText,
		Reason:   string(resp.Reason),
		Steps:    resp.Steps,
	}, h.logger)
}

// stream handles POST /api/chat/stream with Server-Sent Events.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	history, input, err := parseChatRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	_, err = h.agent.ExecuteStream(r.Context(), history, input, func(e agent.Event) {
		switch e.Type {
		case agent.EventTextDelta:
			h.writeEvent(w, flusher, sseEventTextDelta, textDeltaPayload{Text: e.TextDelta})
		case agent.EventToolRequested:
			h.writeEvent(w, flusher, sseEventToolRequested, toolEventPayload{
				ID:   e.ToolCallID,
				Name: e.ToolName,
				Args: e.ToolArgs,
			})
		case agent.EventToolResolved:
			h.writeEvent(w, flusher, sseEventToolResolved, toolEventPayload{
				ID:     e.ToolCallID,
				Name:   e.ToolName,
				Output: e.ToolOutput,
			})
		case agent.EventDone:
			h.writeEvent(w, flusher, sseEventDone, donePayload{
				Response: e.FinalText,
				Reason:   string(e.Reason),
			})
		case agent.EventError:
			h.writeEvent(w, flusher, sseEventError, errorPayload{
				Code:    "chat_failed",
				Message: "could not complete the conversation turn",
			})
		}
	})
	if err != nil {
		// The error event already went out; nothing more to send on a
		// committed SSE response.
		h.logger.Error("chat stream failed", "error", err, "request_id", requestIDFromContext(r.Context()))
	}
}

// writeEvent writes one SSE frame: "event: <type>\ndata: <json>\n\n".
func (h *chatHandler) writeEvent(w io.Writer, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("marshal sse payload", "event", event, "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		h.logger.Debug("write sse frame", "error", err)
		return
	}
	flusher.Flush()
}
