// Package agent runs the tool-calling loop between the language model
// and the knowledge base.
//
// One call to ExecuteStream is one conversation turn: the model is
// asked for a decision, any tool calls it issues are executed and fed
// back, and the loop repeats until the model answers in plain text or
// the step budget runs out. Progress is surfaced as typed events in
// generation order.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// SystemPrompt grounds every answer in retrieved knowledge.
	SystemPrompt = `You are a helpful assistant. Check your knowledge base before answering any questions.
Only respond to questions using information from tool calls.
If no relevant information is found in the tool calls, respond, "Sorry, I don't know."`

	// autoIngestPrompt is appended when the no-confirmation ingestion
	// policy is enabled.
	autoIngestPrompt = `
If the user provides a random piece of knowledge unprompted, use the addResource tool to store it without asking for confirmation.`

	// FallbackMessage is returned when the model produces no text at all.
	FallbackMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// Config carries the agent's dependencies and policy knobs.
type Config struct {
	Model     Model
	Knowledge KnowledgeBase
	Logger    *slog.Logger

	// MaxSteps bounds model-decision steps per turn (default 5).
	MaxSteps int

	// TurnTimeout bounds one turn's wall clock (default 30s).
	TurnTimeout time.Duration

	// AutoIngest offers the addResource tool and instructs the model to
	// store unprompted facts without confirmation.
	AutoIngest bool

	// RateLimiter throttles model calls across turns (nil = default).
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Model == nil {
		return errors.New("model is required")
	}
	if cfg.Knowledge == nil {
		return errors.New("knowledge base is required")
	}
	return nil
}

// Response is the collected outcome of one turn.
type Response struct {
	FinalText string
	Reason    DoneReason
	Steps     int
	Messages  []Message // full turn transcript including tool traffic
}

// Agent is the tool-calling orchestrator. It is stateless across turns
// and safe for concurrent use.
type Agent struct {
	model       Model
	tools       *toolbox
	system      string
	maxSteps    int
	turnTimeout time.Duration
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// New creates an Agent from cfg, applying defaults for zero values.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 5
	}

	turnTimeout := cfg.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = 30 * time.Second
	}

	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	tools, err := newToolbox(cfg.Knowledge, cfg.AutoIngest, logger)
	if err != nil {
		return nil, err
	}

	system := SystemPrompt
	if cfg.AutoIngest {
		system += autoIngestPrompt
	}

	return &Agent{
		model:       cfg.Model,
		tools:       tools,
		system:      system,
		maxSteps:    maxSteps,
		turnTimeout: turnTimeout,
		rateLimiter: rl,
		logger:      logger,
	}, nil
}

// Execute runs one turn without event delivery.
func (a *Agent) Execute(ctx context.Context, history []Message, input string) (*Response, error) {
	return a.ExecuteStream(ctx, history, input, nil)
}

// ExecuteStream runs one turn. emit, when non-nil, receives events in
// generation order, synchronously, from the calling goroutine; the last
// event is always EventDone or EventError.
//
// Cancelling ctx stops the loop before the next model step. A tool call
// already issued runs to completion so no partial writes are abandoned
// mid-record.
func (a *Agent) ExecuteStream(ctx context.Context, history []Message, input string, emit func(Event)) (*Response, error) {
	if emit == nil {
		emit = func(Event) {}
	}

	ctx, cancel := context.WithTimeout(ctx, a.turnTimeout)
	defer cancel()

	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, UserMessage(input))

	var lastText string
	for step := 1; step <= a.maxSteps; step++ {
		if err := a.rateLimiter.Wait(ctx); err != nil {
			return a.fail(emit, fmt.Errorf("rate limit wait: %w", err))
		}

		reply, err := a.model.Generate(ctx, GenerateRequest{
			System:   a.system,
			Messages: messages,
			Tools:    a.tools.definitions,
			Stream: func(delta string) error {
				emit(Event{Type: EventTextDelta, TextDelta: delta})
				return nil
			},
		})
		if err != nil {
			return a.fail(emit, fmt.Errorf("model step %d: %w", step, err))
		}

		if reply.Text != "" {
			lastText = reply.Text
		}

		if len(reply.ToolCalls) == 0 {
			final := reply.Text
			if strings.TrimSpace(final) == "" {
				a.logger.Warn("model returned empty final response")
				final = FallbackMessage
			}
			emit(Event{Type: EventDone, Reason: DoneComplete, FinalText: final})
			messages = append(messages, AssistantMessage(final))
			return &Response{
				FinalText: final,
				Reason:    DoneComplete,
				Steps:     step,
				Messages:  messages,
			}, nil
		}

		a.logger.Debug("model requested tools", "step", step, "count", len(reply.ToolCalls))
		messages = append(messages, Message{
			Role:      RoleAssistant,
			Text:      reply.Text,
			ToolCalls: reply.ToolCalls,
		})

		// Issued calls run on an uncancellable context so an abandoned
		// stream never interrupts a write mid-record. Sequential on
		// purpose: calls within a step must not race each other.
		execCtx := context.WithoutCancel(ctx)
		results := make([]ToolResult, 0, len(reply.ToolCalls))
		for _, call := range reply.ToolCalls {
			emit(Event{
				Type:       EventToolRequested,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				ToolArgs:   call.Arguments,
			})

			output := a.tools.execute(execCtx, call)

			emit(Event{
				Type:       EventToolResolved,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				ToolOutput: output,
			})
			results = append(results, ToolResult{ID: call.ID, Name: call.Name, Output: output})
		}
		messages = append(messages, Message{Role: RoleTool, ToolResults: results})

		if err := ctx.Err(); err != nil {
			return a.fail(emit, fmt.Errorf("turn aborted after step %d: %w", step, err))
		}
	}

	// Budget exhausted: stop issuing calls and surface whatever text the
	// model produced along the way.
	final := lastText
	if strings.TrimSpace(final) == "" {
		final = FallbackMessage
	}
	a.logger.Info("step budget exhausted", "max_steps", a.maxSteps)
	emit(Event{Type: EventDone, Reason: DoneStepLimit, FinalText: final})
	messages = append(messages, AssistantMessage(final))
	return &Response{
		FinalText: final,
		Reason:    DoneStepLimit,
		Steps:     a.maxSteps,
		Messages:  messages,
	}, nil
}

func (a *Agent) fail(emit func(Event), err error) (*Response, error) {
	a.logger.Error("turn failed", "error", err)
	emit(Event{Type: EventError, Err: err})
	return nil, err
}
