// Package flow provides the per-agent execution loop for tripmesh model
// agents.
//
// A flow turns an agent's configuration into a sequence of model turns:
// request processors assemble the model input, the model response is
// emitted as events, requested function calls are executed and their
// responses fed back, until the model produces a final answer or the run
// escalates.
package flow

import (
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/tool"
)

// Flow defines the interface for agent execution flows.
//
// Execute drives the agent until its turn is complete, emitting every event
// through runCtx. It returns only unrecoverable errors (model failures,
// fatal tool errors, cancellation); escalations are events, not errors.
type Flow interface {
	Execute(runCtx *core.RunContext) error
}

// FlowAgent defines the interface that agents must implement to work with flows.
//
// This interface provides flows with access to agent capabilities without
// exposing the full agent implementation details.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetTools returns the registered tools keyed by name.
	GetTools() map[string]tool.Tool

	// IsStreamingEnabled returns whether streaming responses are enabled.
	IsStreamingEnabled() bool

	// GetOutputKey returns the session state key for saving responses.
	GetOutputKey() string

	// MaxHistoryMessages returns the maximum number of conversation history
	// messages sent to the model (0 = all).
	MaxHistoryMessages() int
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the chat request before LLM execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes the response after receiving it from the LLM.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse handles the LLM response before it is emitted.
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
