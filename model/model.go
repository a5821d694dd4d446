package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/tripmesh/core"
)

// Finish reasons normalised across providers.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonLength    = "length"
	// FinishReasonBlocked marks a prompt or candidate refused by provider
	// safety filters.
	FinishReasonBlocked = "blocked"
)

// BuiltinTool names a provider-native capability requested alongside
// function tools.
type BuiltinTool string

// BuiltinGoogleSearch asks the provider to ground answers with web search.
const BuiltinGoogleSearch BuiltinTool = "google_search"

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by flows.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	BuiltinTools []BuiltinTool    `json:"builtin_tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// HasBuiltin reports whether b was requested.
func (r Request) HasBuiltin(b BuiltinTool) bool {
	for _, t := range r.BuiltinTools {
		if t == b {
			return true
		}
	}

	return false
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"`
	// BlockReason carries the provider's explanation when FinishReason is blocked.
	BlockReason string      `json:"block_reason,omitempty"`
	Usage       *TokenUsage `json:"usage,omitempty"`
	Grounding   any         `json:"grounding,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name              string `json:"name"`
	Provider          string `json:"provider"`
	SupportsTools     bool   `json:"supports_tools"`
	SupportsGrounding bool   `json:"supports_grounding"`
}

// Model is the minimal interface required by flows & agents to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Func adapts a plain function to Model. Each call yields exactly one final
// response or an error.
type Func struct {
	Meta Info
	Fn   func(ctx context.Context, req Request) (Response, error)
}

// Generate implements Model.
func (f Func) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := f.Fn(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		out <- resp
	}()

	return out, errCh
}

// Info implements Model.
func (f Func) Info() Info { return f.Meta }

// ScriptedModel replays a fixed sequence of responses, one per Generate call,
// and records every request it receives. It is safe for concurrent use.
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	turns    []Response
	errs     map[int]error
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel that returns turns in order.
func NewScriptedModel(name string, turns ...Response) *ScriptedModel {
	return &ScriptedModel{
		info: Info{
			Name:              name,
			Provider:          "scripted",
			SupportsTools:     true,
			SupportsGrounding: true,
		},
		turns: turns,
		errs:  map[int]error{},
	}
}

// FailOn makes the nth call (zero based) return err instead of a response.
func (m *ScriptedModel) FailOn(n int, err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errs[n] = err

	return m
}

// WithInfo overrides the reported model metadata.
func (m *ScriptedModel) WithInfo(info Info) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.info = info

	return m
}

// Requests returns a copy of all requests observed so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, req)
	err, fail := m.errs[n]

	var resp Response
	if n < len(m.turns) {
		resp = m.turns[n]
	} else if !fail {
		err, fail = fmt.Errorf("scripted model %s: no response for call %d", m.info.Name, n), true
	}
	m.mu.Unlock()

	go func() {
		defer close(out)
		defer close(errCh)

		if fail {
			errCh <- err
			return
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case out <- resp:
		}
	}()

	return out, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.info
}

// TextResponse is a helper building a final assistant text response.
func TextResponse(text string) Response {
	return Response{
		Content:      core.NewTextContent("assistant", text),
		FinishReason: FinishReasonStop,
	}
}

// CallResponse is a helper building a final response requesting one function call.
func CallResponse(id, name, args string) Response {
	return Response{
		Content: core.Content{
			Role: "assistant",
			Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}},
			},
		},
		FinishReason: FinishReasonToolCalls,
	}
}
