package testutil

import (
	"github.com/hupe1980/tripmesh/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Author("city_short_trip_planner").Text("# Rome").Build()
//
// Chain only the parts you need; the invocation defaults to "run" and the
// author to "agent".
type EventBuilder struct {
	author       string
	invocationID string
	role         string
	parts        []core.Part
	partial      *bool
	escalate     bool
	errMessage   string
	stateDelta   map[string]any
}

// NewEventBuilder creates a builder with default author "agent".
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{author: "agent", invocationID: "run"}
}

// Author sets the author name for the event (chainable).
func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

// Invocation sets the invocation ID associated with the event (chainable).
func (b *EventBuilder) Invocation(id string) *EventBuilder { b.invocationID = id; return b }

// Partial marks the event as a streaming chunk (chainable).
func (b *EventBuilder) Partial() *EventBuilder { p := true; b.partial = &p; return b }

// Text appends an assistant text part (chainable).
func (b *EventBuilder) Text(t string) *EventBuilder {
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// UserText appends a text part and sets the role to user (chainable).
func (b *EventBuilder) UserText(t string) *EventBuilder {
	b.role = "user"
	return b.Text(t)
}

// Data appends a structured data part (chainable).
func (b *EventBuilder) Data(d map[string]any) *EventBuilder {
	b.parts = append(b.parts, core.DataPart{Data: d})
	return b
}

// FunctionCall adds a function call part with a JSON argument string (chainable).
func (b *EventBuilder) FunctionCall(id, name, args string) *EventBuilder {
	b.parts = append(b.parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}})
	return b
}

// FunctionResponse adds a function response part (chainable).
func (b *EventBuilder) FunctionResponse(id, name string, result any) *EventBuilder {
	b.role = "tool"
	b.parts = append(b.parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: id, Name: name, Response: result}})

	return b
}

// Escalate sets the escalate action with an optional message (chainable).
func (b *EventBuilder) Escalate(message string) *EventBuilder {
	b.escalate = true
	b.errMessage = message

	return b
}

// StateDelta records a state change on the event (chainable).
func (b *EventBuilder) StateDelta(key string, val any) *EventBuilder {
	if b.stateDelta == nil {
		b.stateDelta = map[string]any{}
	}

	b.stateDelta[key] = val

	return b
}

// Build constructs the core.Event value.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.invocationID, b.author)
	if b.escalate {
		ev = core.NewEscalationEvent(b.invocationID, b.author, b.errMessage)
	}

	ev.Partial = b.partial
	ev.Actions.StateDelta = b.stateDelta

	if len(b.parts) > 0 {
		role := b.role
		if role == "" {
			role = "assistant"
		}

		ev.Content = &core.Content{Role: role, Parts: append([]core.Part(nil), b.parts...)}
	}

	return ev
}
