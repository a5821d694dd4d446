package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
)

func newToolContext(t *testing.T, state map[string]any) *core.ToolContext {
	t.Helper()

	sess := core.NewSession("app", "user", "sess")
	sess.ApplyStateDelta(state)

	rc := core.NewRunContext(
		context.Background(),
		sess,
		"run-1",
		core.AgentInfo{Name: "root", Type: "model"},
		core.NewTextContent("user", "hi"),
		nil,
		nil,
		core.RunContextOptions{},
	)

	return core.NewToolContext(rc, "fc-1")
}

func TestFunctionTool_ValidatesArguments(t *testing.T) {
	called := false
	ft := NewFunctionTool("echo", "echo text", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		called = true
		return args["text"], nil
	})

	_, err := ft.Call(newToolContext(t, nil), map[string]any{})
	require.Error(t, err)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeValidation, te.Code)
	assert.False(t, called)

	out, err := ft.Call(newToolContext(t, nil), map[string]any{"text": "ciao"})
	require.NoError(t, err)
	assert.Equal(t, "ciao", out)
}

func TestFunctionTool_ExecutionErrors(t *testing.T) {
	plain := NewFunctionTool("fail", "", map[string]any{"type": "object"}, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := plain.Call(newToolContext(t, nil), nil)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeExecution, te.Code)
	assert.Equal(t, "boom", te.Message)

	custom := NewFunctionTool("custom", "", map[string]any{"type": "object"}, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, NewToolError("custom", "quota", "RATE_LIMITED")
	})

	_, err = custom.Call(newToolContext(t, nil), nil)
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "RATE_LIMITED", te.Code)
}

type lookupArgs struct {
	City  string   `json:"city" description:"City name"`
	Days  int      `json:"days"`
	Avoid []string `json:"avoid,omitempty"`
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	ft := NewFunctionToolFromStruct("lookup", "look up a city", func(_ *core.ToolContext, args lookupArgs) (any, error) {
		return args, nil
	})

	params := ft.Parameters()
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "city")
	assert.Contains(t, props, "days")
	assert.ElementsMatch(t, []string{"city", "days"}, params["required"])

	out, err := ft.Call(newToolContext(t, nil), map[string]any{
		"city":  "Rome",
		"days":  float64(3),
		"avoid": []any{"crowds"},
	})
	require.NoError(t, err)
	assert.Equal(t, lookupArgs{City: "Rome", Days: 3, Avoid: []string{"crowds"}}, out)

	def := Definition(ft)
	assert.Equal(t, "function", def.Type)
	assert.Equal(t, "lookup", def.Function.Name)
	assert.Equal(t, "look up a city", def.Function.Description)
}

func TestDecode_RejectsMismatchedShape(t *testing.T) {
	var out lookupArgs
	err := Decode(map[string]any{"days": map[string]any{"n": 1}}, &out)
	assert.Error(t, err)
}

func TestGoogleSearch_IsBuiltin(t *testing.T) {
	var gs Tool = GoogleSearch{}

	b, ok := gs.(Builtin)
	require.True(t, ok)
	assert.Equal(t, model.BuiltinGoogleSearch, b.Builtin())
	assert.Equal(t, "google_search", gs.Name())

	_, err := gs.Call(newToolContext(t, nil), nil)
	assert.Error(t, err)
}

// fakeAgent runs fn inside the child runner.
type fakeAgent struct {
	name string
	fn   func(rc *core.RunContext) error
}

func (a *fakeAgent) Name() string                     { return a.name }
func (a *fakeAgent) Description() string              { return "fake " + a.name }
func (a *fakeAgent) Run(rc *core.RunContext) error    { return a.fn(rc) }
func (a *fakeAgent) SetSubAgents(...core.Agent) error { return nil }
func (a *fakeAgent) SubAgents() []core.Agent          { return nil }
func (a *fakeAgent) Parent() core.Agent               { return nil }
func (a *fakeAgent) FindAgent(string) core.Agent      { return nil }

func TestAgentTool_ReturnsFinalTextAndPropagatesState(t *testing.T) {
	var seenRequest string
	var seenSeed any

	sub := &fakeAgent{name: "inspiration_agent", fn: func(rc *core.RunContext) error {
		seenRequest = rc.UserContent.Text()
		seenSeed, _ = rc.GetState("seed")

		rc.SetState("places", "colosseum")

		return rc.EmitEvent(core.NewMessageEvent(rc.RunID, "inspiration_agent", "Visit the Colosseum."))
	}}

	at := NewAgentTool(sub)
	assert.Equal(t, "inspiration_agent", at.Name())
	assert.Equal(t, []string{"request"}, at.Parameters()["required"])

	tc := newToolContext(t, map[string]any{"seed": 42})

	out, err := at.Call(tc, map[string]any{"request": "ideas for Rome"})
	require.NoError(t, err)
	assert.Equal(t, "Visit the Colosseum.", out)
	assert.Equal(t, "ideas for Rome", seenRequest)
	assert.Equal(t, 42, seenSeed)
	assert.Equal(t, "colosseum", tc.Actions().StateDelta["places"])
	assert.False(t, tc.Escalated())
	assert.Nil(t, tc.Actions().SkipSummarization)
}

func TestAgentTool_SkipSummarization(t *testing.T) {
	sub := &fakeAgent{name: "itinerary_agent", fn: func(rc *core.RunContext) error {
		return rc.EmitEvent(core.NewMessageEvent(rc.RunID, "itinerary_agent", "# Day 1"))
	}}

	tc := newToolContext(t, nil)

	out, err := NewAgentTool(sub, func(o *AgentToolOptions) { o.SkipSummarization = true }).
		Call(tc, map[string]any{"request": "format"})
	require.NoError(t, err)
	assert.Equal(t, "# Day 1", out)
	require.NotNil(t, tc.Actions().SkipSummarization)
	assert.True(t, *tc.Actions().SkipSummarization)
}

func TestAgentTool_PropagatesEscalation(t *testing.T) {
	sub := &fakeAgent{name: "activities_agent", fn: func(rc *core.RunContext) error {
		return rc.EmitEvent(core.NewEscalationEvent(rc.RunID, "activities_agent", "no routes found"))
	}}

	tc := newToolContext(t, nil)

	_, err := NewAgentTool(sub).Call(tc, map[string]any{"request": "route"})

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeEscalated, te.Code)
	assert.Equal(t, "no routes found", te.Message)
	assert.True(t, tc.Escalated())
}

func TestAgentTool_RunFailureIsFatal(t *testing.T) {
	boom := errors.New("upstream down")
	sub := &fakeAgent{name: "itinerary_agent", fn: func(*core.RunContext) error { return boom }}

	_, err := NewAgentTool(sub).Call(newToolContext(t, nil), map[string]any{"request": "x"})

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "itinerary_agent", fatal.Tool)
	assert.ErrorIs(t, err, boom)
}

func TestAgentTool_MissingRequest(t *testing.T) {
	sub := &fakeAgent{name: "a", fn: func(*core.RunContext) error { return nil }}

	_, err := NewAgentTool(sub).Call(newToolContext(t, nil), map[string]any{})

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeValidation, te.Code)
}
