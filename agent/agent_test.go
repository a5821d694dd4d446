package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/runner"
	"github.com/hupe1980/tripmesh/session"
	"github.com/hupe1980/tripmesh/tool"
)

func collect(t *testing.T, a core.Agent, state map[string]any) ([]core.Event, *session.InMemoryStore, error) {
	t.Helper()

	ctx := context.Background()
	store := session.NewInMemoryStore()

	_, err := store.Create(ctx, "app", "user", "s1")
	require.NoError(t, err)

	if len(state) > 0 {
		require.NoError(t, store.ApplyDelta(ctx, "s1", state))
	}

	r := runner.New(a, func(o *runner.Options) { o.SessionStore = store })

	var events []core.Event

	for ev, err := range r.Events(ctx, "s1", core.NewTextContent("user", "Rome, 2 days")) {
		if err != nil {
			return events, store, err
		}

		events = append(events, ev)
	}

	return events, store, nil
}

func TestBaseAgent_Hierarchy(t *testing.T) {
	m := model.NewScriptedModel("m")
	root := NewModelAgent("root", m)
	child := NewModelAgent("child", m)
	grandchild := NewModelAgent("grandchild", m)

	require.NoError(t, child.SetSubAgents(grandchild))
	require.NoError(t, root.SetSubAgents(child))

	assert.Nil(t, root.Parent())
	assert.Same(t, root, child.Parent())
	assert.Same(t, child, grandchild.Parent())
	assert.Same(t, grandchild, root.FindAgent("grandchild"))
	assert.Same(t, root, root.FindAgent("root"))
	assert.Nil(t, root.FindAgent("nobody"))
	assert.Len(t, root.SubAgents(), 1)

	other := NewModelAgent("other", m)
	assert.Error(t, other.SetSubAgents(child), "single parent")

	require.NoError(t, root.SetSubAgents())
	assert.Nil(t, child.Parent())
}

func TestModelAgent_Defaults(t *testing.T) {
	m := model.NewScriptedModel("m")
	a := NewModelAgent("scout", m, func(o *ModelAgentOptions) {
		o.Description = "Finds places."
		o.Tools = []tool.Tool{tool.GoogleSearch{}}
	})

	assert.Equal(t, "scout", a.GetName())
	assert.Equal(t, "Finds places.", a.Description())
	assert.Equal(t, "model", a.Type())
	assert.True(t, a.IsStreamingEnabled())
	assert.True(t, a.HasTool("google_search"))
	assert.Equal(t, []string{"google_search"}, a.ListTools())
	assert.True(t, a.Instruction().IsStatic())
	assert.Equal(t, "You are scout, a helpful AI assistant.", a.Instruction().Text())

	tools := a.GetTools()
	delete(tools, "google_search")
	assert.True(t, a.HasTool("google_search"), "GetTools returns a copy")
}

func TestModelAgent_RunStreamsAndStoresOutput(t *testing.T) {
	m := model.NewScriptedModel("m", model.TextResponse("Colosseum, Trastevere"))
	a := NewModelAgent("inspiration_agent", m, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("Suggest places in {{.city}}.")
		o.OutputKey = "inspiration"
	})

	events, store, err := collect(t, a, map[string]any{"city": "Rome"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "inspiration_agent", events[0].Author)
	assert.Equal(t, "Suggest places in Rome.", m.Requests()[0].Instructions)

	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)

	v, _ := sess.GetState("inspiration")
	assert.Equal(t, "Colosseum, Trastevere", v)
}

func TestModelAgent_DelegatesThroughAgentTool(t *testing.T) {
	subModel := model.NewScriptedModel("sub", model.TextResponse("Walk from the Pantheon to Piazza Navona."))
	sub := NewModelAgent("activities_agent", subModel)

	rootModel := model.NewScriptedModel("root",
		model.CallResponse("fc-1", "activities_agent", `{"request":"route the places"}`),
		model.TextResponse("Your itinerary"),
	)
	root := NewModelAgent("city_short_trip_planner", rootModel, func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{tool.NewAgentTool(sub)}
	})

	events, _, err := collect(t, root, nil)
	require.NoError(t, err)
	require.Len(t, events, 3)

	fr := events[1].GetFunctionResponses()[0]
	assert.Equal(t, "Walk from the Pantheon to Piazza Navona.", fr.Response)
	assert.Equal(t, "Your itinerary", events[2].Content.Text())

	subReqs := subModel.Requests()
	require.Len(t, subReqs, 1)
	require.Len(t, subReqs[0].Contents, 1)
	assert.Equal(t, "route the places", subReqs[0].Contents[0].Text())

	for _, ev := range events {
		assert.NotEqual(t, "activities_agent", ev.Author, "sub-agent events stay in the child session")
	}
}

func TestModelAgent_WrapsModelErrors(t *testing.T) {
	upstream := errors.New("quota exceeded")
	a := NewModelAgent("planner", model.NewScriptedModel("m").FailOn(0, upstream))

	_, _, err := collect(t, a, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Contains(t, err.Error(), "agent planner")
}

// stepAgent records its invocation and optionally fails.
type stepAgent struct {
	BaseAgent
	order *[]string
	err   error
}

func newStep(name string, order *[]string, err error) *stepAgent {
	s := &stepAgent{BaseAgent: NewBaseAgent(name), order: order, err: err}
	s.bind(s)

	return s
}

func (s *stepAgent) Run(rc *core.RunContext) error {
	*s.order = append(*s.order, s.Name()+"@"+rc.Agent.Name)

	prev, _ := rc.GetState("trail")
	trail, _ := prev.(string)
	rc.SetState("trail", trail+s.Name()+";")

	if err := rc.EmitEvent(core.NewMessageEvent(rc.RunID, s.Name(), s.Name()+" done")); err != nil {
		return err
	}

	return s.err
}

func TestSequentialAgent_RunsInOrderWithSharedState(t *testing.T) {
	var order []string

	seq, err := NewSequentialAgent("pipeline",
		newStep("a", &order, nil),
		newStep("b", &order, nil),
		newStep("c", &order, nil),
	)
	require.NoError(t, err)
	assert.Equal(t, "sequential", seq.Type())

	events, store, err := collect(t, seq, nil)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"a@a", "b@b", "c@c"}, order)

	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)

	trail, _ := sess.GetState("trail")
	assert.Equal(t, "a;b;c;", trail)
}

func TestSequentialAgent_StopsOnError(t *testing.T) {
	var order []string
	boom := errors.New("boom")

	seq, err := NewSequentialAgent("pipeline",
		newStep("a", &order, boom),
		newStep("b", &order, nil),
	)
	require.NoError(t, err)

	_, _, err = collect(t, seq, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "sequential execution failed at agent a")
	assert.Equal(t, []string{"a@a"}, order)
}

func TestSequentialAgent_StopsQuietlyOnEscalation(t *testing.T) {
	var order []string

	seq, err := NewSequentialAgent("pipeline",
		newStep("a", &order, ErrEscalated),
		newStep("b", &order, nil),
	)
	require.NoError(t, err)

	_, _, err = collect(t, seq, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@a"}, order)
}

func TestStepAgent_IsolatesAnswerAndStoresOutput(t *testing.T) {
	innerModel := model.NewScriptedModel("inner", model.TextResponse("Pantheon, Trastevere"))
	inner := NewModelAgent("inspiration_agent", innerModel)

	step := NewStepAgent(inner, func(o *StepAgentOptions) {
		o.OutputKey = "inspiration"
	})
	assert.Equal(t, "inspiration_agent", step.Name())
	assert.Equal(t, "step", step.Type())

	events, store, err := collect(t, step, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Len(t, events[0].GetFunctionCalls(), 1)
	require.Len(t, events[1].GetFunctionResponses(), 1)
	assert.Equal(t, "Pantheon, Trastevere", events[1].GetFunctionResponses()[0].Response)

	for _, ev := range events {
		assert.False(t, ev.IsFinalResponse(), "step events are intermediate")
	}

	reqs := innerModel.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Rome, 2 days", reqs[0].Contents[0].Text())

	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)

	v, _ := sess.GetState("inspiration")
	assert.Equal(t, "Pantheon, Trastevere", v)
}

func TestStepAgent_PipelineFeedsLaterSteps(t *testing.T) {
	first := NewModelAgent("inspiration_agent", model.NewScriptedModel("a", model.TextResponse("Colosseum")))
	secondModel := model.NewScriptedModel("b", model.TextResponse("Walk 10 min"))
	second := NewModelAgent("activities_agent", secondModel)
	finalModel := model.NewScriptedModel("c", model.TextResponse("Day 1: Colosseum"))
	final := NewModelAgent("itinerary_agent", finalModel, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("Routes: {{.activities}}")
	})

	seq, err := NewSequentialAgent("pipeline",
		NewStepAgent(first, func(o *StepAgentOptions) { o.OutputKey = "inspiration" }),
		NewStepAgent(second, func(o *StepAgentOptions) {
			o.OutputKey = "activities"
			o.Request = func(rc *core.RunContext) string {
				places, _ := rc.GetState("inspiration")
				return "Route: " + places.(string)
			}
		}),
		final,
	)
	require.NoError(t, err)

	events, _, err := collect(t, seq, nil)
	require.NoError(t, err)
	require.Len(t, events, 5)

	last := events[len(events)-1]
	assert.True(t, last.IsFinalResponse())
	assert.Equal(t, "Day 1: Colosseum", last.Content.Text())

	assert.Equal(t, "Route: Colosseum", secondModel.Requests()[0].Contents[0].Text())
	assert.Equal(t, "Routes: Walk 10 min", finalModel.Requests()[0].Instructions)
}

func TestStepAgent_EscalationStopsPipeline(t *testing.T) {
	blocked := model.Response{FinishReason: model.FinishReasonBlocked, BlockReason: "SAFETY"}
	first := NewModelAgent("inspiration_agent", model.NewScriptedModel("a", blocked))
	finalModel := model.NewScriptedModel("c", model.TextResponse("never"))
	final := NewModelAgent("itinerary_agent", finalModel)

	seq, err := NewSequentialAgent("pipeline", NewStepAgent(first), final)
	require.NoError(t, err)

	events, _, err := collect(t, seq, nil)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.True(t, last.IsEscalation())
	assert.True(t, last.IsFinalResponse())
	assert.Empty(t, finalModel.Requests())
}
