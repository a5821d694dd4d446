package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/session"
)

// scriptAgent emits the configured events then returns err.
type scriptAgent struct {
	events  []core.Event
	err     error
	emitted atomic.Int32
	block   bool
}

func (a *scriptAgent) Name() string                     { return "script" }
func (a *scriptAgent) Description() string              { return "" }
func (a *scriptAgent) Type() string                     { return "test" }
func (a *scriptAgent) SetSubAgents(...core.Agent) error { return nil }
func (a *scriptAgent) SubAgents() []core.Agent          { return nil }
func (a *scriptAgent) Parent() core.Agent               { return nil }
func (a *scriptAgent) FindAgent(string) core.Agent      { return nil }

func (a *scriptAgent) Run(rc *core.RunContext) error {
	for _, ev := range a.events {
		if err := rc.EmitEvent(ev); err != nil {
			return err
		}
		a.emitted.Add(1)
	}

	if a.block {
		<-rc.Done()
		return rc.Err()
	}

	return a.err
}

func newRunner(t *testing.T, a core.Agent) (*Runner, string) {
	t.Helper()

	store := session.NewInMemoryStore()
	_, err := store.Create(context.Background(), "app", "user", "sess")
	require.NoError(t, err)

	return New(a, func(o *Options) { o.SessionStore = store }), "sess"
}

func TestRunner_PersistsAndStreamsInOrder(t *testing.T) {
	skip := true
	ev3 := core.NewMessageEvent("", "script", "three")
	ev3.Actions.StateDelta = map[string]any{"k": "v"}
	ev3.Actions.SkipSummarization = &skip

	a := &scriptAgent{events: []core.Event{
		core.NewMessageEvent("", "script", "one"),
		core.NewMessageEvent("", "script", "two"),
		ev3,
	}}
	r, sid := newRunner(t, a)

	runID, events, errs, err := r.Run(context.Background(), sid, core.NewTextContent("user", "hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	var texts []string
	for ev := range events {
		assert.Equal(t, runID, ev.InvocationID)
		texts = append(texts, ev.Content.Text())
	}
	require.NoError(t, <-errs)
	assert.Equal(t, []string{"one", "two", "three"}, texts)

	sess, err := r.SessionStore().Get(context.Background(), sid)
	require.NoError(t, err)

	history := sess.GetEvents()
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[0].Author)
	assert.Equal(t, "hi", history[0].Content.Text())

	v, ok := sess.GetState("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestRunner_PartialEventsNotPersisted(t *testing.T) {
	partial := true
	p := core.NewMessageEvent("", "script", "o")
	p.Partial = &partial

	r, sid := newRunner(t, &scriptAgent{events: []core.Event{p, core.NewMessageEvent("", "script", "ok")}})

	n := 0
	for _, err := range r.Events(context.Background(), sid, core.NewTextContent("user", "hi")) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)

	sess, _ := r.SessionStore().Get(context.Background(), sid)
	assert.Len(t, sess.GetEvents(), 2)
}

func TestRunner_AgentErrorIsWrapped(t *testing.T) {
	boom := errors.New("provider unavailable")
	r, sid := newRunner(t, &scriptAgent{err: boom})

	var got error
	for _, err := range r.Events(context.Background(), sid, core.NewTextContent("user", "hi")) {
		got = err
	}

	require.Error(t, got)
	assert.ErrorIs(t, got, boom)
	assert.Contains(t, got.Error(), "agent execution failed")
}

func TestRunner_UnknownSession(t *testing.T) {
	r := New(&scriptAgent{})

	_, _, _, err := r.Run(context.Background(), "missing", core.NewTextContent("user", "hi"))
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestRunner_EarlyBreakCancelsRun(t *testing.T) {
	a := &scriptAgent{
		events: []core.Event{
			core.NewMessageEvent("", "script", "first"),
			core.NewMessageEvent("", "script", "second"),
		},
		block: true,
	}
	r, sid := newRunner(t, a)

	for ev, err := range r.Events(context.Background(), sid, core.NewTextContent("user", "hi")) {
		require.NoError(t, err)
		assert.Equal(t, "first", ev.Content.Text())
		break
	}

	require.Eventually(t, func() bool { return r.ActiveRuns() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRunner_SequenceIsNotRestartable(t *testing.T) {
	r, sid := newRunner(t, &scriptAgent{events: []core.Event{core.NewMessageEvent("", "script", "x")}})
	seq := r.Events(context.Background(), sid, core.NewTextContent("user", "hi"))

	for range seq {
	}

	var got error
	for _, err := range seq {
		got = err
	}
	assert.ErrorIs(t, got, ErrSequenceConsumed)
}

func TestRunner_Cancel(t *testing.T) {
	r, sid := newRunner(t, &scriptAgent{block: true})

	runID, events, errs, err := r.Run(context.Background(), sid, core.NewTextContent("user", "hi"))
	require.NoError(t, err)

	require.NoError(t, r.Cancel(runID))

	for range events {
	}
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.Error(t, r.Cancel("nope"))
}
