package core

import (
	"context"
	"testing"
	"time"
)

type rcMockSessionStore struct {
	applied map[string]map[string]any
	sess    *Session
}

func (m *rcMockSessionStore) Create(_ context.Context, app, user, id string) (*Session, error) {
	m.sess = NewSession(app, user, id)
	return m.sess, nil
}

func (m *rcMockSessionStore) Get(context.Context, string) (*Session, error) { return m.sess, nil }

func (m *rcMockSessionStore) AppendEvent(_ context.Context, _ string, ev Event) error {
	m.sess.AddEvent(ev)
	return nil
}

func (m *rcMockSessionStore) ApplyDelta(_ context.Context, id string, d map[string]any) error {
	if m.applied == nil {
		m.applied = map[string]map[string]any{}
	}
	m.applied[id] = d
	return nil
}

type rcMockArtifactStore struct{ saved map[string][]byte }

func (m *rcMockArtifactStore) Save(_ context.Context, _, id string, data []byte) error {
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	m.saved[id] = data
	return nil
}

func (m *rcMockArtifactStore) Get(_ context.Context, _, id string) ([]byte, error) {
	return m.saved[id], nil
}

func (m *rcMockArtifactStore) List(context.Context, string) ([]string, error) { return nil, nil }

func (m *rcMockArtifactStore) Delete(context.Context, string, string) error { return nil }

func newRunContextForTest() (*RunContext, chan Event, chan struct{}) {
	emit := make(chan Event, 4)
	resume := make(chan struct{}, 1)
	store := &rcMockSessionStore{}
	sess, _ := store.Create(context.Background(), "app", "user", "sess-1")

	rc := NewRunContext(context.Background(), sess, "run-1", AgentInfo{Name: "planner", Type: "model"},
		NewTextContent("user", "hi"), emit, resume, RunContextOptions{
			MaxModelCalls: 2,
			SessionStore:  store,
			ArtifactStore: &rcMockArtifactStore{},
		})

	return rc, emit, resume
}

func TestRunContext_EmitEventMergesStateDelta(t *testing.T) {
	rc, emitCh, resume := newRunContextForTest()
	rc.SetState("foo", "bar")

	resume <- struct{}{}
	if err := rc.EmitEvent(NewEvent("", "planner")); err != nil {
		t.Fatalf("EmitEvent error: %v", err)
	}

	received := <-emitCh
	if received.Actions.StateDelta["foo"].(string) != "bar" {
		t.Fatalf("State delta missing: %+v", received.Actions)
	}
	if received.InvocationID != "run-1" {
		t.Errorf("InvocationID should default to run id, got %q", received.InvocationID)
	}
	if len(rc.StateDelta) != 0 {
		t.Fatal("StateDelta should clear after emit")
	}
}

func TestRunContext_EmitEventWaitsForResume(t *testing.T) {
	rc, emitCh, resume := newRunContextForTest()

	done := make(chan error, 1)
	go func() { done <- rc.EmitEvent(NewMessageEvent("", "planner", "x")) }()

	<-emitCh
	select {
	case <-done:
		t.Fatal("EmitEvent returned before resume")
	case <-time.After(20 * time.Millisecond):
	}

	resume <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunContext_PartialEventDoesNotWait(t *testing.T) {
	rc, emitCh, _ := newRunContextForTest()

	partial := true
	ev := NewMessageEvent("", "planner", "x")
	ev.Partial = &partial

	if err := rc.EmitEvent(ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-emitCh
}

func TestRunContext_EmitEventCancelled(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	ctx, cancel := context.WithCancel(context.Background())
	rc.Context = ctx
	rc.Emit = make(chan Event)
	cancel()

	if err := rc.EmitEvent(NewEvent("", "planner")); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestRunContext_CommitStateDelta(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	store := rc.SessionStore.(*rcMockSessionStore)
	rc.SetState("k1", 123)

	if err := rc.CommitStateDelta(); err != nil {
		t.Fatalf("CommitStateDelta error: %v", err)
	}
	if store.applied == nil || store.applied[rc.SessionID]["k1"].(int) != 123 {
		t.Fatalf("State delta not applied: %+v", store.applied)
	}
	if len(rc.StateDelta) != 0 {
		t.Error("StateDelta should be cleared after commit")
	}
}

func TestRunContext_GetStatePrefersDelta(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	rc.Session.SetState("k", "persisted")

	if v, _ := rc.GetState("k"); v != "persisted" {
		t.Fatalf("expected persisted value, got %v", v)
	}

	rc.SetState("k", "staged")
	if v, _ := rc.GetState("k"); v != "staged" {
		t.Fatalf("expected staged value, got %v", v)
	}
}

func TestRunContext_WithAgentSharesLimiter(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	child := rc.WithAgent(AgentInfo{Name: "routing", Type: "model"})

	if child.Agent.Name != "routing" || rc.Agent.Name != "planner" {
		t.Fatalf("agent identity not isolated: %s / %s", child.Agent.Name, rc.Agent.Name)
	}

	_ = child.Limiter.Increment()
	if rc.Limiter.Count() != 1 {
		t.Error("limiter should be shared with parent")
	}
}

func TestRunContext_WithBranch(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	branched := rc.WithBranch("planner.routing")
	if branched.Branch != "planner.routing" {
		t.Errorf("Expected branch planner.routing, got %s", branched.Branch)
	}
	if rc.Branch != "" {
		t.Error("Original branch should remain empty")
	}
}

func TestModelLimiter(t *testing.T) {
	l := NewModelLimiter(2)
	if err := l.Increment(); err != nil {
		t.Fatal(err)
	}
	if err := l.Increment(); err != nil {
		t.Fatal(err)
	}
	if err := l.Increment(); err == nil {
		t.Fatal("expected limit error on third call")
	}
	if l.Count() != 3 {
		t.Errorf("expected 3 recorded calls, got %d", l.Count())
	}

	if NewModelLimiter(0).Remaining() != -1 {
		t.Error("zero max means unlimited")
	}
}

func TestToolContext_EscalateAndArtifacts(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	tc := NewToolContext(rc, "call-1")

	tc.SetState("leg", "A->B")
	if err := tc.SaveArtifact("route.md", []byte("abc")); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}
	tc.Escalate()

	if !tc.Escalated() {
		t.Fatal("expected escalated")
	}

	ev := NewFunctionResponseEvent("run-1", "planner", "call-1", "route", "ok", nil)
	tc.InternalApplyActions(&ev)

	if !ev.IsEscalation() {
		t.Error("escalation not applied")
	}
	if ev.Actions.StateDelta["leg"] != "A->B" {
		t.Errorf("state delta not applied: %+v", ev.Actions.StateDelta)
	}
	if ev.Actions.ArtifactDelta["route.md"] != 3 {
		t.Errorf("artifact delta not applied: %+v", ev.Actions.ArtifactDelta)
	}
}
