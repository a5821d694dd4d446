package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEvent_ConstructorsAndMethods(t *testing.T) {
	e := NewEvent("inv-123", "authorA")
	if e.Author != "authorA" || e.InvocationID != "inv-123" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	msg := NewMessageEvent("inv-123", "agent1", "hello world")
	if msg.Content == nil || msg.Content.Role != "assistant" || len(msg.Content.Parts) != 1 {
		t.Fatalf("NewMessageEvent malformed: %+v", msg)
	}

	uc := NewTextContent("user", "hi")
	user := NewUserContentEvent("inv-123", &uc)
	if user.Content == nil || user.Content.Role != "user" || user.Author != "user" {
		t.Fatalf("NewUserContentEvent malformed: %+v", user)
	}

	fCall := NewFunctionCallEvent("inv-123", "agent2", "call-1", "do_stuff", `{"a":1}`)
	calls := fCall.GetFunctionCalls()
	if len(calls) != 1 || calls[0].Name != "do_stuff" || calls[0].Arguments != `{"a":1}` {
		t.Fatalf("GetFunctionCalls extraction failed: %+v", calls)
	}

	fRespOK := NewFunctionResponseEvent("inv-123", "agent2", "call-1", "do_stuff", 42, nil)
	resps := fRespOK.GetFunctionResponses()
	if len(resps) != 1 || resps[0].Response.(int) != 42 || resps[0].Error != "" {
		t.Fatalf("Function response success extraction failed: %+v", resps)
	}

	fRespErr := NewFunctionResponseEvent("inv-123", "agent2", "call-2", "do_stuff", nil, errors.New("boom"))
	resps = fRespErr.GetFunctionResponses()
	if resps[0].Error != "boom" {
		t.Fatalf("Expected error message in function response: %+v", resps[0])
	}
}

func TestEvent_IsFinalResponseLogic(t *testing.T) {
	e := NewEvent("inv", "authorA")
	if !e.IsFinalResponse() {
		t.Error("Expected basic event to be final")
	}

	partial := true
	e.Partial = &partial
	if e.IsFinalResponse() {
		t.Error("Partial event should not be final")
	}

	call := NewFunctionCallEvent("inv", "a", "c1", "tool", "{}")
	if call.IsFinalResponse() {
		t.Error("Function call event should not be final")
	}

	resp := NewFunctionResponseEvent("inv", "a", "c1", "tool", "ok", nil)
	if resp.IsFinalResponse() {
		t.Error("Function response event should not be final")
	}

	skip := true
	resp.Actions.SkipSummarization = &skip
	if !resp.IsFinalResponse() {
		t.Error("SkipSummarization should force finality")
	}
}

func TestEvent_Escalation(t *testing.T) {
	esc := NewEscalationEvent("inv", "planner", "cannot plan")
	if !esc.IsEscalation() {
		t.Fatal("expected escalation flag")
	}
	if esc.ErrorMessage == nil || *esc.ErrorMessage != "cannot plan" {
		t.Fatalf("unexpected error message: %+v", esc.ErrorMessage)
	}
	if !esc.IsFinalResponse() {
		t.Error("escalation without content should be final")
	}

	bare := NewEscalationEvent("inv", "planner", "")
	if bare.ErrorMessage != nil {
		t.Error("empty message should leave ErrorMessage nil")
	}

	if NewEvent("inv", "x").IsEscalation() {
		t.Error("plain event must not escalate")
	}
}

func TestContent_JSONRoundTrip(t *testing.T) {
	c := Content{
		Role: "assistant",
		Parts: []Part{
			TextPart{Text: "Day 1"},
			DataPart{Data: map[string]any{"k": "v"}},
			FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "search", Arguments: `{"q":"x"}`}},
			FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "c1", Name: "search", Response: "ok"}},
		},
	}

	raw, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Content
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.Role != "assistant" || len(back.Parts) != 4 {
		t.Fatalf("unexpected decoded content: %+v", back)
	}
	if tp, ok := back.Parts[0].(TextPart); !ok || tp.Text != "Day 1" {
		t.Errorf("first part not text: %#v", back.Parts[0])
	}
	if fc, ok := back.Parts[2].(FunctionCallPart); !ok || fc.FunctionCall.Name != "search" {
		t.Errorf("third part not function call: %#v", back.Parts[2])
	}
	if fr, ok := back.Parts[3].(FunctionResponsePart); !ok || fr.FunctionResponse.Response != "ok" {
		t.Errorf("fourth part not function response: %#v", back.Parts[3])
	}
}

func TestContent_UnmarshalUnknownType(t *testing.T) {
	var c Content
	if err := json.Unmarshal([]byte(`{"parts":[{"type":"video"}]}`), &c); err == nil {
		t.Fatal("expected error for unknown part type")
	}
}

func TestContent_Text(t *testing.T) {
	c := Content{Parts: []Part{TextPart{Text: "a"}, DataPart{}, TextPart{Text: "b"}}}
	if c.Text() != "ab" {
		t.Fatalf("expected concatenated text, got %q", c.Text())
	}
}
