package tool

import (
	"fmt"
	"maps"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/runner"
	"github.com/hupe1980/tripmesh/session"
)

// CodeEscalated is the ToolError code used when a wrapped agent escalates.
const CodeEscalated = "ESCALATED"

// FatalError marks a tool failure that must abort the calling run instead
// of being reported back to the model as a function response.
type FatalError struct {
	Tool string
	Err  error
}

func (e *FatalError) Error() string { return fmt.Sprintf("tool %s: %v", e.Tool, e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

// AgentToolOptions configures an AgentTool.
type AgentToolOptions struct {
	// SkipSummarization makes the wrapped agent's answer the caller's final
	// response without another model turn.
	SkipSummarization bool
	// MaxModelCalls bounds the wrapped agent's own run (0 = unlimited).
	MaxModelCalls int
	Logger        logging.Logger
}

// AgentTool exposes an agent as a callable tool with a single "request"
// string argument. Each call runs the agent to completion in an isolated
// in-memory session seeded with the caller's state, so the wrapped agent's
// events never reach the caller's stream. State changes made by the wrapped
// agent flow back through the tool context.
type AgentTool struct {
	agent core.Agent
	opts  AgentToolOptions
}

var _ Tool = (*AgentTool)(nil)

// NewAgentTool wraps agent.
func NewAgentTool(agent core.Agent, optFns ...func(o *AgentToolOptions)) *AgentTool {
	opts := AgentToolOptions{
		MaxModelCalls: 25,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &AgentTool{agent: agent, opts: opts}
}

// Agent returns the wrapped agent.
func (t *AgentTool) Agent() core.Agent { return t.agent }

// Name implements Tool.
func (t *AgentTool) Name() string { return t.agent.Name() }

// Description implements Tool.
func (t *AgentTool) Description() string { return t.agent.Description() }

// Parameters implements Tool.
func (t *AgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request": map[string]any{
				"type":        "string",
				"description": "The task for the " + t.agent.Name() + " agent in natural language.",
			},
		},
		"required": []string{"request"},
	}
}

// Call runs the wrapped agent and returns the text of its last final event.
func (t *AgentTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	request, ok := args["request"].(string)
	if !ok {
		return nil, NewToolError(t.Name(), "missing string argument \"request\"", CodeValidation)
	}

	ctx := tc.Context()
	parent := tc.InternalRunContext()

	userID := "user"
	state := map[string]any{}

	if parent.Session != nil {
		userID = parent.Session.UserID
		state = parent.Session.Clone().State
	}

	maps.Copy(state, parent.StateDelta)

	store := session.NewInMemoryStore()
	childID := core.NewID()

	if _, err := store.Create(ctx, t.Name(), userID, childID); err != nil {
		return nil, &FatalError{Tool: t.Name(), Err: err}
	}

	if len(state) > 0 {
		if err := store.ApplyDelta(ctx, childID, state); err != nil {
			return nil, &FatalError{Tool: t.Name(), Err: err}
		}
	}

	r := runner.New(t.agent, func(o *runner.Options) {
		o.SessionStore = store
		o.ArtifactStore = parent.ArtifactStore
		o.MaxModelCalls = t.opts.MaxModelCalls
		o.Logger = t.opts.Logger
	})

	t.opts.Logger.Debug("tool.agent.start", "agent", t.Name(), "fc_id", tc.FunctionCallID())

	var (
		answer    string
		escalated bool
		escMsg    string
	)

	for ev, err := range r.Events(ctx, childID, core.NewTextContent("user", request)) {
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, &FatalError{Tool: t.Name(), Err: err}
		}

		for k, v := range ev.Actions.StateDelta {
			tc.SetState(k, v)
		}

		if !ev.IsFinalResponse() {
			continue
		}

		if ev.IsEscalation() {
			escalated = true
			if ev.ErrorMessage != nil {
				escMsg = *ev.ErrorMessage
			}
		}

		if ev.Content != nil {
			if text := ev.Content.Text(); text != "" {
				answer = text
			}
		}
	}

	t.opts.Logger.Debug("tool.agent.finish", "agent", t.Name(), "escalated", escalated, "answer_len", len(answer))

	if escalated {
		tc.Escalate()

		if escMsg != "" {
			return nil, NewToolError(t.Name(), escMsg, CodeEscalated)
		}

		return answer, nil
	}

	if t.opts.SkipSummarization {
		skip := true
		tc.Actions().SkipSummarization = &skip
	}

	return answer, nil
}
