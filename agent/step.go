package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/tool"
)

// StepAgentOptions configures a StepAgent.
type StepAgentOptions struct {
	// OutputKey receives the wrapped agent's answer in session state.
	OutputKey string
	// Request builds the wrapped agent's input. Defaults to the text of the
	// run's user content.
	Request func(rc *core.RunContext) string
	// MaxModelCalls bounds the wrapped agent's own run (0 = unlimited).
	MaxModelCalls int
}

// StepAgent runs another agent as one isolated pipeline step. The wrapped
// agent executes in its own child session like a tool call, so its final
// answer never surfaces as a final event of the parent run. The step records
// a function call / response pair and stores the answer under OutputKey,
// which lets later steps read it from state or history.
type StepAgent struct {
	BaseAgent
	tool *tool.AgentTool
	opts StepAgentOptions
}

var _ core.Agent = (*StepAgent)(nil)

// NewStepAgent wraps inner. The step takes the inner agent's name.
func NewStepAgent(inner core.Agent, optFns ...func(o *StepAgentOptions)) *StepAgent {
	opts := StepAgentOptions{
		Request: func(rc *core.RunContext) string { return rc.UserContent.Text() },
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &StepAgent{
		BaseAgent: NewBaseAgent(inner.Name()),
		tool: tool.NewAgentTool(inner, func(o *tool.AgentToolOptions) {
			o.MaxModelCalls = opts.MaxModelCalls
		}),
		opts: opts,
	}

	s.bind(s)
	s.SetDescription(inner.Description())

	return s
}

// Type implements the runner's optional agent type hint.
func (s *StepAgent) Type() string { return "step" }

// Run implements core.Agent. It returns ErrEscalated after emitting an
// escalation event when the wrapped agent escalates.
func (s *StepAgent) Run(runCtx *core.RunContext) error {
	request := s.opts.Request(runCtx)
	callID := core.NewID()

	args, err := json.Marshal(map[string]string{"request": request})
	if err != nil {
		return err
	}

	if err := runCtx.EmitEvent(core.NewFunctionCallEvent(runCtx.RunID, s.Name(), callID, s.Name(), string(args))); err != nil {
		return err
	}

	tc := core.NewToolContext(runCtx, callID)

	result, callErr := s.tool.Call(tc, map[string]any{"request": request})

	var fatal *tool.FatalError
	if errors.As(callErr, &fatal) {
		return fatal
	}

	if callErr != nil && runCtx.Err() != nil {
		return runCtx.Err()
	}

	runCtx.ApplyStateDelta(tc.Actions().StateDelta)

	if s.opts.OutputKey != "" && callErr == nil {
		runCtx.SetState(s.opts.OutputKey, result)
	}

	resp := core.NewFunctionResponseEvent(runCtx.RunID, s.Name(), callID, s.Name(), result, callErr)
	if err := runCtx.EmitEvent(resp); err != nil {
		return err
	}

	if tc.Escalated() {
		msg := ""
		if callErr != nil {
			msg = callErr.Error()

			var toolErr *tool.ToolError
			if errors.As(callErr, &toolErr) {
				msg = toolErr.Message
			}
		}

		if err := runCtx.EmitEvent(core.NewEscalationEvent(runCtx.RunID, s.Name(), msg)); err != nil {
			return err
		}

		return ErrEscalated
	}

	if callErr != nil {
		return fmt.Errorf("step %s: %w", s.Name(), callErr)
	}

	return nil
}
