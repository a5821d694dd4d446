package agent

import (
	"errors"
	"fmt"

	"github.com/hupe1980/tripmesh/core"
)

// ErrEscalated may be returned by a pipeline step after it emitted an
// escalation event. SequentialAgent stops at that step without error.
var ErrEscalated = errors.New("agent escalated")

// SequentialAgent coordinates the execution of multiple child agents in sequence.
//
// Children run one after another against the same session, so each child
// sees the history and state produced by its predecessors. Execution stops
// at the first error.
type SequentialAgent struct {
	BaseAgent
}

var _ core.Agent = (*SequentialAgent)(nil)

// NewSequentialAgent creates a new sequential execution coordinator that
// runs children in the given order. The children become its sub-agents.
func NewSequentialAgent(name string, children ...core.Agent) (*SequentialAgent, error) {
	s := &SequentialAgent{BaseAgent: NewBaseAgent(name)}
	s.bind(s)

	if err := s.SetSubAgents(children...); err != nil {
		return nil, err
	}

	return s, nil
}

// Type implements the runner's optional agent type hint.
func (s *SequentialAgent) Type() string { return "sequential" }

// Run implements core.Agent.
func (s *SequentialAgent) Run(runCtx *core.RunContext) error {
	for i, child := range s.SubAgents() {
		if err := runCtx.Err(); err != nil {
			return err
		}

		runCtx.LogDebug("agent.sequential.step", "agent", s.Name(), "step", i, "child", child.Name())

		info := core.AgentInfo{Name: child.Name()}
		if typed, ok := child.(interface{ Type() string }); ok {
			info.Type = typed.Type()
		}

		childCtx := runCtx.WithAgent(info)

		// Pick up state and history persisted by the previous step.
		if childCtx.SessionStore != nil {
			if err := childCtx.RefreshSession(); err != nil {
				return fmt.Errorf("refresh session before agent %s: %w", child.Name(), err)
			}
		}

		if err := child.Run(childCtx); err != nil {
			if errors.Is(err, ErrEscalated) {
				runCtx.LogInfo("agent.sequential.escalated", "agent", s.Name(), "child", child.Name())
				return nil
			}

			return fmt.Errorf("sequential execution failed at agent %s: %w", child.Name(), err)
		}
	}

	return nil
}
