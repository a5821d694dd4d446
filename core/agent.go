package core

// Agent defines the interface that all agents in tripmesh implement.
//
// Agents receive inputs through a RunContext, emit events through it and
// return when their turn is complete. An agent value is shared by every
// concurrent run, so implementations keep per-run state in the RunContext
// rather than on the agent itself.
type Agent interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "model", "sequential").
type AgentInfo struct{ Name, Type string }
