package agent

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/flow"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/tool"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Description     string
	Instruction     Instruction
	EnableStreaming bool
	// OutputKey stores the final response text in session state.
	OutputKey string
	// MaxHistoryMessages bounds the conversation sent to the model (0 = all).
	MaxHistoryMessages int
	// MaxParallelTools bounds concurrent tool execution (0 = unbounded).
	MaxParallelTools int
	Tools            []tool.Tool
}

// ModelAgent integrates with language models to provide intelligent text
// processing capabilities.
//
// This agent implementation supports:
//   - Natural language conversation through system prompts
//   - Function calling with registered tools, including wrapped agents
//   - Provider built-ins such as grounded search
//   - Streaming responses for real-time interactions
//   - Session state management with output keys
//
// A ModelAgent is immutable after construction and can serve concurrent runs.
type ModelAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	tools              map[string]tool.Tool
	enableStreaming    bool
	outputKey          string
	maxHistoryMessages int
	maxParallelTools   int
}

var (
	_ core.Agent     = (*ModelAgent)(nil)
	_ flow.FlowAgent = (*ModelAgent)(nil)
)

// NewModelAgent creates a new model-based agent. Without options it uses
// a generic assistant instruction, streaming responses, no tools and the
// full conversation history.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:     NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming: true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		tools:              make(map[string]tool.Tool, len(opts.Tools)),
		enableStreaming:    opts.EnableStreaming,
		outputKey:          opts.OutputKey,
		maxHistoryMessages: opts.MaxHistoryMessages,
		maxParallelTools:   opts.MaxParallelTools,
	}

	a.bind(a)

	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}

	for _, t := range opts.Tools {
		a.tools[t.Name()] = t
	}

	return a
}

// Type implements the runner's optional agent type hint.
func (a *ModelAgent) Type() string { return "model" }

// HasTool checks if a tool is registered with the agent.
func (a *ModelAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the names of all registered tools in sorted order.
func (a *ModelAgent) ListTools() []string {
	return slices.Sorted(maps.Keys(a.tools))
}

// GetTool retrieves a specific tool by name.
func (a *ModelAgent) GetTool(name string) (tool.Tool, bool) {
	t, exists := a.tools[name]
	return t, exists
}

// Instruction returns the configured instruction.
func (a *ModelAgent) Instruction() Instruction { return a.instruction }

// GetName returns the agent's display name.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetLLM returns the language model instance.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns a copy of the registered tools keyed by name.
func (a *ModelAgent) GetTools() map[string]tool.Tool { return maps.Clone(a.tools) }

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// GetOutputKey returns the session state key for saving responses.
func (a *ModelAgent) GetOutputKey() string { return a.outputKey }

// MaxHistoryMessages returns the maximum number of conversation history messages to keep.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// ResolveInstructions produces the final instruction string (system prompt)
// by resolving static or dynamic instruction sources.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// Run implements core.Agent by executing a SingleAgentFlow under this
// agent's identity.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	rc := runCtx
	if rc.Agent.Name != a.Name() {
		rc = runCtx.WithAgent(core.AgentInfo{Name: a.Name(), Type: a.Type()})
	}

	rc.LogDebug("agent.run.start", "agent", a.Name(), "run", rc.RunID, "model", a.llm.Info().Name)

	fl := flow.NewSingleAgentFlow(a, func(o *flow.Options) {
		o.Executor = flow.NewParallelFunctionExecutor(flow.FunctionExecutorConfig{
			MaxParallel:   a.maxParallelTools,
			PreserveOrder: true,
		})
	})

	if err := fl.Execute(rc); err != nil {
		rc.LogError("agent.run.error", "agent", a.Name(), "error", err.Error())
		return fmt.Errorf("agent %s: %w", a.Name(), err)
	}

	rc.LogDebug("agent.run.complete", "agent", a.Name())

	return nil
}
