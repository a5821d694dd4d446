// Package agent contains the agent implementations used to build tripmesh
// planners. The package focuses on three concerns:
//
//  1. Hierarchy and identity plumbing (BaseAgent)
//  2. The model-centric conversational / tool-calling agent (ModelAgent)
//  3. Deterministic composition of agents (SequentialAgent)
//
// Execution Model:
//   - An agent's Run receives a *core.RunContext scoped to one invocation
//   - Agent values hold configuration only and are shared by concurrent runs
//   - ModelAgent drives the flow package; composite agents coordinate child Runs
//
// Persistence, model specifics and tool abstractions stay in their
// respective packages.
package agent
