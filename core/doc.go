// Package core provides the foundational domain types, interfaces and execution
// contexts used by tripmesh. It defines the core abstractions for:
//
//   - Agents (units of orchestrated work driven by a model)
//   - Sessions (conversational containers keyed by app, user and id)
//   - Events (immutable communication + orchestration records)
//   - RunContext / ToolContext (scoped execution & tool sandboxing)
//   - Pluggable stores for session state and artifacts
//
// Implementation concerns (persistence, orchestration, concrete agents) live in
// sibling packages; core only exposes small interfaces so backends can be
// swapped without touching agent code.
package core
