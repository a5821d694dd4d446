// Package runner implements the orchestration layer that executes a root
// agent against a stored session.
//
// # Responsibilities
//   - Persist the user turn and every non-partial event the agent emits
//   - Apply state deltas carried by events to the session store
//   - Stream events in production order over a channel pair or an iter.Seq2
//   - Manage run lifecycle and cancellation
//
// Agents emit through core.RunContext; after each non-partial event the
// runner signals resume once the event is persisted, so the next model turn
// observes the updated history.
package runner
