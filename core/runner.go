package core

import (
	"context"
	"iter"
)

// EventSeq is a lazy, finite, non-restartable sequence of events produced by
// one invocation. Breaking out of a range loop over it stops the invocation.
type EventSeq = iter.Seq2[Event, error]

// Runner defines the minimal orchestration contract for executing a root agent
// within a conversational session.
//
// Semantics & Guarantees:
//   - Event Ordering: events of a single invocation are delivered in the
//     order produced by the agent pipeline.
//   - Channel Lifecycle: the events channel is closed after the invocation
//     completes. The error channel carries at most one terminal error then
//     closes.
//   - Cancellation: context cancellation or Cancel(runID) stops further
//     event emission.
type Runner interface {
	// Run initiates an asynchronous agent execution bound to sessionID using
	// userContent as the starting input. The immediate error return covers
	// startup failures (e.g. session load).
	Run(ctx context.Context, sessionID string, userContent Content) (string, <-chan Event, <-chan error, error)

	// Events exposes the same invocation as an EventSeq.
	Events(ctx context.Context, sessionID string, userContent Content) EventSeq

	// Cancel requests cooperative termination of an in-flight invocation.
	Cancel(runID string) error
}
