package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/session"
)

// ErrSequenceConsumed is yielded when an EventSeq is ranged over a second time.
var ErrSequenceConsumed = errors.New("event sequence already consumed")

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run (0 = unlimited).
	MaxModelCalls int
	// SessionStore persists sessions and their history.
	SessionStore core.SessionStore
	// ArtifactStore is exposed to tools through the run context.
	ArtifactStore core.ArtifactStore
	// Logger receives runner lifecycle logs.
	Logger logging.Logger
}

// Runner coordinates agent execution: creates run contexts, streams events,
// applies side-effects and persists history. Public methods are safe for
// concurrent use.
type Runner struct {
	agent core.Agent
	opts  Options

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

var _ core.Runner = (*Runner)(nil)

// New constructs a Runner with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionStore:    session.NewInMemoryStore(),
		ArtifactStore:   artifact.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		agent:      agent,
		opts:       opts,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// SessionStore returns the store the runner persists to.
func (r *Runner) SessionStore() core.SessionStore { return r.opts.SessionStore }

// Agent returns the root agent.
func (r *Runner) Agent() core.Agent { return r.agent }

// Run starts an asynchronous invocation. The events channel closes when the
// run ends; the error channel then yields at most one terminal error.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.opts.SessionStore.Get(ctx, sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.opts.SessionStore.AppendEvent(ctx, sessionID, userEvent); err != nil {
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	sess.AddEvent(userEvent)

	eventsCh := make(chan core.Event, r.opts.EventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.opts.EventBufferSize)
	agentErr := make(chan error, 1)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	runCtx := core.NewRunContext(
		ctx,
		sess,
		runID,
		agentInfo(r.agent),
		userContent,
		agentEmit,
		resumeCh,
		core.RunContextOptions{
			MaxModelCalls: r.opts.MaxModelCalls,
			SessionStore:  r.opts.SessionStore,
			ArtifactStore: r.opts.ArtifactStore,
			Logger:        r.opts.Logger,
		},
	)

	r.opts.Logger.Debug("runner.run.start", "run_id", runID, "session_id", sessionID, "agent", r.agent.Name())

	go func() {
		defer close(agentEmit)

		agentErr <- r.agent.Run(runCtx)
	}()

	go func() {
		defer func() {
			cancel()

			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()

			close(eventsCh)
			close(errorsCh)
		}()

		procErr := r.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh, cancel)

		runErr := <-agentErr

		switch {
		case procErr != nil:
			errorsCh <- procErr
		case runErr != nil && ctx.Err() == nil:
			errorsCh <- fmt.Errorf("agent execution failed: %w", runErr)
		case ctx.Err() != nil:
			errorsCh <- ctx.Err()
		}

		r.opts.Logger.Debug("runner.run.finish", "run_id", runID, "session_id", sessionID)
	}()

	return runID, eventsCh, errorsCh, nil
}

// Events exposes one invocation as a lazy sequence. The run starts on the
// first iteration; stopping the iteration early cancels it. A second
// iteration yields ErrSequenceConsumed.
func (r *Runner) Events(ctx context.Context, sessionID string, userContent core.Content) core.EventSeq {
	var used atomic.Bool

	return func(yield func(core.Event, error) bool) {
		if used.Swap(true) {
			yield(core.Event{}, ErrSequenceConsumed)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		_, events, errs, err := r.Run(ctx, sessionID, userContent)
		if err != nil {
			yield(core.Event{}, err)
			return
		}

		for ev := range events {
			if !yield(ev, nil) {
				return
			}
		}

		if err := <-errs; err != nil {
			yield(core.Event{}, err)
		}
	}
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// ActiveRuns reports the number of in-flight runs.
func (r *Runner) ActiveRuns() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.activeRuns)
}

// processEvents persists and forwards agent events until the agent closes
// its emit channel. On failure it cancels the run and keeps draining so the
// agent goroutine can exit.
func (r *Runner) processEvents(
	runCtx *core.RunContext,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	cancel context.CancelFunc,
) error {
	var procErr error

	for ev := range agentEmit {
		if procErr != nil || runCtx.Err() != nil {
			continue
		}

		if err := r.persist(runCtx.Context, sessionID, ev); err != nil {
			procErr = err
			cancel()
			continue
		}

		select {
		case <-runCtx.Done():
			continue
		case eventsCh <- ev:
			r.opts.Logger.Debug("runner.event.delivered", "event_id", ev.ID, "author", ev.Author, "session_id", sessionID)
		}

		if ev.IsEscalation() {
			r.opts.Logger.Debug("runner.event.escalate", "session_id", sessionID, "author", ev.Author)
		}

		if !ev.IsPartial() {
			select {
			case resumeCh <- struct{}{}:
			default:
			}
		}
	}

	return procErr
}

func (r *Runner) persist(ctx context.Context, sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.opts.SessionStore.ApplyDelta(ctx, sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.IsPartial() {
		return nil
	}

	if err := r.opts.SessionStore.AppendEvent(ctx, sessionID, ev); err != nil {
		return fmt.Errorf("failed to append event to session: %w", err)
	}

	return nil
}

func agentInfo(a core.Agent) core.AgentInfo {
	info := core.AgentInfo{Name: a.Name(), Type: "unknown"}

	if t, ok := a.(interface{ Type() string }); ok {
		info.Type = t.Type()
	}

	return info
}
