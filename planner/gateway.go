package planner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
)

// AppContext bundles what the Gateway needs to serve. It is built once at
// startup after the session exists.
type AppContext struct {
	Coordinator Coordinator
	Session     *core.Session
	// Artifacts keeps every itinerary for later download. Optional.
	Artifacts core.ArtifactStore
}

// PlanResponse is the result of one planning call.
type PlanResponse struct {
	Itinerary string `json:"itinerary"`
	// ArtifactID names the stored itinerary; empty when nothing was stored.
	ArtifactID string `json:"-"`
	// Escalated is set when Itinerary carries an escalation message.
	Escalated bool `json:"-"`
}

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	// RequestTimeout bounds one planning call (0 = no timeout).
	RequestTimeout time.Duration
	// MaxDurationDays rejects longer trips when positive.
	MaxDurationDays float64
	Logger          logging.Logger
}

// Gateway turns trip requests into coordinator runs. It is not ready until
// Install is called and is safe for concurrent use.
type Gateway struct {
	app  atomic.Pointer[AppContext]
	opts GatewayOptions
}

// NewGateway creates a Gateway without an AppContext.
func NewGateway(optFns ...func(o *GatewayOptions)) *Gateway {
	opts := GatewayOptions{
		RequestTimeout: 5 * time.Minute,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Gateway{opts: opts}
}

// Install makes the gateway ready. A later call replaces the context.
func (g *Gateway) Install(app *AppContext) { g.app.Store(app) }

// Ready reports whether an AppContext is installed.
func (g *Gateway) Ready() bool { return g.app.Load() != nil }

// Handle plans one trip.
func (g *Gateway) Handle(ctx context.Context, req TripRequest) (PlanResponse, error) {
	return g.Stream(ctx, req, nil)
}

// Stream plans one trip like Handle and reports every intermediate event to
// observe (when non-nil) as it arrives.
func (g *Gateway) Stream(ctx context.Context, req TripRequest, observe func(core.Event)) (PlanResponse, error) {
	app := g.app.Load()
	if app == nil {
		return PlanResponse{}, ErrNotReady
	}

	if err := req.Validate(g.opts.MaxDurationDays); err != nil {
		return PlanResponse{}, err
	}

	if g.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.RequestTimeout)

		defer cancel()
	}

	prompt := BuildPrompt(req)
	g.opts.Logger.Info("plan.prompt", "session_id", app.Session.ID, "prompt", prompt)

	var observers []func(core.Event)
	if observe != nil {
		observers = append(observers, observe)
	}

	text, escalated, err := runLoop(app.Coordinator.Invoke(ctx, app.Session, prompt), observers)
	if err != nil {
		g.opts.Logger.Error("plan.failed", "session_id", app.Session.ID, "error", err.Error())
		return PlanResponse{}, err
	}

	g.opts.Logger.Info("plan.response", "session_id", app.Session.ID, "response", text, "escalated", escalated)

	resp := PlanResponse{Itinerary: text, Escalated: escalated}

	if app.Artifacts != nil && text != "" && !escalated {
		id := "itinerary-" + uuid.NewString() + ".md"

		if err := app.Artifacts.Save(ctx, app.Session.ID, id, []byte(text)); err != nil {
			g.opts.Logger.Warn("plan.artifact.save_failed", "artifact_id", id, "error", err.Error())
		} else {
			resp.ArtifactID = id
		}
	}

	return resp, nil
}

// Itinerary returns a stored itinerary by artifact id.
func (g *Gateway) Itinerary(ctx context.Context, id string) ([]byte, error) {
	app := g.app.Load()
	if app == nil {
		return nil, ErrNotReady
	}

	if app.Artifacts == nil {
		return nil, fmt.Errorf("itinerary %s: %w", id, artifact.ErrNotFound)
	}

	return app.Artifacts.Get(ctx, app.Session.ID, id)
}
