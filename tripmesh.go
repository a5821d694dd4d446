// Package tripmesh wires the trip planner together: the coordinator agent
// tree, a runner over the configured stores, the single process session and
// the request gateway that the HTTP and MCP surfaces serve from.
//
// Typical use:
//  1. Build an App with New, supplying at least a default model.
//  2. Hand App.Gateway to a transport (server.New, mcpserver.New).
//  3. Call Init once the transport is listening; the gateway reports ready
//     from then on.
package tripmesh

import (
	"context"
	"time"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/metrics"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/planner"
	"github.com/hupe1980/tripmesh/runner"
	"github.com/hupe1980/tripmesh/session"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"

// Options configures an App.
type Options struct {
	// Models supplies the model per agent; Default is required unless every
	// agent has its own.
	Models planner.Models
	// Mode is planner.ModeDelegate (default) or planner.ModeSequential.
	Mode string
	// Prompts overrides the embedded instructions.
	Prompts *planner.Prompts
	// MaxModelCalls bounds each run and each sub-agent run (0 = unlimited).
	MaxModelCalls int

	// RequestTimeout bounds a single plan (0 = no timeout).
	RequestTimeout time.Duration
	// MaxDurationDays rejects longer trips when positive.
	MaxDurationDays float64

	// Stores (defaults to in-memory implementations if not provided)
	SessionStore core.SessionStore
	// ArtifactStore keeps generated itineraries; nil disables storage.
	ArtifactStore core.ArtifactStore

	// UserID and SessionID identify the process session. An empty SessionID
	// is generated.
	UserID    string
	SessionID string

	// Metrics instruments every model call when set.
	Metrics *metrics.Metrics
	Logger  logging.Logger
}

// App is the assembled planner.
type App struct {
	opts        Options
	gateway     *planner.Gateway
	coordinator *planner.RunnerCoordinator
}

// New builds the agent tree and a gateway that is not ready until Init.
func New(optFns ...func(o *Options)) (*App, error) {
	opts := Options{
		Mode:           planner.ModeDelegate,
		MaxModelCalls:  25,
		RequestTimeout: 5 * time.Minute,
		SessionStore:   session.NewInMemoryStore(),
		ArtifactStore:  artifact.NewInMemoryStore(),
		UserID:         planner.DefaultUserID,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	models := opts.Models
	if opts.Metrics != nil {
		models = instrument(models, opts.Metrics)
	}

	root, err := planner.NewCoordinator(models, func(o *planner.Options) {
		o.Mode = opts.Mode
		o.Prompts = opts.Prompts
		o.MaxModelCalls = opts.MaxModelCalls
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	coordinator := planner.NewRunnerCoordinator(root, func(o *runner.Options) {
		o.SessionStore = opts.SessionStore
		o.MaxModelCalls = opts.MaxModelCalls
		o.Logger = opts.Logger

		if opts.ArtifactStore != nil {
			o.ArtifactStore = opts.ArtifactStore
		}
	})

	gateway := planner.NewGateway(func(o *planner.GatewayOptions) {
		o.RequestTimeout = opts.RequestTimeout
		o.MaxDurationDays = opts.MaxDurationDays
		o.Logger = opts.Logger
	})

	return &App{opts: opts, gateway: gateway, coordinator: coordinator}, nil
}

// Gateway returns the request gateway. It serves ErrNotReady until Init
// succeeds.
func (a *App) Gateway() *planner.Gateway { return a.gateway }

// Init creates the process session and makes the gateway ready. It must be
// called once; a failure leaves the gateway unready.
func (a *App) Init(ctx context.Context) (*core.Session, error) {
	sess, err := planner.InitSession(ctx, a.coordinator.SessionStore(), planner.AppName, a.opts.UserID, a.opts.SessionID)
	if err != nil {
		return nil, err
	}

	a.gateway.Install(&planner.AppContext{
		Coordinator: a.coordinator,
		Session:     sess,
		Artifacts:   a.opts.ArtifactStore,
	})

	a.opts.Logger.Info("app.ready", "app_name", sess.AppName, "user_id", sess.UserID, "session_id", sess.ID)

	return sess, nil
}

func instrument(models planner.Models, m *metrics.Metrics) planner.Models {
	wrap := func(mdl model.Model) model.Model {
		if mdl == nil {
			return nil
		}

		return metrics.WrapModel(mdl, m)
	}

	return planner.Models{
		Default:     wrap(models.Default),
		Coordinator: wrap(models.Coordinator),
		Inspiration: wrap(models.Inspiration),
		Activities:  wrap(models.Activities),
		Itinerary:   wrap(models.Itinerary),
	}
}
