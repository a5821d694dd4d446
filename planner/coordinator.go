package planner

import (
	"context"
	"fmt"
	"iter"

	"github.com/hupe1980/tripmesh/agent"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/runner"
	"github.com/hupe1980/tripmesh/tool"
)

// Agent names of the hierarchy.
const (
	CoordinatorName      = "city_short_trip_planner"
	InspirationAgentName = "inspiration_agent"
	ActivitiesAgentName  = "activities_agent"
	ItineraryAgentName   = "itinerary_agent"
)

// Coordinator modes.
const (
	// ModeDelegate lets the coordinator model decide when to call the
	// wrapped sub-agents.
	ModeDelegate = "delegate"
	// ModeSequential runs discovery, routing and formatting as a fixed pipeline.
	ModeSequential = "sequential"
)

// DefaultModelName is the model every agent uses unless configured otherwise.
const DefaultModelName = "gemini-2.5-flash"

// State keys written by the sequential pipeline.
const (
	StateKeyInspiration = "inspiration"
	StateKeyActivities  = "activities"
)

const (
	coordinatorDescription = "Coordinates discovery, routing, and itinerary composition to plan a multiple days short city trip."
	inspirationDescription = "Uses Google Search to discover relevant places."
	activitiesDescription  = "Estimates an optimal activities plan using the google_search tool."
	itineraryDescription   = "Write a readable travel itinerary from activities information."
)

const pipelineItineraryContext = `

Points of interest:
{{.inspiration}}

Route and timing:
{{.activities}}`

// Models selects the model per agent. Unset entries fall back to Default.
type Models struct {
	Default     model.Model
	Coordinator model.Model
	Inspiration model.Model
	Activities  model.Model
	Itinerary   model.Model
}

func (m Models) pick(specific model.Model, name string) (model.Model, error) {
	if specific != nil {
		return specific, nil
	}

	if m.Default == nil {
		return nil, fmt.Errorf("planner: no model configured for %s", name)
	}

	return m.Default, nil
}

// Options configures NewCoordinator.
type Options struct {
	// Mode is ModeDelegate (default) or ModeSequential.
	Mode string
	// Prompts overrides the embedded instructions.
	Prompts *Prompts
	// MaxModelCalls bounds each sub-agent run (0 = unlimited).
	MaxModelCalls int
	Logger        logging.Logger
}

// NewCoordinator builds the root agent and its three sub-agents.
func NewCoordinator(models Models, optFns ...func(o *Options)) (core.Agent, error) {
	opts := Options{
		Mode:          ModeDelegate,
		MaxModelCalls: 25,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	prompts := DefaultPrompts()
	if opts.Prompts != nil {
		prompts = *opts.Prompts
	}

	inspirationModel, err := models.pick(models.Inspiration, InspirationAgentName)
	if err != nil {
		return nil, err
	}

	activitiesModel, err := models.pick(models.Activities, ActivitiesAgentName)
	if err != nil {
		return nil, err
	}

	itineraryModel, err := models.pick(models.Itinerary, ItineraryAgentName)
	if err != nil {
		return nil, err
	}

	inspiration := agent.NewModelAgent(InspirationAgentName, inspirationModel, func(o *agent.ModelAgentOptions) {
		o.Description = inspirationDescription
		o.Instruction = agent.NewInstructionFromText(prompts.Inspiration)
		o.Tools = []tool.Tool{tool.GoogleSearch{}}
	})

	activities := agent.NewModelAgent(ActivitiesAgentName, activitiesModel, func(o *agent.ModelAgentOptions) {
		o.Description = activitiesDescription
		o.Instruction = agent.NewInstructionFromText(prompts.Activities)
		o.Tools = []tool.Tool{tool.GoogleSearch{}}
	})

	switch opts.Mode {
	case ModeDelegate, "":
		itinerary := agent.NewModelAgent(ItineraryAgentName, itineraryModel, func(o *agent.ModelAgentOptions) {
			o.Description = itineraryDescription
			o.Instruction = agent.NewInstructionFromText(prompts.Itinerary)
		})

		coordinatorModel, err := models.pick(models.Coordinator, CoordinatorName)
		if err != nil {
			return nil, err
		}

		wrap := func(a core.Agent) tool.Tool {
			return tool.NewAgentTool(a, func(o *tool.AgentToolOptions) {
				o.MaxModelCalls = opts.MaxModelCalls
				o.Logger = opts.Logger
			})
		}

		root := agent.NewModelAgent(CoordinatorName, coordinatorModel, func(o *agent.ModelAgentOptions) {
			o.Description = coordinatorDescription
			o.Instruction = agent.NewInstructionFromText(prompts.Coordinator)
			o.Tools = []tool.Tool{wrap(inspiration), wrap(activities), wrap(itinerary)}
		})

		if err := root.SetSubAgents(inspiration, activities, itinerary); err != nil {
			return nil, err
		}

		return root, nil
	case ModeSequential:
		itinerary := agent.NewModelAgent(ItineraryAgentName, itineraryModel, func(o *agent.ModelAgentOptions) {
			o.Description = itineraryDescription
			o.Instruction = agent.NewInstructionFromText(prompts.Itinerary + pipelineItineraryContext)
		})

		root, err := agent.NewSequentialAgent(CoordinatorName,
			agent.NewStepAgent(inspiration, func(o *agent.StepAgentOptions) {
				o.OutputKey = StateKeyInspiration
				o.MaxModelCalls = opts.MaxModelCalls
			}),
			agent.NewStepAgent(activities, func(o *agent.StepAgentOptions) {
				o.OutputKey = StateKeyActivities
				o.MaxModelCalls = opts.MaxModelCalls
				o.Request = routingRequest
			}),
			itinerary,
		)
		if err != nil {
			return nil, err
		}

		root.SetDescription(coordinatorDescription)

		return root, nil
	default:
		return nil, fmt.Errorf("planner: unknown coordinator mode %q", opts.Mode)
	}
}

// routingRequest hands the discovered places to the routing agent.
func routingRequest(rc *core.RunContext) string {
	request := rc.UserContent.Text()

	if places, ok := rc.GetState(StateKeyInspiration); ok {
		request += fmt.Sprintf("\n\nPlaces to visit:\n%v", places)
	}

	return request
}

// Coordinator opens one event stream per prompt against a session. The
// stream is lazy; stopping its iteration cancels the work behind it.
type Coordinator interface {
	Invoke(ctx context.Context, sess *core.Session, prompt string) iter.Seq2[core.Event, error]
}

// RunnerCoordinator implements Coordinator with a runner over the root agent.
type RunnerCoordinator struct {
	runner *runner.Runner
}

var _ Coordinator = (*RunnerCoordinator)(nil)

// NewRunnerCoordinator runs root with the given runner options. The session
// passed to Invoke must exist in the runner's session store.
func NewRunnerCoordinator(root core.Agent, optFns ...func(o *runner.Options)) *RunnerCoordinator {
	return &RunnerCoordinator{runner: runner.New(root, optFns...)}
}

// SessionStore returns the store the runner persists to.
func (c *RunnerCoordinator) SessionStore() core.SessionStore { return c.runner.SessionStore() }

// Invoke implements Coordinator.
func (c *RunnerCoordinator) Invoke(ctx context.Context, sess *core.Session, prompt string) iter.Seq2[core.Event, error] {
	return c.runner.Events(ctx, sess.ID, core.NewTextContent("user", prompt))
}
