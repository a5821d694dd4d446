package flow

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
)

// Options configures a BaseFlow.
type Options struct {
	// Executor runs function calls requested by the model.
	Executor FunctionExecutor
}

// BaseFlow is a minimal single-agent flow implementation that supports a
// request -> LLM -> (optional tool loop) cycle with pluggable pre/post processors.
type BaseFlow struct {
	agent              FlowAgent
	executor           FunctionExecutor
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
}

// NewBaseFlow creates a new basic single-agent flow. Function calls run in
// parallel and their responses are emitted in call order by default.
func NewBaseFlow(agent FlowAgent, optFns ...func(o *Options)) *BaseFlow {
	opts := Options{
		Executor: NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &BaseFlow{
		agent:    agent,
		executor: opts.Executor,
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// Execute runs model turns until a final response or escalation is emitted.
func (f *BaseFlow) Execute(runCtx *core.RunContext) error {
	for {
		last, err := f.runOnce(runCtx)
		if err != nil {
			return err
		}

		if last == nil || last.IsEscalation() || last.IsFinalResponse() {
			return nil
		}

		// Function responses were emitted; the model needs another turn.
	}
}

// runOnce performs one model turn (including any tool executions) and returns
// the last emitted Event. A nil event means the model produced nothing.
func (f *BaseFlow) runOnce(runCtx *core.RunContext) (*core.Event, error) {
	name := f.agent.GetName()

	// Reload the session so processors see the latest history, including
	// tool responses and turns of concurrent runs on the same session.
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			return nil, fmt.Errorf("refresh session: %w", err)
		}
	}

	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s failed: %w", processor.Name(), err)
		}
	}

	if err := runCtx.Context.Err(); err != nil {
		return nil, err
	}

	if err := runCtx.Limiter.Increment(); err != nil {
		runCtx.LogWarn("agent.model.limit", "agent", name, "error", err.Error())
		return f.emit(runCtx, core.NewEscalationEvent(runCtx.RunID, name, err.Error()))
	}

	llm := f.agent.GetLLM()

	runCtx.LogDebug(
		"agent.model.request",
		"agent", name,
		"model", llm.Info().Name,
		"contents", len(req.Contents),
		"tools", len(req.Tools),
		"builtins", len(req.BuiltinTools),
	)

	respCh, errCh := llm.Generate(runCtx.Context, *req)

	var lastEvent *core.Event

	for resp := range respCh {
		for _, processor := range f.responseProcessors {
			if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
				drain(respCh)
				return nil, fmt.Errorf("response processor %s failed: %w", processor.Name(), err)
			}
		}

		if !resp.Partial && resp.FinishReason == model.FinishReasonBlocked && len(resp.Content.Parts) == 0 {
			drain(respCh)
			runCtx.LogWarn("agent.model.blocked", "agent", name, "reason", resp.BlockReason)
			return f.emit(runCtx, core.NewEscalationEvent(runCtx.RunID, name, resp.BlockReason))
		}

		ev := core.NewEvent(runCtx.RunID, name)
		content := resp.Content
		ev.Content = &content
		ev.GroundingMetadata = resp.Grounding

		if resp.Partial {
			partial := true
			ev.Partial = &partial
		} else if len(ev.GetFunctionCalls()) == 0 {
			complete := true
			ev.TurnComplete = &complete
		}

		if _, err := f.emit(runCtx, ev); err != nil {
			drain(respCh)
			return nil, err
		}

		if resp.Partial {
			continue
		}

		lastEvent = &ev

		if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
			last, err := f.runTools(runCtx, fnCalls)
			if err != nil {
				drain(respCh)
				return nil, err
			}

			lastEvent = last
		}
	}

	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("model %s: %w", llm.Info().Name, err)
	}

	return lastEvent, nil
}

// runTools executes fnCalls and turns escalation or skip-summarization
// results into the agent's terminal event.
func (f *BaseFlow) runTools(runCtx *core.RunContext, fnCalls []core.FunctionCall) (*core.Event, error) {
	name := f.agent.GetName()

	var last *core.Event

	results, err := f.executor.Execute(runCtx, f.agent, f.agent.GetTools(), fnCalls, func(ev core.Event) error {
		last = &ev
		return runCtx.EmitEvent(ev)
	})
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Escalated {
			runCtx.LogInfo("agent.tool.escalated", "agent", name, "tool", r.Call.Name)
			return f.emit(runCtx, core.NewEscalationEvent(runCtx.RunID, name, r.EscalationMessage))
		}
	}

	for _, r := range results {
		if r.SkipSummarization {
			return f.emit(runCtx, core.NewMessageEvent(runCtx.RunID, name, responseText(r.Response)))
		}
	}

	return last, nil
}

func (f *BaseFlow) emit(runCtx *core.RunContext, ev core.Event) (*core.Event, error) {
	if err := runCtx.EmitEvent(ev); err != nil {
		return nil, err
	}

	return &ev, nil
}

// responseText renders a function response as message text.
func responseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return fr.Error
	}

	switch v := fr.Response.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(b)
	}
}

// drain discards remaining responses so the producer goroutine can exit.
func drain(ch <-chan model.Response) {
	go func() {
		for range ch {
		}
	}()
}
