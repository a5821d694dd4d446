package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/tool"
)

// CallResult is the outcome of one executed function call.
type CallResult struct {
	Call     core.FunctionCall
	Response core.FunctionResponse
	// Escalated is set when the tool asked the agent to give up.
	Escalated bool
	// EscalationMessage is the tool's error text, if any.
	EscalationMessage string
	// SkipSummarization is set when the tool result should become the
	// agent's final answer without another model turn.
	SkipSummarization bool
}

// FunctionExecutor executes a batch of function/tool calls possibly in parallel and emits
// function response events through the provided emit callback. Implementations must:
//   - Respect runCtx.Context cancellation
//   - Never panic (recover internally and report the panic as a tool error)
//   - Emit exactly one FunctionResponse event per incoming FunctionCall
//   - Apply ToolContext accumulated actions to emitted events
//   - Return a *tool.FatalError instead of emitting when a tool reports one
//
// The emit callback is responsible for persistence synchronization (resume handling).
type FunctionExecutor interface {
	Execute(
		runCtx *core.RunContext,
		agent FlowAgent,
		toolRegistry map[string]tool.Tool,
		fnCalls []core.FunctionCall,
		emit func(core.Event) error,
	) ([]CallResult, error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(fnCalls))
	PreserveOrder  bool // if true, buffer results and emit in original order
	LogStartEvents bool // log a start line per function
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

type callOutcome struct {
	result CallResult
	event  core.Event
	fatal  error
	done   bool
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fnCalls []core.FunctionCall,
	emit func(core.Event) error,
) ([]CallResult, error) {
	n := len(fnCalls)
	if n == 0 {
		return nil, nil
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	outcomes := make([]callOutcome, n)

	var (
		mu      sync.Mutex // serializes unordered emits
		emitErr error
		wg      sync.WaitGroup
	)

	sem := make(chan struct{}, maxPar)
	batchStart := time.Now()

	for i := range fnCalls {
		if runCtx.Context.Err() != nil {
			break
		}

		wg.Add(1)

		sem <- struct{}{}

		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if runCtx.Context.Err() != nil {
				return
			}

			out := e.executeOne(runCtx, agent, toolRegistry, fc)

			if out.fatal == nil && !e.cfg.PreserveOrder {
				mu.Lock()
				if emitErr == nil {
					emitErr = emit(out.event)
				}
				mu.Unlock()
			}

			outcomes[idx] = out
		}(i, fnCalls[i])
	}

	wg.Wait()

	if err := runCtx.Context.Err(); err != nil {
		return nil, err
	}

	for _, out := range outcomes {
		if out.fatal != nil {
			return nil, out.fatal
		}
	}

	if emitErr != nil {
		return nil, emitErr
	}

	results := make([]CallResult, 0, n)

	for _, out := range outcomes {
		if !out.done {
			continue
		}

		if e.cfg.PreserveOrder {
			if err := emit(out.event); err != nil {
				return nil, err
			}
		}

		results = append(results, out.result)
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results, nil
}

func (e *parallelFunctionExecutor) executeOne(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fc core.FunctionCall,
) callOutcome {
	toolCtx := core.NewToolContext(runCtx, fc.ID)

	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()

	var (
		result any
		err    error
	)

	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				pe := panicError(r)
				err = pe
				runCtx.LogError("agent.function.panic", "agent", agent.GetName(), "function", fc.Name, "recover", r, "stack", string(pe.stack))
			}
		}()

		result, err = executeTool(toolRegistry, toolCtx, fc.Name, fc.Arguments)
	}()

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	var fatal *tool.FatalError
	if errors.As(err, &fatal) {
		runCtx.LogError("agent.function.fatal", "agent", agent.GetName(), "function", fc.Name, "error", err.Error())
		return callOutcome{fatal: err}
	}

	respEv := core.NewFunctionResponseEvent(runCtx.RunID, agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.InternalApplyActions(&respEv)

	skip := toolCtx.Actions().SkipSummarization

	var escMsg string
	if err != nil && toolCtx.Escalated() {
		var te *tool.ToolError
		if errors.As(err, &te) {
			escMsg = te.Message
		} else {
			escMsg = err.Error()
		}
	}

	return callOutcome{
		done:  true,
		event: respEv,
		result: CallResult{
			Call:              fc,
			Response:          respEv.GetFunctionResponses()[0],
			Escalated:         toolCtx.Escalated(),
			EscalationMessage: escMsg,
			SkipSummarization: skip != nil && *skip,
		},
	}
}

func panicError(r any) *panicErr { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// executeTool centralizes tool lookup & execution using agent tool registry.
func executeTool(toolRegistry map[string]tool.Tool, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := toolRegistry[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	if _, builtin := impl.(tool.Builtin); builtin {
		return nil, fmt.Errorf("tool %s is provided by the model and cannot be called", toolName)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return impl.Call(toolCtx, argMap)
}
