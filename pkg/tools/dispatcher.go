package tools

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/voxa/pkg/llm"
	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/resilience"
)

type DispatcherOptions struct {
	// Concurrency bounds parallel calls within one Dispatch. 1 runs them in order.
	Concurrency  int
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	Logger       *slog.Logger
	Observer     metrics.Observer
}

// Dispatcher is the invocation boundary between the agent and tool code.
// Every call produces a Result; nothing a tool does escapes as a panic or error.
type Dispatcher struct {
	registry *Registry
	opts     DispatcherOptions
	log      *slog.Logger
	obs      metrics.Observer
}

var errRetryable = errors.New("retryable tool failure")

func NewDispatcher(registry *Registry, opts DispatcherOptions) *Dispatcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 150 * time.Millisecond
	}
	obs := opts.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Dispatcher{
		registry: registry,
		opts:     opts,
		log:      logging.NewComponentLogger(opts.Logger, "tool_dispatcher"),
		obs:      obs,
	}
}

func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch invokes calls with bounded concurrency. results[i] always
// belongs to calls[i].
func (d *Dispatcher) Dispatch(ctx context.Context, calls []llm.ToolCall) []Result {
	results := make([]Result, len(calls))
	if d.opts.Concurrency == 1 || len(calls) <= 1 {
		for i, call := range calls {
			results[i] = d.Invoke(ctx, call)
		}
		return results
	}
	sem := make(chan struct{}, d.opts.Concurrency)
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = d.Invoke(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

// Invoke resolves, decodes, validates and runs a single call.
func (d *Dispatcher) Invoke(ctx context.Context, call llm.ToolCall) Result {
	start := time.Now()
	res := d.invoke(ctx, call)
	d.report(call, res, time.Since(start))
	return res
}

func (d *Dispatcher) invoke(ctx context.Context, call llm.ToolCall) Result {
	if err := ctx.Err(); err != nil {
		return Failure(KindCanceled, "tool %s not run: %v", call.Name, err)
	}
	tool, err := d.registry.Resolve(call.Name)
	if err != nil {
		return Failure(KindToolNotFound, "unknown tool: %s", call.Name)
	}
	args, err := ParseArgs(call.Arguments)
	if err != nil {
		return Failure(KindInvalidArguments, "invalid arguments for %s: %v", call.Name, err)
	}
	if err := Validate(tool.Schema, args); err != nil {
		return Failure(KindInvalidArguments, "%v", err)
	}

	policy := resilience.NewRetryPolicy(d.opts.Retries, d.opts.RetryBackoff)
	policy.Retryable = func(err error) bool { return errors.Is(err, errRetryable) }
	var res Result
	_ = policy.Do(ctx, func(ctx context.Context) error {
		res = d.callWithTimeout(ctx, tool, args)
		if res.Kind == KindTimeout || res.Kind == KindExecution {
			return errRetryable
		}
		return nil
	})
	return res
}

func (d *Dispatcher) callWithTimeout(ctx context.Context, tool Tool, args Args) Result {
	callCtx := ctx
	cancel := func() {}
	if d.opts.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
	}
	defer cancel()

	ch := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- Failure(KindExecution, "tool %s panicked: %v", tool.Schema.Name, r)
			}
		}()
		ch <- tool.Handler(callCtx, args).normalize()
	}()

	select {
	case res := <-ch:
		return res
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return Failure(KindCanceled, "tool %s canceled: %v", tool.Schema.Name, ctx.Err())
		}
		return Failure(KindTimeout, "tool %s timed out after %s", tool.Schema.Name, d.opts.Timeout)
	}
}

func (d *Dispatcher) report(call llm.ToolCall, res Result, elapsed time.Duration) {
	status := string(res.Status)
	if !res.OK() {
		status = string(res.Kind)
		d.log.Warn("tool_result",
			"tool_name", call.Name,
			"tool_call_id", call.ID,
			"kind", res.Kind,
			"error", res.Error,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	} else {
		d.log.Debug("tool_result",
			"tool_name", call.Name,
			"tool_call_id", call.ID,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
	d.obs.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventToolResult,
		Time:  time.Now(),
		Value: float64(elapsed.Microseconds()) / 1000,
		Tags: map[string]string{
			"tool":   call.Name,
			"status": status,
		},
	})
}
