// Package agent runs the tool-calling conversation loop.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/llm"
	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/redact"
	"github.com/harunnryd/voxa/pkg/resilience"
	"github.com/harunnryd/voxa/pkg/tools"
)

// Outcome is the terminal state of a turn.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeFallback Outcome = "fallback"
	OutcomeError    Outcome = "error"
)

type TurnResult struct {
	Text       string
	Outcome    Outcome
	Reason     errorsx.ReasonCode
	Iterations int
	ToolCalls  int
}

// Agent owns one conversation. Turns are serialized; History may be read
// concurrently.
type Agent struct {
	id            string
	backend       llm.LLMAdapter
	dispatcher    *tools.Dispatcher
	history       *History
	systemPrompt  string
	maxHistory    int
	maxIterations int
	fallbacks     Fallbacks
	baseLog       *slog.Logger
	log           *slog.Logger
	obs           metrics.Observer

	turnMu sync.Mutex
}

func New(backend llm.LLMAdapter, opts ...Option) *Agent {
	a := &Agent{
		id:            uuid.NewString(),
		backend:       backend,
		systemPrompt:  DefaultSystemPrompt,
		maxHistory:    DefaultMaxHistory,
		maxIterations: DefaultMaxIterations,
		fallbacks:     DefaultFallbacks(),
		obs:           metrics.NoopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.dispatcher == nil {
		reg, _ := tools.NewRegistry()
		a.dispatcher = tools.NewDispatcher(reg, tools.DispatcherOptions{Logger: a.baseLog, Observer: a.obs})
	}
	a.log = logging.NewComponentLogger(a.baseLog, "agent").With("conversation_id", a.id)
	a.history = NewHistory(a.systemPrompt, a.maxHistory)
	return a
}

func (a *Agent) ID() string { return a.id }

// ProcessInput runs one turn and returns the reply text. It never fails;
// problems surface as fallback replies.
func (a *Agent) ProcessInput(ctx context.Context, text string) string {
	return a.Turn(ctx, text).Text
}

// Turn appends the user text, then alternates model calls and tool
// dispatch until the model stops, misbehaves, fails, or the iteration
// budget runs out. The reply is always appended to history.
func (a *Agent) Turn(ctx context.Context, text string) TurnResult {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	start := time.Now()
	a.log.Info("turn_started", "text", redact.Preview(text, 200))
	a.record(metrics.EventTurnStarted, 0, nil, nil)
	a.append(llm.Message{Role: llm.RoleUser, Content: text})

	res := a.loop(ctx)

	a.append(llm.Message{Role: llm.RoleAssistant, Content: res.Text})
	elapsed := time.Since(start)
	attrs := []any{
		"outcome", res.Outcome,
		"iterations", res.Iterations,
		"tool_calls", res.ToolCalls,
		"elapsed_ms", elapsed.Milliseconds(),
	}
	if res.Outcome == OutcomeAnswered {
		a.log.Info("turn_completed", attrs...)
	} else {
		a.log.Warn("turn_completed", append(attrs, "reason_code", string(res.Reason))...)
	}
	a.record(metrics.EventTurnCompleted, float64(elapsed.Microseconds())/1000,
		map[string]string{"outcome": string(res.Outcome)},
		map[string]any{"iterations": res.Iterations, "tool_calls": res.ToolCalls})
	return res
}

func (a *Agent) loop(ctx context.Context) TurnResult {
	var res TurnResult
	advertised := a.dispatcher.Registry().Tools()
	for res.Iterations < a.maxIterations {
		res.Iterations++
		resp, err := a.generate(ctx, llm.Context{
			Messages:   a.history.Snapshot(),
			Tools:      advertised,
			ToolChoice: llm.ToolChoiceAuto,
		})
		if err != nil {
			reason := errorsx.ReasonBackendCall
			if resilience.IsRateLimit(err) {
				reason = errorsx.ReasonBackendRateLimit
			}
			err = errorsx.Wrap(err, reason)
			a.log.Error("model_call_failed", "iteration", res.Iterations, "reason_code", string(errorsx.Reason(err)), "error", err)
			return a.conclude(res, OutcomeError, reason, a.fallbacks.BackendError)
		}

		kind := resp.FinishReason.Kind()
		a.log.Debug("agent_iteration", "iteration", res.Iterations, "finish_reason", string(resp.FinishReason), "tool_calls", len(resp.Message.ToolCalls))
		switch {
		case kind == llm.StopToolCalls && len(resp.Message.ToolCalls) > 0:
			res.ToolCalls += a.runTools(ctx, resp.Message)
		case kind == llm.StopComplete:
			text := resp.Message.Content
			if strings.TrimSpace(text) == "" {
				text = a.fallbacks.EmptyReply
			}
			return a.conclude(res, OutcomeAnswered, "", text)
		default:
			a.log.Warn("anomalous_stop", "iteration", res.Iterations, "finish_reason", string(resp.FinishReason))
			return a.conclude(res, OutcomeFallback, errorsx.ReasonAnomalousStop, a.fallbacks.AnomalousStop)
		}
	}
	return a.conclude(res, OutcomeFallback, errorsx.ReasonIterationBudget, a.fallbacks.BudgetExhausted)
}

// runTools records the tool-call message and one result message per call,
// in the order the model listed them.
func (a *Agent) runTools(ctx context.Context, msg llm.Message) int {
	calls := msg.ToolCalls
	a.history.AppendUntrimmed(llm.Message{
		Role:      llm.RoleAssistant,
		Content:   msg.Content,
		ToolCalls: calls,
	})
	results := a.dispatcher.Dispatch(ctx, calls)
	out := make([]llm.Message, len(calls))
	for i, call := range calls {
		out[i] = llm.Message{
			Role:       llm.RoleTool,
			Content:    results[i].String(),
			ToolCallID: call.ID,
			ToolName:   call.Name,
		}
	}
	a.history.AppendUntrimmed(out...)
	return len(calls)
}

// generate shields the loop from adapter panics.
func (a *Agent) generate(ctx context.Context, input llm.Context) (resp llm.Response, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model backend panicked: %v", r)
		}
		stop := resp.FinishReason.Kind().String()
		if err != nil {
			stop = "error"
		}
		a.record(metrics.EventModelCall, float64(time.Since(start).Microseconds())/1000,
			map[string]string{"provider": a.backend.Name(), "stop": stop},
			map[string]any{"prompt_tokens": resp.Usage.PromptTokens, "completion_tokens": resp.Usage.CompletionTokens})
	}()
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	return a.backend.Generate(ctx, input)
}

func (a *Agent) conclude(res TurnResult, outcome Outcome, reason errorsx.ReasonCode, text string) TurnResult {
	res.Outcome = outcome
	res.Reason = reason
	res.Text = text
	return res
}

func (a *Agent) append(msg llm.Message) {
	if dropped := a.history.Append(msg); dropped > 0 {
		a.log.Debug("history_trimmed", "dropped", dropped, "size", a.history.Len())
		a.record(metrics.EventHistoryTrim, float64(dropped), nil, nil)
	}
}

// StreamInput is the chat-only mode: no tools are advertised and the reply
// arrives in chunks. The full reply is appended once the stream ends.
func (a *Agent) StreamInput(ctx context.Context, text string) <-chan string {
	out := make(chan string)
	a.turnMu.Lock()
	a.log.Info("stream_started", "text", redact.Preview(text, 200))
	a.append(llm.Message{Role: llm.RoleUser, Content: text})

	go func() {
		defer a.turnMu.Unlock()
		defer close(out)

		send := func(chunk string) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		ch, err := a.backend.Stream(ctx, llm.Context{Messages: a.history.Snapshot()})
		if err != nil {
			err = errorsx.Wrap(err, errorsx.ReasonLLMStream)
			a.log.Error("stream_failed", "reason_code", string(errorsx.Reason(err)), "error", err)
			a.append(llm.Message{Role: llm.RoleAssistant, Content: a.fallbacks.StreamError})
			send(a.fallbacks.StreamError)
			return
		}
		var full strings.Builder
		for chunk := range ch {
			if chunk == "" {
				continue
			}
			full.WriteString(chunk)
			if !send(chunk) {
				go func() {
					for range ch {
					}
				}()
				break
			}
		}
		reply := full.String()
		if strings.TrimSpace(reply) == "" {
			reply = a.fallbacks.EmptyReply
			send(reply)
		}
		a.append(llm.Message{Role: llm.RoleAssistant, Content: reply})
	}()
	return out
}

// ResetConversation returns the history to the system message alone.
func (a *Agent) ResetConversation() {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()
	a.history.Reset()
	a.log.Info("conversation_reset")
}

// SetSystemPrompt replaces the system message in place; the rest of the
// history is untouched.
func (a *Agent) SetSystemPrompt(text string) {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()
	a.systemPrompt = text
	a.history.SetSystem(text)
	a.log.Info("system_prompt_updated")
}

func (a *Agent) SystemPrompt() string { return a.history.System() }

// GetHistory returns a copy of the conversation.
func (a *Agent) GetHistory() []llm.Message { return a.history.Snapshot() }

func (a *Agent) Tools() []tools.Schema { return a.dispatcher.Registry().Schemas() }

func (a *Agent) record(name string, value float64, tags map[string]string, fields map[string]any) {
	all := map[string]string{"component": "agent", "conversation_id": a.id}
	for k, v := range tags {
		all[k] = v
	}
	a.obs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Value:  value,
		Tags:   all,
		Fields: fields,
	})
}
