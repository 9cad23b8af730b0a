package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/voxa/pkg/llm"
)

// Step is one scripted backend reply.
type Step struct {
	Response llm.Response
	Err      error
}

// Reply is a clean stop with text.
func Reply(text string) Step {
	return Step{Response: llm.Response{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: text},
		FinishReason: llm.FinishStop,
	}}
}

// CallTools requests tool invocations.
func CallTools(calls ...llm.ToolCall) Step {
	return Step{Response: llm.Response{
		Message:      llm.Message{Role: llm.RoleAssistant, ToolCalls: calls},
		FinishReason: llm.FinishToolCalls,
	}}
}

// Finish ends generation with an arbitrary finish reason.
func Finish(reason llm.FinishReason, text string) Step {
	return Step{Response: llm.Response{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: text},
		FinishReason: reason,
	}}
}

func Fail(err error) Step { return Step{Err: err} }

type LLMConfig struct {
	// ResponseText is returned once Script runs out, unless RepeatLast is set.
	ResponseText string
	Script       []Step
	RepeatLast   bool
	StreamChunks []string
	StreamErr    error
}

// LLMAdapter replays a script and records every request it receives.
type LLMAdapter struct {
	cfg LLMConfig

	mu       sync.Mutex
	requests []llm.Context
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" {
		cfg.ResponseText = "mock response"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	a.mu.Lock()
	n := len(a.requests)
	a.requests = append(a.requests, snapshot(input))
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	var step Step
	switch {
	case n < len(a.cfg.Script):
		step = a.cfg.Script[n]
	case a.cfg.RepeatLast && len(a.cfg.Script) > 0:
		step = a.cfg.Script[len(a.cfg.Script)-1]
	default:
		step = Reply(a.cfg.ResponseText)
	}
	if step.Err != nil {
		return llm.Response{}, step.Err
	}
	resp := step.Response
	resp.Message.ToolCalls = append([]llm.ToolCall(nil), resp.Message.ToolCalls...)
	return resp, nil
}

func (a *LLMAdapter) Stream(ctx context.Context, input llm.Context) (<-chan string, error) {
	a.mu.Lock()
	a.requests = append(a.requests, snapshot(input))
	a.mu.Unlock()
	if a.cfg.StreamErr != nil {
		return nil, a.cfg.StreamErr
	}
	chunks := a.cfg.StreamChunks
	if len(chunks) == 0 {
		chunks = []string{a.cfg.ResponseText}
	}
	out := make(chan string, len(chunks))
	for _, chunk := range chunks {
		out <- chunk
	}
	close(out)
	return out, nil
}

// Requests returns every request seen so far.
func (a *LLMAdapter) Requests() []llm.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]llm.Context(nil), a.requests...)
}

func (a *LLMAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func snapshot(in llm.Context) llm.Context {
	in.Messages = llm.CloneMessages(in.Messages)
	in.Tools = append([]llm.Tool(nil), in.Tools...)
	return in
}

var _ llm.LLMAdapter = (*LLMAdapter)(nil)
