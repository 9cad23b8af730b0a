package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/llm"
	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/providers/mock"
	"github.com/harunnryd/voxa/pkg/resilience"
	"github.com/harunnryd/voxa/pkg/tools"
	"github.com/harunnryd/voxa/pkg/tools/builtin"
)

func newDispatcher(t *testing.T, list ...tools.Tool) *tools.Dispatcher {
	t.Helper()
	reg, err := tools.NewRegistry(list...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return tools.NewDispatcher(reg, tools.DispatcherOptions{})
}

func failingTool() tools.Tool {
	return tools.Tool{
		Schema:  tools.Schema{Name: "always_fails"},
		Handler: func(context.Context, tools.Args) tools.Result { panic("tool exploded") },
	}
}

func toolMessages(msgs []llm.Message) []llm.Message {
	var out []llm.Message
	for _, m := range msgs {
		if m.Role == llm.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

func decodeResult(t *testing.T, content string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		t.Fatalf("tool message is not json: %v (%s)", err, content)
	}
	return out
}

func TestRoundTripScenario(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 1, 7, 14, 30, 0, 0, time.Local) }
	backend := mock.NewLLMAdapter(mock.LLMConfig{Script: []mock.Step{
		mock.CallTools(llm.ToolCall{ID: "call_1", Name: "get_current_time", Arguments: ""}),
		mock.Reply("It's 2:30 PM."),
	}})
	a := New(backend,
		WithSystemPrompt("You are a test assistant."),
		WithDispatcher(newDispatcher(t, builtin.New(builtin.Options{Now: clock})...)),
	)

	res := a.Turn(context.Background(), "What time is it?")
	if res.Text != "It's 2:30 PM." || res.Outcome != OutcomeAnswered {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Iterations != 2 || res.ToolCalls != 1 {
		t.Fatalf("expected 2 iterations and 1 tool call, got %+v", res)
	}

	hist := a.GetHistory()
	wantRoles := []llm.Role{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleTool, llm.RoleAssistant}
	if len(hist) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d: %+v", len(wantRoles), len(hist), hist)
	}
	for i, role := range wantRoles {
		if hist[i].Role != role {
			t.Fatalf("message %d: expected role %s, got %s", i, role, hist[i].Role)
		}
	}
	if hist[0].Content != "You are a test assistant." || hist[1].Content != "What time is it?" {
		t.Fatalf("unexpected head of history %+v", hist[:2])
	}
	if len(hist[2].ToolCalls) != 1 || hist[2].ToolCalls[0].Name != "get_current_time" {
		t.Fatalf("expected assistant tool-call message, got %+v", hist[2])
	}
	if hist[3].ToolCallID != "call_1" || hist[3].ToolName != "get_current_time" {
		t.Fatalf("tool result not correlated: %+v", hist[3])
	}
	result := decodeResult(t, hist[3].Content)
	if result["status"] != "success" || result["time"] != "14:30:00" {
		t.Fatalf("unexpected tool payload %v", result)
	}
	if hist[4].Content != "It's 2:30 PM." {
		t.Fatalf("unexpected final message %+v", hist[4])
	}

	reqs := backend.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 backend calls, got %d", len(reqs))
	}
	if reqs[0].ToolChoice != llm.ToolChoiceAuto || len(reqs[0].Tools) != 5 {
		t.Fatalf("expected auto tool choice with 5 tools, got %q %d", reqs[0].ToolChoice, len(reqs[0].Tools))
	}
	if len(reqs[1].Messages) != 4 || reqs[1].Messages[3].Role != llm.RoleTool {
		t.Fatalf("second call must see the tool result, got %+v", reqs[1].Messages)
	}
}

func TestToolFailureIsIsolated(t *testing.T) {
	backend := mock.NewLLMAdapter(mock.LLMConfig{
		Script:     []mock.Step{mock.CallTools(llm.ToolCall{ID: "x", Name: "always_fails", Arguments: "{}"})},
		RepeatLast: true,
	})
	a := New(backend, WithMaxIterations(3), WithDispatcher(newDispatcher(t, failingTool())))

	text := a.ProcessInput(context.Background(), "break things")
	if text != DefaultFallbacks().BudgetExhausted {
		t.Fatalf("expected budget fallback, got %q", text)
	}
	msgs := toolMessages(a.GetHistory())
	if len(msgs) != 3 {
		t.Fatalf("expected one tool message per failed invocation, got %d", len(msgs))
	}
	for _, m := range msgs {
		if got := decodeResult(t, m.Content); got["status"] != "error" {
			t.Fatalf("expected error status, got %v", got)
		}
	}
}

func TestUnknownToolBecomesErrorResult(t *testing.T) {
	backend := mock.NewLLMAdapter(mock.LLMConfig{Script: []mock.Step{
		mock.CallTools(llm.ToolCall{ID: "1", Name: "launch_rockets", Arguments: `{"count":3}`}),
		mock.Reply("I can't do that."),
	}})
	a := New(backend, WithDispatcher(newDispatcher(t, builtin.Default()...)))
	if got := a.ProcessInput(context.Background(), "launch"); got != "I can't do that." {
		t.Fatalf("unexpected reply %q", got)
	}
	msgs := toolMessages(a.GetHistory())
	if len(msgs) != 1 {
		t.Fatalf("expected one tool message, got %d", len(msgs))
	}
	payload := decodeResult(t, msgs[0].Content)
	if payload["status"] != "error" || payload["kind"] != "tool_not_found" || !strings.Contains(payload["error"].(string), "launch_rockets") {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestIterationBoundIsExact(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		backend := mock.NewLLMAdapter(mock.LLMConfig{
			Script:     []mock.Step{mock.CallTools(llm.ToolCall{ID: "t", Name: "get_current_time"})},
			RepeatLast: true,
		})
		a := New(backend, WithMaxIterations(n), WithDispatcher(newDispatcher(t, builtin.Default()...)))
		res := a.Turn(context.Background(), "loop forever")
		if backend.Calls() != n {
			t.Fatalf("max %d: expected exactly %d model calls, got %d", n, n, backend.Calls())
		}
		if res.Outcome != OutcomeFallback || res.Reason != errorsx.ReasonIterationBudget || res.Text != DefaultFallbacks().BudgetExhausted {
			t.Fatalf("max %d: unexpected result %+v", n, res)
		}
	}
}

func TestDefaultIterationBudget(t *testing.T) {
	backend := mock.NewLLMAdapter(mock.LLMConfig{
		Script:     []mock.Step{mock.CallTools(llm.ToolCall{ID: "t", Name: "get_current_time"})},
		RepeatLast: true,
	})
	New(backend, WithDispatcher(newDispatcher(t, builtin.Default()...))).ProcessInput(context.Background(), "hi")
	if backend.Calls() != DefaultMaxIterations {
		t.Fatalf("expected %d calls, got %d", DefaultMaxIterations, backend.Calls())
	}
}

func TestStopOutcomes(t *testing.T) {
	fb := DefaultFallbacks()
	cases := []struct {
		name    string
		step    mock.Step
		text    string
		outcome Outcome
		reason  errorsx.ReasonCode
	}{
		{"empty stop", mock.Reply(""), fb.EmptyReply, OutcomeAnswered, ""},
		{"length", mock.Finish(llm.FinishLength, "partial"), fb.AnomalousStop, OutcomeFallback, errorsx.ReasonAnomalousStop},
		{"content filter", mock.Finish(llm.FinishContentFilter, ""), fb.AnomalousStop, OutcomeFallback, errorsx.ReasonAnomalousStop},
		{"tool_calls without calls", mock.Finish(llm.FinishToolCalls, ""), fb.AnomalousStop, OutcomeFallback, errorsx.ReasonAnomalousStop},
		{"backend error", mock.Fail(errors.New("connection refused")), fb.BackendError, OutcomeError, errorsx.ReasonBackendCall},
		{"rate limit", mock.Fail(resilience.RateLimitError{Provider: "openai"}), fb.BackendError, OutcomeError, errorsx.ReasonBackendRateLimit},
	}
	for _, tc := range cases {
		backend := mock.NewLLMAdapter(mock.LLMConfig{Script: []mock.Step{tc.step}})
		a := New(backend)
		res := a.Turn(context.Background(), "hello")
		if res.Text != tc.text || res.Outcome != tc.outcome || res.Reason != tc.reason {
			t.Fatalf("%s: unexpected result %+v", tc.name, res)
		}
		if backend.Calls() != 1 {
			t.Fatalf("%s: expected no retry, got %d calls", tc.name, backend.Calls())
		}
		hist := a.GetHistory()
		if last := hist[len(hist)-1]; last.Role != llm.RoleAssistant || last.Content != tc.text {
			t.Fatalf("%s: fallback not appended: %+v", tc.name, last)
		}
	}
}

type panickyBackend struct{}

func (panickyBackend) Name() string { return "panicky" }
func (panickyBackend) Generate(context.Context, llm.Context) (llm.Response, error) {
	panic("adapter bug")
}
func (panickyBackend) Stream(context.Context, llm.Context) (<-chan string, error) {
	return nil, errors.New("no stream")
}

func TestBackendPanicBecomesErrorOutcome(t *testing.T) {
	res := New(panickyBackend{}).Turn(context.Background(), "hi")
	if res.Outcome != OutcomeError || res.Text != DefaultFallbacks().BackendError {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	backend := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "ok"})
	a := New(backend, WithSystemPrompt("sys"))
	for i := 0; i < 7; i++ {
		a.ProcessInput(context.Background(), "hi")
	}
	for i := 0; i < 2; i++ {
		a.ResetConversation()
		hist := a.GetHistory()
		if len(hist) != 1 || hist[0].Role != llm.RoleSystem || hist[0].Content != "sys" {
			t.Fatalf("expected only the system message, got %+v", hist)
		}
	}
}

func TestHistoryBoundAcrossTurns(t *testing.T) {
	backend := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "ok"})
	obs := metrics.NewMemoryObserver()
	a := New(backend, WithMaxHistory(4), WithObserver(obs))
	for i := 0; i < 6; i++ {
		a.ProcessInput(context.Background(), "hi")
		if n := len(a.GetHistory()); n > 5 {
			t.Fatalf("turn %d: history length %d exceeds bound", i, n)
		}
	}
	if len(obs.Named(metrics.EventHistoryTrim)) == 0 {
		t.Fatalf("expected history_trim events")
	}
	if len(obs.Named(metrics.EventTurnCompleted)) != 6 {
		t.Fatalf("expected 6 turn_completed events")
	}
}

func TestSetSystemPromptInPlace(t *testing.T) {
	backend := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "ok"})
	a := New(backend, WithSystemPrompt("old"))
	a.ProcessInput(context.Background(), "hi")
	before := len(a.GetHistory())
	a.SetSystemPrompt("new")
	hist := a.GetHistory()
	if len(hist) != before || hist[0].Content != "new" || a.SystemPrompt() != "new" {
		t.Fatalf("expected in-place update, got %+v", hist)
	}
	a.ResetConversation()
	if got := a.GetHistory()[0].Content; got != "new" {
		t.Fatalf("reset must keep the current system prompt, got %q", got)
	}
}

func TestCanceledTurnLeavesNoDanglingToolCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	slow := tools.Tool{
		Schema: tools.Schema{Name: "slow"},
		Handler: func(context.Context, tools.Args) tools.Result {
			cancel()
			<-block
			return tools.Success(nil)
		},
	}
	backend := mock.NewLLMAdapter(mock.LLMConfig{Script: []mock.Step{
		mock.CallTools(
			llm.ToolCall{ID: "1", Name: "slow"},
			llm.ToolCall{ID: "2", Name: "slow"},
		),
	}})
	reg, _ := tools.NewRegistry(slow)
	a := New(backend, WithDispatcher(tools.NewDispatcher(reg, tools.DispatcherOptions{Concurrency: 1})))
	res := a.Turn(ctx, "go")
	if res.Outcome != OutcomeError {
		t.Fatalf("expected abandoned turn to end in error, got %+v", res)
	}
	hist := a.GetHistory()
	var calls, results int
	for _, m := range hist {
		calls += len(m.ToolCalls)
		if m.Role == llm.RoleTool {
			results++
			if payload := decodeResult(t, m.Content); payload["kind"] != "canceled" {
				t.Fatalf("expected canceled result, got %v", payload)
			}
		}
	}
	if calls != 2 || results != 2 {
		t.Fatalf("every tool call needs a result: calls=%d results=%d", calls, results)
	}
}

func TestTurnsAreSerialized(t *testing.T) {
	backend := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "ok"})
	a := New(backend, WithMaxHistory(100))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.ProcessInput(context.Background(), "hi")
		}()
	}
	wg.Wait()
	hist := a.GetHistory()
	if len(hist) != 17 {
		t.Fatalf("expected 17 messages, got %d", len(hist))
	}
	for i := 1; i < len(hist); i += 2 {
		if hist[i].Role != llm.RoleUser || hist[i+1].Role != llm.RoleAssistant {
			t.Fatalf("turns interleaved at %d: %+v", i, hist[i:i+2])
		}
	}
}

func TestStreamInput(t *testing.T) {
	backend := mock.NewLLMAdapter(mock.LLMConfig{StreamChunks: []string{"Hel", "lo", "!"}})
	a := New(backend, WithDispatcher(newDispatcher(t, builtin.Default()...)))
	var got strings.Builder
	for chunk := range a.StreamInput(context.Background(), "hi") {
		got.WriteString(chunk)
	}
	if got.String() != "Hello!" {
		t.Fatalf("unexpected stream %q", got.String())
	}
	hist := a.GetHistory()
	if hist[len(hist)-1].Content != "Hello!" {
		t.Fatalf("expected full reply appended, got %+v", hist[len(hist)-1])
	}
	if reqs := backend.Requests(); len(reqs[0].Tools) != 0 {
		t.Fatalf("chat-only mode must not advertise tools")
	}

	failing := New(mock.NewLLMAdapter(mock.LLMConfig{StreamErr: errors.New("down")}))
	var chunks []string
	for chunk := range failing.StreamInput(context.Background(), "hi") {
		chunks = append(chunks, chunk)
	}
	if len(chunks) != 1 || chunks[0] != DefaultFallbacks().StreamError {
		t.Fatalf("expected error chunk, got %v", chunks)
	}
}

func TestExportHistory(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "1", Name: "calculate", Arguments: `{"expression":"1<2"}`}}},
		{Role: llm.RoleTool, ToolCallID: "1", ToolName: "calculate", Content: `{"status":"success"}`},
	}
	var buf bytes.Buffer
	if err := ExportHistory(&buf, msgs, "json"); err != nil {
		t.Fatalf("json export: %v", err)
	}
	var decoded []llm.Message
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || len(decoded) != 3 {
		t.Fatalf("json round trip failed: %v", err)
	}
	if !strings.Contains(buf.String(), `1<2`) {
		t.Fatalf("expected unescaped html characters, got %s", buf.String())
	}

	buf.Reset()
	if err := ExportHistory(&buf, msgs, "yaml"); err != nil {
		t.Fatalf("yaml export: %v", err)
	}
	if !strings.Contains(buf.String(), "tool_call_id: \"1\"") || !strings.Contains(buf.String(), "role: system") {
		t.Fatalf("unexpected yaml %s", buf.String())
	}

	if err := ExportHistory(&buf, msgs, "xml"); !errorsx.HasReason(err, errorsx.ReasonHistoryExport) {
		t.Fatalf("expected export reason, got %v", err)
	}
	if FormatForPath("out.yml") != FormatYAML || FormatForPath("out.json") != FormatJSON {
		t.Fatalf("unexpected format detection")
	}
	if got := ExportFileName(time.Date(2026, 1, 7, 9, 5, 3, 0, time.UTC)); got != "conversation_history_20260107_090503.json" {
		t.Fatalf("unexpected export name %q", got)
	}
}
