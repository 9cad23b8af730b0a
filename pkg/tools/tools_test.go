package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/llm"
	"github.com/harunnryd/voxa/pkg/metrics"
)

func echoTool(name string) Tool {
	return Tool{
		Schema: Schema{
			Name:        name,
			Description: "echoes its input",
			Parameters: []Parameter{
				{Name: "text", Type: TypeString, Description: "text to echo", Required: true},
				{Name: "times", Type: TypeInteger, Description: "repeat count", Minimum: Bound(1), Maximum: Bound(3)},
				{Name: "mode", Type: TypeString, Description: "case", Enum: []string{"upper", "lower"}},
			},
		},
		Handler: func(_ context.Context, args Args) Result {
			return Success(map[string]any{"echo": strings.Repeat(args.String("text", ""), args.Int("times", 1))})
		},
	}
}

func mustRegistry(t *testing.T, list ...Tool) *Registry {
	t.Helper()
	reg, err := NewRegistry(list...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func decode(t *testing.T, res Result) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(res.String()), &out); err != nil {
		t.Fatalf("result is not json: %v", err)
	}
	return out
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(echoTool("a"), echoTool("a"))
	if err == nil || !errorsx.HasReason(err, errorsx.ReasonToolRegistry) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := NewRegistry(Tool{Schema: Schema{Name: "x"}}); err == nil {
		t.Fatalf("expected missing handler error")
	}
}

func TestRegistrySchemasStableOrder(t *testing.T) {
	reg := mustRegistry(t, echoTool("b"), echoTool("a"), echoTool("c"))
	for i := 0; i < 3; i++ {
		names := []string{}
		for _, s := range reg.Schemas() {
			names = append(names, s.Name)
		}
		if strings.Join(names, ",") != "b,a,c" {
			t.Fatalf("unexpected order %v", names)
		}
	}
	if _, err := reg.Resolve("missing"); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestJSONSchemaWireFormat(t *testing.T) {
	raw, err := json.Marshal(echoTool("echo").Schema.JSONSchema())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(raw)
	for _, want := range []string{
		`"type":"object"`,
		`"required":["text"]`,
		`"times":{"description":"repeat count","maximum":3,"minimum":1,"type":"integer"}`,
		`"enum":["upper","lower"]`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %s in %s", want, got)
		}
	}
}

func TestValidate(t *testing.T) {
	schema := echoTool("echo").Schema
	cases := []struct {
		name string
		args Args
		ok   bool
	}{
		{"valid", Args{"text": "hi", "times": float64(2)}, true},
		{"missing required", Args{"times": float64(2)}, false},
		{"wrong type", Args{"text": 5.0}, false},
		{"fractional integer", Args{"text": "hi", "times": 1.5}, false},
		{"below minimum", Args{"text": "hi", "times": float64(0)}, false},
		{"above maximum", Args{"text": "hi", "times": float64(4)}, false},
		{"enum miss", Args{"text": "hi", "mode": "title"}, false},
		{"undeclared ignored", Args{"text": "hi", "extra": true}, true},
	}
	for _, tc := range cases {
		err := Validate(schema, tc.args)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: unexpected err %v", tc.name, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidArguments) {
			t.Fatalf("%s: expected ErrInvalidArguments, got %v", tc.name, err)
		}
	}
}

func TestValidateBoundsWithoutType(t *testing.T) {
	schema := Schema{Name: "volume", Parameters: []Parameter{
		{Name: "level", Description: "loudness", Minimum: Bound(0), Maximum: Bound(10)},
	}}
	cases := []struct {
		name string
		args Args
		ok   bool
	}{
		{"number in range", Args{"level": float64(5)}, true},
		{"int32 in range", Args{"level": int32(7)}, true},
		{"json number", Args{"level": json.Number("3")}, true},
		{"string", Args{"level": "loud"}, false},
		{"bool", Args{"level": true}, false},
		{"above maximum", Args{"level": uint8(11)}, false},
	}
	for _, tc := range cases {
		err := Validate(schema, tc.args)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: unexpected err %v", tc.name, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidArguments) {
			t.Fatalf("%s: expected ErrInvalidArguments, got %v", tc.name, err)
		}
	}
}

func TestResultString(t *testing.T) {
	ok := decode(t, Success(map[string]any{"time": "14:30:00", "status": "ignored"}))
	if ok["status"] != "success" || ok["time"] != "14:30:00" {
		t.Fatalf("unexpected success payload %v", ok)
	}
	bad := decode(t, Failure(KindRefused, "no"))
	if bad["status"] != "error" || bad["kind"] != "refused" || bad["error"] != "no" {
		t.Fatalf("unexpected error payload %v", bad)
	}
	weird := decode(t, Success(map[string]any{"ch": make(chan int)}))
	if weird["status"] != "error" {
		t.Fatalf("expected unserializable data to become an error result")
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	d := NewDispatcher(mustRegistry(t, echoTool("echo")), DispatcherOptions{})
	res := d.Invoke(context.Background(), llm.ToolCall{ID: "1", Name: "teleport", Arguments: "{}"})
	if res.OK() || res.Kind != KindToolNotFound || !strings.Contains(res.Error, "teleport") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestInvokeArguments(t *testing.T) {
	d := NewDispatcher(mustRegistry(t, echoTool("echo")), DispatcherOptions{})
	for _, raw := range []string{"{not json", "[1,2]", "null", `"text"`} {
		res := d.Invoke(context.Background(), llm.ToolCall{Name: "echo", Arguments: raw})
		if res.Kind != KindInvalidArguments {
			t.Fatalf("args %q: expected invalid_arguments, got %+v", raw, res)
		}
	}
	res := d.Invoke(context.Background(), llm.ToolCall{Name: "echo", Arguments: `{"text":"ab","times":2}`})
	if !res.OK() || res.Data["echo"] != "abab" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestInvokeEmptyArgumentsIsEmptyObject(t *testing.T) {
	called := false
	reg := mustRegistry(t, Tool{
		Schema: Schema{Name: "noargs"},
		Handler: func(_ context.Context, args Args) Result {
			called = len(args) == 0
			return Success(nil)
		},
	})
	res := NewDispatcher(reg, DispatcherOptions{}).Invoke(context.Background(), llm.ToolCall{Name: "noargs", Arguments: "  "})
	if !res.OK() || !called {
		t.Fatalf("expected empty args to run handler, got %+v", res)
	}
}

func TestInvokeRecoversPanic(t *testing.T) {
	reg := mustRegistry(t, Tool{
		Schema:  Schema{Name: "explode"},
		Handler: func(context.Context, Args) Result { panic("kaboom") },
	})
	res := NewDispatcher(reg, DispatcherOptions{}).Invoke(context.Background(), llm.ToolCall{Name: "explode"})
	if res.Kind != KindExecution || !strings.Contains(res.Error, "kaboom") {
		t.Fatalf("expected execution error carrying panic value, got %+v", res)
	}
}

func TestInvokeTimeoutAndRetry(t *testing.T) {
	var calls int32
	reg := mustRegistry(t, Tool{
		Schema: Schema{Name: "slow"},
		Handler: func(ctx context.Context, _ Args) Result {
			atomic.AddInt32(&calls, 1)
			<-ctx.Done()
			return Success(nil)
		},
	})
	d := NewDispatcher(reg, DispatcherOptions{Timeout: 10 * time.Millisecond, Retries: 1, RetryBackoff: time.Millisecond})
	res := d.Invoke(context.Background(), llm.ToolCall{Name: "slow"})
	if res.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
}

func TestInvokeCanceledContext(t *testing.T) {
	d := NewDispatcher(mustRegistry(t, echoTool("echo")), DispatcherOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := d.Invoke(ctx, llm.ToolCall{Name: "echo", Arguments: `{"text":"x"}`})
	if res.Kind != KindCanceled {
		t.Fatalf("expected canceled, got %+v", res)
	}
}

func TestDispatchKeepsRequestOrder(t *testing.T) {
	reg := mustRegistry(t, Tool{
		Schema: Schema{Name: "sleep", Parameters: []Parameter{{Name: "ms", Type: TypeInteger, Required: true}}},
		Handler: func(_ context.Context, args Args) Result {
			ms := args.Int("ms", 0)
			time.Sleep(time.Duration(ms) * time.Millisecond)
			return Success(map[string]any{"ms": ms})
		},
	})
	obs := metrics.NewMemoryObserver()
	d := NewDispatcher(reg, DispatcherOptions{Concurrency: 3, Observer: obs})
	calls := []llm.ToolCall{
		{ID: "a", Name: "sleep", Arguments: `{"ms":30}`},
		{ID: "b", Name: "sleep", Arguments: `{"ms":1}`},
		{ID: "c", Name: "missing"},
		{ID: "d", Name: "sleep", Arguments: `{"ms":10}`},
	}
	results := d.Dispatch(context.Background(), calls)
	if len(results) != len(calls) {
		t.Fatalf("expected %d results, got %d", len(calls), len(results))
	}
	want := []any{30, 1, nil, 10}
	for i, res := range results {
		if want[i] == nil {
			if res.Kind != KindToolNotFound {
				t.Fatalf("result %d: expected tool_not_found, got %+v", i, res)
			}
			continue
		}
		if res.Data["ms"] != want[i] {
			t.Fatalf("result %d out of order: %+v", i, res)
		}
	}
	if got := len(obs.Named(metrics.EventToolResult)); got != 4 {
		t.Fatalf("expected 4 tool_result events, got %d", got)
	}
}
