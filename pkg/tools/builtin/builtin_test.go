package builtin

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/voxa/pkg/llm"
	"github.com/harunnryd/voxa/pkg/tools"
)

func dispatcher(t *testing.T, opts Options) *tools.Dispatcher {
	t.Helper()
	reg, err := tools.NewRegistry(New(opts)...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return tools.NewDispatcher(reg, tools.DispatcherOptions{})
}

func TestDefaultSetOrderAndSafety(t *testing.T) {
	var names []string
	for _, tool := range Default() {
		names = append(names, tool.Schema.Name)
	}
	want := "get_current_time,get_current_weather,search_web,get_system_info,calculate"
	if strings.Join(names, ",") != want {
		t.Fatalf("unexpected default set %v", names)
	}
	exposed := New(Options{ExposeSystemCommand: true})
	if exposed[len(exposed)-1].Schema.Name != "execute_system_command" {
		t.Fatalf("expected command tool appended when exposed")
	}
}

func TestCurrentTimeUsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	d := dispatcher(t, Options{Now: func() time.Time { return fixed }})
	res := d.Invoke(context.Background(), llm.ToolCall{Name: "get_current_time"})
	if !res.OK() || res.Data["time"] != "14:30:00" || res.Data["date"] != "2024-03-15" || res.Data["day_of_week"] != "Friday" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Data["timezone"] != "local" {
		t.Fatalf("expected local timezone, got %v", res.Data["timezone"])
	}
	bad := d.Invoke(context.Background(), llm.ToolCall{Name: "get_current_time", Arguments: `{"timezone":"Mars/Base"}`})
	if bad.OK() {
		t.Fatalf("expected unknown timezone to fail")
	}
}

func TestWeatherAndSearch(t *testing.T) {
	d := dispatcher(t, Options{})
	res := d.Invoke(context.Background(), llm.ToolCall{Name: "get_current_weather", Arguments: `{"location":"Oslo","unit":"fahrenheit"}`})
	if !res.OK() || res.Data["temperature"] != 72 || res.Data["location"] != "Oslo" {
		t.Fatalf("unexpected weather %+v", res)
	}
	if res := d.Invoke(context.Background(), llm.ToolCall{Name: "get_current_weather", Arguments: `{"location":"Oslo","unit":"kelvin"}`}); res.Kind != tools.KindInvalidArguments {
		t.Fatalf("expected enum violation, got %+v", res)
	}
	res = d.Invoke(context.Background(), llm.ToolCall{Name: "search_web", Arguments: `{"query":"go","num_results":5}`})
	if got := len(res.Data["results"].([]map[string]any)); got != 3 {
		t.Fatalf("expected results capped at 3, got %d", got)
	}
	if res := d.Invoke(context.Background(), llm.ToolCall{Name: "search_web", Arguments: `{"query":"go","num_results":9}`}); res.Kind != tools.KindInvalidArguments {
		t.Fatalf("expected maximum violation, got %+v", res)
	}
}

func TestSystemInfoSurvivesHostnameError(t *testing.T) {
	d := dispatcher(t, Options{Hostname: func() (string, error) { return "", errors.New("no host") }})
	res := d.Invoke(context.Background(), llm.ToolCall{Name: "get_system_info"})
	if !res.OK() || res.Data["hostname"] != "unknown" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSystemCommandAlwaysRefuses(t *testing.T) {
	d := dispatcher(t, Options{ExposeSystemCommand: true})
	for _, raw := range []string{`{"command":"rm -rf /"}`, `{"command":"echo hi"}`, `{}`, `not json`, `{"command":42}`} {
		res := d.Invoke(context.Background(), llm.ToolCall{Name: "execute_system_command", Arguments: raw})
		if res.Status != tools.StatusError {
			t.Fatalf("args %s: expected error status, got %+v", raw, res)
		}
	}
	res := SystemCommand().Handler(context.Background(), tools.Args{"command": "touch /tmp/pwned"})
	if res.Kind != tools.KindRefused {
		t.Fatalf("expected refused kind, got %+v", res)
	}
}

func TestEvaluate(t *testing.T) {
	cases := map[string]float64{
		"2 + 2":              4,
		"10 * 5":             50,
		"pow(2, 8)":          256,
		"2 ** 10":            1024,
		"2 * 3 ** 2":         18,
		"-2 ** 2":            -4,
		"2 ** -1":            0.5,
		"(1 + 2) * 3":        9,
		"7 % 3":              1,
		"-7 % 3":             2,
		"abs(-4.5)":          4.5,
		"round(2.5)":         2,
		"round(3.14159, 2)":  3.14,
		"min(3, 1, 2)":       1,
		"max([4, 9, 2])":     9,
		"sum([1, 2, 3]) + 1": 7,
		"1e3 / 4":            250,
	}
	for expr, want := range cases {
		got, err := Evaluate(expr)
		if err != nil {
			t.Fatalf("%s: %v", expr, err)
		}
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("%s = %v, want %v", expr, got, want)
		}
	}
}

func TestEvaluateRejects(t *testing.T) {
	for _, expr := range []string{
		"",
		"1 / 0",
		"7 // 2",
		"__import__('os')",
		"open(\"/etc/passwd\")",
		"2 * * 3",
		"(1 + 2",
		"[1, 2] + 1",
		"pow(2)",
		"x",
		"\"text\"",
	} {
		if _, err := Evaluate(expr); err == nil {
			t.Fatalf("expected %q to be rejected", expr)
		}
	}
}

func TestCalculatorToolReportsErrors(t *testing.T) {
	d := dispatcher(t, Options{})
	res := d.Invoke(context.Background(), llm.ToolCall{Name: "calculate", Arguments: `{"expression":"1/0"}`})
	if res.OK() || res.Kind != tools.KindExecution || res.Data["expression"] != "1/0" {
		t.Fatalf("unexpected result %+v", res)
	}
	res = d.Invoke(context.Background(), llm.ToolCall{Name: "calculate", Arguments: `{"expression":"6*7"}`})
	if !res.OK() || res.Data["result"] != 42.0 {
		t.Fatalf("unexpected result %+v", res)
	}
}
