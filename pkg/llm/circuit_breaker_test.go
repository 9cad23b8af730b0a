package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/resilience"
)

type failingAdapter struct {
	err   error
	calls int
}

func (a *failingAdapter) Name() string { return "failing" }

func (a *failingAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	a.calls++
	if a.err != nil {
		return Response{}, a.err
	}
	return Response{Message: Message{Role: RoleAssistant, Content: "ok"}, FinishReason: FinishStop}, nil
}

func (a *failingAdapter) Stream(ctx context.Context, input Context) (<-chan string, error) {
	return nil, errors.New("not supported")
}

func TestCircuitBreakerOpensAfterRateLimits(t *testing.T) {
	inner := &failingAdapter{err: resilience.RateLimitError{Provider: "failing", Message: "slow down"}}
	obs := metrics.NewMemoryObserver()
	adapter := NewCircuitBreakerAdapter(inner, resilience.NewCircuitBreaker(2, time.Minute))
	adapter.SetObserver(obs)

	for i := 0; i < 2; i++ {
		if _, err := adapter.Generate(context.Background(), Context{}); err == nil {
			t.Fatalf("expected error on call %d", i)
		}
	}
	_, err := adapter.Generate(context.Background(), Context{})
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error while open, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected breaker to short-circuit third call, inner calls=%d", inner.calls)
	}
	var sawDenied, sawOpen bool
	for _, ev := range obs.Events {
		switch ev.Name {
		case metrics.EventBreakerDenied:
			sawDenied = true
		case metrics.EventBreakerOpen:
			sawOpen = true
		}
	}
	if !sawDenied || !sawOpen {
		t.Fatalf("expected breaker open and denied events, got %+v", obs.Events)
	}
}

func TestCircuitBreakerIgnoresOtherErrors(t *testing.T) {
	inner := &failingAdapter{err: errors.New("auth failed")}
	adapter := NewCircuitBreakerAdapter(inner, resilience.NewCircuitBreaker(1, time.Minute))
	for i := 0; i < 3; i++ {
		_, _ = adapter.Generate(context.Background(), Context{})
	}
	if inner.calls != 3 {
		t.Fatalf("expected non rate-limit errors to pass through, inner calls=%d", inner.calls)
	}
}

func TestCircuitBreakerClosesAfterCooldown(t *testing.T) {
	inner := &failingAdapter{err: resilience.RateLimitError{Provider: "failing", RetryAfter: time.Millisecond}}
	obs := metrics.NewMemoryObserver()
	adapter := NewCircuitBreakerAdapter(inner, resilience.NewCircuitBreaker(1, 20*time.Millisecond))
	adapter.SetObserver(obs)

	if _, err := adapter.Generate(context.Background(), Context{}); !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	_, err := adapter.Generate(context.Background(), Context{})
	var rl resilience.RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter <= 0 {
		t.Fatalf("expected denied call to carry the remaining pause, got %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	inner.err = nil
	resp, err := adapter.Generate(context.Background(), Context{})
	if err != nil || resp.Message.Content != "ok" {
		t.Fatalf("expected call through after cooldown, got %+v err=%v", resp, err)
	}
	last := obs.Events[len(obs.Events)-1]
	if last.Name != metrics.EventBreakerClose {
		t.Fatalf("expected breaker_close last, got %s", last.Name)
	}
}
