package llm

import (
	"context"
	"time"

	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/resilience"
)

// CircuitBreakerAdapter fails fast while the backend keeps answering with
// rate limits. Nothing is retried; a denied call returns a RateLimitError
// whose RetryAfter is the remaining pause.
type CircuitBreakerAdapter struct {
	inner   LLMAdapter
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
}

func NewCircuitBreakerAdapter(inner LLMAdapter, breaker *resilience.CircuitBreaker) *CircuitBreakerAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerAdapter{inner: inner, breaker: breaker}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

// SetObserver enables breaker_open, breaker_close, breaker_denied and
// rate_limit events.
func (a *CircuitBreakerAdapter) SetObserver(obs metrics.Observer) { a.obs = obs }

func (a *CircuitBreakerAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	if err := a.admit(); err != nil {
		return Response{}, err
	}
	resp, err := a.inner.Generate(ctx, input)
	a.settle(err)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (a *CircuitBreakerAdapter) Stream(ctx context.Context, input Context) (<-chan string, error) {
	if err := a.admit(); err != nil {
		return nil, err
	}
	ch, err := a.inner.Stream(ctx, input)
	a.settle(err)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (a *CircuitBreakerAdapter) admit() error {
	left := a.breaker.Remaining()
	if left == 0 {
		return nil
	}
	a.record(metrics.EventBreakerDenied)
	return resilience.RateLimitError{Provider: a.Name(), Message: "backend paused after repeated rate limits", RetryAfter: left}
}

func (a *CircuitBreakerAdapter) settle(err error) {
	if err == nil {
		if a.breaker.OnSuccess() {
			a.record(metrics.EventBreakerClose)
		}
		return
	}
	if resilience.IsRateLimit(err) {
		a.record(metrics.EventRateLimit)
	}
	if a.breaker.OnError(err) {
		a.record(metrics.EventBreakerOpen)
	}
}

func (a *CircuitBreakerAdapter) record(name string) {
	if a.obs == nil {
		return
	}
	a.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{"component": "llm", "provider": a.inner.Name()},
	})
}
