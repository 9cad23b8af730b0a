package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusObserver turns agent events into counters and histograms on a
// private registry.
type PrometheusObserver struct {
	registry *prometheus.Registry

	turns        *prometheus.CounterVec
	iterations   prometheus.Histogram
	modelCalls   *prometheus.CounterVec
	modelLatency prometheus.Histogram
	toolCalls    *prometheus.CounterVec
	toolLatency  *prometheus.HistogramVec
	breaker      *prometheus.CounterVec
}

func NewPrometheusObserver() *PrometheusObserver {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &PrometheusObserver{
		registry: reg,
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxa_turns_total",
			Help: "Conversation turns by outcome",
		}, []string{"outcome"}),
		iterations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxa_turn_iterations",
			Help:    "Model calls per turn",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
		}),
		modelCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxa_model_calls_total",
			Help: "Model backend calls by stop kind",
		}, []string{"provider", "stop"}),
		modelLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxa_model_latency_seconds",
			Help:    "Latency of model backend calls",
			Buckets: prometheus.DefBuckets,
		}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxa_tool_calls_total",
			Help: "Tool invocations by status",
		}, []string{"tool", "status"}),
		toolLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxa_tool_latency_seconds",
			Help:    "Latency of tool invocations",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		breaker: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxa_llm_breaker_events_total",
			Help: "Circuit breaker and rate limit events",
		}, []string{"event"}),
	}
}

// Values of ev.Value are milliseconds for latency events.
func (p *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	switch ev.Name {
	case EventTurnCompleted:
		p.turns.WithLabelValues(ev.Tags["outcome"]).Inc()
		if n, ok := ev.Fields["iterations"].(int); ok {
			p.iterations.Observe(float64(n))
		}
	case EventModelCall:
		p.modelCalls.WithLabelValues(ev.Tags["provider"], ev.Tags["stop"]).Inc()
		p.modelLatency.Observe(ev.Value / 1000)
	case EventToolResult:
		p.toolCalls.WithLabelValues(ev.Tags["tool"], ev.Tags["status"]).Inc()
		p.toolLatency.WithLabelValues(ev.Tags["tool"]).Observe(ev.Value / 1000)
	case EventRateLimit, EventBreakerOpen, EventBreakerClose, EventBreakerDenied:
		p.breaker.WithLabelValues(ev.Name).Inc()
	}
}

func (p *PrometheusObserver) Registry() *prometheus.Registry { return p.registry }

func (p *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
