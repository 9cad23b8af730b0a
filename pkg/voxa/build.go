// Package voxa loads configuration and assembles the assistant from it.
package voxa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/harunnryd/voxa/pkg/adapters/stt"
	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/agent"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/llm"
	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/redact"
	"github.com/harunnryd/voxa/pkg/tools"
	"github.com/harunnryd/voxa/pkg/tools/builtin"
)

// App is a fully wired assistant. Transcriber and Synthesizer are nil when
// their provider is "none".
type App struct {
	Config      Config
	Agent       *agent.Agent
	Backend     llm.LLMAdapter
	Tools       *tools.Registry
	Dispatcher  *tools.Dispatcher
	Transcriber stt.Transcriber
	Synthesizer tts.Synthesizer
	Observer    metrics.Observer
	Prometheus  *metrics.PrometheusObserver
	Usage       *metrics.UsageObserver
	Logger      *slog.Logger

	async   *metrics.AsyncObserver
	closers []func() error
	server  *http.Server
}

// Build assembles the application. A nil registry uses DefaultProviders.
func Build(cfg Config, reg *ProviderRegistry, log *slog.Logger) (*App, error) {
	if reg == nil {
		reg = DefaultProviders()
	}
	if log == nil {
		log = slog.Default()
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	app := &App{Config: cfg, Logger: log}
	if err := app.buildObservers(); err != nil {
		app.Drain()
		return nil, err
	}

	backend, err := reg.BuildLLM(cfg.Vendors.LLM.Provider, cfg, logging.NewComponentLogger(log, "llm"))
	if err != nil {
		app.Drain()
		return nil, err
	}
	if cb, ok := backend.(*llm.CircuitBreakerAdapter); ok {
		cb.SetObserver(app.Observer)
	}
	app.Backend = backend

	registry, err := tools.NewRegistry(builtin.New(builtin.Options{
		ExposeSystemCommand: cfg.Tools.ExposeSystemCommand,
	})...)
	if err != nil {
		app.Drain()
		return nil, err
	}
	app.Tools = registry
	app.Dispatcher = tools.NewDispatcher(registry, tools.DispatcherOptions{
		Concurrency:  cfg.Tools.Concurrency,
		Timeout:      time.Duration(cfg.Tools.TimeoutMS) * time.Millisecond,
		Retries:      cfg.Tools.Retries,
		RetryBackoff: time.Duration(cfg.Tools.RetryBackoffMS) * time.Millisecond,
		Logger:       log,
		Observer:     app.Observer,
	})

	app.Agent = agent.New(backend,
		agent.WithSystemPrompt(cfg.Agent.SystemPrompt),
		agent.WithMaxHistory(cfg.Agent.MaxHistory),
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithDispatcher(app.Dispatcher),
		agent.WithObserver(app.Observer),
		agent.WithLogger(log),
	)

	app.Transcriber, err = reg.BuildTranscriber(cfg.Vendors.STT.Provider, cfg, logging.NewComponentLogger(log, "stt"))
	if err != nil {
		app.Drain()
		return nil, err
	}
	app.Synthesizer, err = reg.BuildSynthesizer(cfg.Vendors.TTS.Provider, cfg, logging.NewComponentLogger(log, "tts"))
	if err != nil {
		app.Drain()
		return nil, err
	}

	log.Info("app_built",
		"conversation_id", app.Agent.ID(),
		"llm", backend.Name(),
		"stt", cfg.Vendors.STT.Provider,
		"tts", cfg.Vendors.TTS.Provider,
		"tools", registry.Len(),
		"max_history", cfg.Agent.MaxHistory,
		"max_iterations", cfg.Agent.MaxIterations)
	return app, nil
}

func (a *App) buildObservers() error {
	m := a.Config.Metrics
	var sinks []metrics.Observer
	if m.LogEvents {
		sinks = append(sinks, metrics.NewLoggerObserver(logging.NewComponentLogger(a.Logger, "metrics")))
	}
	if m.JSONLPath != "" {
		f, err := os.OpenFile(m.JSONLPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return errorsx.Wrap(fmt.Errorf("open metrics file: %w", err), errorsx.ReasonConfigInvalid)
		}
		a.closers = append(a.closers, f.Close)
		sinks = append(sinks, metrics.NewJSONLObserver(f))
	}
	if m.UsageDir != "" {
		if n, err := metrics.PurgeArtifacts(m.UsageDir, time.Duration(m.RetentionDays)*24*time.Hour); err != nil {
			a.Logger.Warn("usage_purge_failed", "dir", m.UsageDir, "error", err)
		} else if n > 0 {
			a.Logger.Info("usage_purged", "dir", m.UsageDir, "removed", n)
		}
		a.Usage = metrics.NewUsageObserver(m.UsageDir)
		sinks = append(sinks, a.Usage)
	}
	if m.PrometheusAddr != "" {
		a.Prometheus = metrics.NewPrometheusObserver()
		sinks = append(sinks, a.Prometheus)
	}
	if len(sinks) == 0 {
		a.Observer = metrics.NoopObserver{}
		return nil
	}

	var obs metrics.Observer = metrics.NewMultiObserver(sinks...)
	if m.SampleRate < 1 {
		obs = metrics.NewSamplingObserver(obs, m.SampleRate,
			metrics.EventTurnCompleted,
			metrics.EventBreakerOpen,
			metrics.EventBreakerClose,
			metrics.EventRateLimit)
	}
	if m.AsyncBuffer > 0 {
		a.async = metrics.NewAsyncObserver(obs, m.AsyncBuffer)
		obs = a.async
	}
	a.Observer = obs
	return nil
}

// ServeMetrics exposes the Prometheus registry until Drain. It is a no-op
// without metrics.prometheus_addr.
func (a *App) ServeMetrics() error {
	if a.Prometheus == nil {
		return nil
	}
	ln, err := net.Listen("tcp", a.Config.Metrics.PrometheusAddr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Prometheus.Handler())
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("metrics_server_failed", "error", err)
		}
	}()
	a.Logger.Info("metrics_server_started", "addr", ln.Addr().String())
	return nil
}

// Drain stops the metrics server, flushes buffered events and closes files.
func (a *App) Drain() error {
	var errs []error
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.server.Shutdown(ctx))
		cancel()
		a.server = nil
	}
	if a.async != nil {
		a.async.Close()
		if n := a.async.Dropped(); n > 0 {
			a.Logger.Warn("metrics_events_dropped", "count", n)
		}
		a.async = nil
	}
	if a.Usage != nil {
		errs = append(errs, a.Usage.Close())
	}
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	a.closers = nil
	return errors.Join(errs...)
}
