package agent

import (
	"log/slog"

	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/tools"
)

const (
	DefaultMaxHistory    = 20
	DefaultMaxIterations = 5
	DefaultSystemPrompt  = "You are a helpful, friendly AI voice assistant. " +
		"You can have natural conversations and use available tools when needed. " +
		"Keep your responses concise and conversational since they will be spoken aloud. " +
		"When using tools, explain what you're doing in a natural way."
)

// Fallbacks are the fixed replies used when a turn cannot produce a model answer.
type Fallbacks struct {
	EmptyReply      string
	AnomalousStop   string
	BackendError    string
	BudgetExhausted string
	StreamError     string
}

func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		EmptyReply:      "I'm not sure how to respond to that.",
		AnomalousStop:   "I apologize, but I encountered an issue processing your request.",
		BackendError:    "I'm sorry, I encountered an error while processing your request.",
		BudgetExhausted: "I apologize, but I'm having trouble completing that request.",
		StreamError:     "I'm sorry, I encountered an error.",
	}
}

type Option func(*Agent)

func WithMaxHistory(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxHistory = n
		}
	}
}

func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

func WithSystemPrompt(text string) Option {
	return func(a *Agent) { a.systemPrompt = text }
}

func WithObserver(obs metrics.Observer) Option {
	return func(a *Agent) {
		if obs != nil {
			a.obs = obs
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		if log != nil {
			a.baseLog = log
		}
	}
}

func WithDispatcher(d *tools.Dispatcher) Option {
	return func(a *Agent) { a.dispatcher = d }
}

// WithFallbacks overrides individual fallback texts; empty fields keep
// their defaults.
func WithFallbacks(f Fallbacks) Option {
	return func(a *Agent) {
		set := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		set(&a.fallbacks.EmptyReply, f.EmptyReply)
		set(&a.fallbacks.AnomalousStop, f.AnomalousStop)
		set(&a.fallbacks.BackendError, f.BackendError)
		set(&a.fallbacks.BudgetExhausted, f.BudgetExhausted)
		set(&a.fallbacks.StreamError, f.StreamError)
	}
}
