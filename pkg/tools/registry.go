package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/llm"
)

var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrInvalidArguments = errors.New("invalid arguments")
	errNotObject        = errors.New("arguments must be a JSON object")
)

// Handler executes a tool. Implementations report failures through the
// returned Result.
type Handler func(ctx context.Context, args Args) Result

type Tool struct {
	Schema  Schema
	Handler Handler
}

// Registry maps tool names to tools. It is never mutated after NewRegistry
// returns, so concurrent readers need no locking.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry(list ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(list))}
	for _, t := range list {
		name := t.Schema.Name
		if name == "" {
			return nil, errorsx.Errorf(errorsx.ReasonToolRegistry, "tool name is empty")
		}
		if t.Handler == nil {
			return nil, errorsx.Errorf(errorsx.ReasonToolRegistry, "tool %s has no handler", name)
		}
		if _, exists := r.tools[name]; exists {
			return nil, errorsx.Errorf(errorsx.ReasonToolRegistry, "tool %s already registered", name)
		}
		seen := make(map[string]struct{}, len(t.Schema.Parameters))
		for _, p := range t.Schema.Parameters {
			if _, dup := seen[p.Name]; dup || p.Name == "" {
				return nil, errorsx.Errorf(errorsx.ReasonToolRegistry, "tool %s: bad parameter %q", name, p.Name)
			}
			seen[p.Name] = struct{}{}
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// Resolve looks a tool up by name.
func (r *Registry) Resolve(name string) (Tool, error) {
	if r != nil {
		if t, ok := r.tools[name]; ok {
			return t, nil
		}
	}
	return Tool{}, errorsx.Wrap(fmt.Errorf("%w: %s", ErrToolNotFound, name), errorsx.ReasonToolNotFound)
}

// Schemas returns every schema in registration order.
func (r *Registry) Schemas() []Schema {
	if r == nil {
		return nil
	}
	out := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema)
	}
	return out
}

// Tools returns the capability advertisement sent with every model request.
func (r *Registry) Tools() []llm.Tool {
	schemas := r.Schemas()
	out := make([]llm.Tool, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, s.LLMTool())
	}
	return out
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
