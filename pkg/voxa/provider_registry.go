package voxa

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/harunnryd/voxa/pkg/adapters/stt"
	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/llm"
)

type STTFactory func(cfg Config, log *slog.Logger) (stt.Transcriber, error)
type TTSFactory func(cfg Config, log *slog.Logger) (tts.Synthesizer, error)
type LLMFactory func(cfg Config, log *slog.Logger) (llm.LLMAdapter, error)

// ProviderNone disables a speech vendor; text-only front ends use it.
const ProviderNone = "none"

type ProviderRegistry struct {
	stt map[string]STTFactory
	tts map[string]TTSFactory
	llm map[string]LLMFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt: make(map[string]STTFactory),
		tts: make(map[string]TTSFactory),
		llm: make(map[string]LLMFactory),
	}
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[providerKey(name)] = factory
}

// BuildTranscriber returns nil, nil for ProviderNone.
func (r *ProviderRegistry) BuildTranscriber(provider string, cfg Config, log *slog.Logger) (stt.Transcriber, error) {
	if providerKey(provider) == ProviderNone {
		return nil, nil
	}
	fn := r.stt[providerKey(provider)]
	if fn == nil {
		return nil, notRegistered("stt", provider, r.STTProviders())
	}
	t, err := fn(cfg, log)
	return t, errorsx.Wrap(err, errorsx.ReasonProviderBuild)
}

// BuildSynthesizer returns nil, nil for ProviderNone.
func (r *ProviderRegistry) BuildSynthesizer(provider string, cfg Config, log *slog.Logger) (tts.Synthesizer, error) {
	if providerKey(provider) == ProviderNone {
		return nil, nil
	}
	fn := r.tts[providerKey(provider)]
	if fn == nil {
		return nil, notRegistered("tts", provider, r.TTSProviders())
	}
	s, err := fn(cfg, log)
	return s, errorsx.Wrap(err, errorsx.ReasonProviderBuild)
}

func (r *ProviderRegistry) BuildLLM(provider string, cfg Config, log *slog.Logger) (llm.LLMAdapter, error) {
	fn := r.llm[providerKey(provider)]
	if fn == nil {
		return nil, notRegistered("llm", provider, r.LLMProviders())
	}
	a, err := fn(cfg, log)
	return a, errorsx.Wrap(err, errorsx.ReasonProviderBuild)
}

func (r *ProviderRegistry) STTProviders() []string { return sortedKeys(r.stt) }
func (r *ProviderRegistry) TTSProviders() []string { return sortedKeys(r.tts) }
func (r *ProviderRegistry) LLMProviders() []string { return sortedKeys(r.llm) }

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func notRegistered(kind, provider string, known []string) error {
	return errorsx.Errorf(errorsx.ReasonProviderBuild, "%s provider not registered: %s (known: %s)",
		kind, provider, strings.Join(known, ", "))
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
