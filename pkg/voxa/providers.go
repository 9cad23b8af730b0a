package voxa

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/harunnryd/voxa/pkg/adapters/stt"
	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/configutil"
	"github.com/harunnryd/voxa/pkg/llm"
	"github.com/harunnryd/voxa/pkg/providers/deepgram"
	"github.com/harunnryd/voxa/pkg/providers/elevenlabs"
	"github.com/harunnryd/voxa/pkg/providers/mock"
	"github.com/harunnryd/voxa/pkg/providers/openai"
	"github.com/harunnryd/voxa/pkg/resilience"
)

type openAISettings struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	BaseURL           string  `mapstructure:"base_url"`
	Organization      string  `mapstructure:"organization"`
	Temperature       float32 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	TimeoutMS         int     `mapstructure:"timeout_ms"`
	UseCircuitBreaker *bool   `mapstructure:"use_circuit_breaker"`
	CircuitThreshold  int     `mapstructure:"circuit_threshold"`
	CircuitCooldownMS int     `mapstructure:"circuit_cooldown_ms"`
}

type whisperSettings struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	Language string `mapstructure:"language"`
}

type openAISpeechSettings struct {
	APIKey  string  `mapstructure:"api_key"`
	Model   string  `mapstructure:"model"`
	BaseURL string  `mapstructure:"base_url"`
	Voice   string  `mapstructure:"voice"`
	Format  string  `mapstructure:"format"`
	Speed   float64 `mapstructure:"speed"`
}

type deepgramSettings struct {
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	Language        string `mapstructure:"language"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Encoding        string `mapstructure:"encoding"`
	UtteranceEndMS  *int   `mapstructure:"utterance_end_ms"`
	SettleTimeoutMS int    `mapstructure:"settle_timeout_ms"`
	Retries         int    `mapstructure:"retries"`
}

type elevenlabsSettings struct {
	APIKey       string `mapstructure:"api_key"`
	VoiceID      string `mapstructure:"voice_id"`
	ModelID      string `mapstructure:"model_id"`
	OutputFormat string `mapstructure:"output_format"`
	BaseURL      string `mapstructure:"base_url"`
	TimeoutMS    int    `mapstructure:"timeout_ms"`
	Retries      int    `mapstructure:"retries"`
}

type mockLLMSettings struct {
	ResponseText string   `mapstructure:"response_text"`
	StreamChunks []string `mapstructure:"stream_chunks"`
}

type mockSTTSettings struct {
	Transcripts []string `mapstructure:"transcripts"`
	Transcript  string   `mapstructure:"transcript"`
}

type mockTTSSettings struct {
	SampleRate int `mapstructure:"sample_rate"`
}

// DefaultProviders registers every built-in vendor.
func DefaultProviders() *ProviderRegistry {
	reg := NewProviderRegistry()
	RegisterProviders(reg)
	return reg
}

func RegisterProviders(reg *ProviderRegistry) {
	reg.RegisterLLM("openai", func(cfg Config, log *slog.Logger) (llm.LLMAdapter, error) {
		var settings openAISettings
		if err := configutil.Decode("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Optional: []string{"api_key", "model", "base_url", "organization", "temperature", "max_tokens",
				"timeout_ms", "use_circuit_breaker", "circuit_threshold", "circuit_cooldown_ms"},
		}, &settings); err != nil {
			return nil, err
		}
		settings.APIKey = apiKeyOrEnv(settings.APIKey)
		if err := configutil.RequireString("vendors.llm.settings.api_key", settings.APIKey); err != nil {
			return nil, err
		}
		adapter := openai.NewAdapter(openai.Config{
			APIKey:       settings.APIKey,
			BaseURL:      settings.BaseURL,
			Organization: settings.Organization,
			Model:        settings.Model,
			Temperature:  settings.Temperature,
			MaxTokens:    settings.MaxTokens,
			Timeout:      time.Duration(settings.TimeoutMS) * time.Millisecond,
		})
		if !configutil.Or(settings.UseCircuitBreaker, true) {
			return adapter, nil
		}
		threshold := settings.CircuitThreshold
		if threshold == 0 {
			threshold = 3
		}
		cooldown := settings.CircuitCooldownMS
		if cooldown == 0 {
			cooldown = 30000
		}
		breaker := resilience.NewCircuitBreaker(threshold, time.Duration(cooldown)*time.Millisecond)
		return llm.NewCircuitBreakerAdapter(adapter, breaker), nil
	})

	reg.RegisterLLM("mock", func(cfg Config, log *slog.Logger) (llm.LLMAdapter, error) {
		var settings mockLLMSettings
		if err := configutil.Decode("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Optional: []string{"response_text", "stream_chunks"},
		}, &settings); err != nil {
			return nil, err
		}
		return mock.NewLLMAdapter(mock.LLMConfig{
			ResponseText: settings.ResponseText,
			StreamChunks: settings.StreamChunks,
		}), nil
	})

	reg.RegisterSTT("openai", func(cfg Config, log *slog.Logger) (stt.Transcriber, error) {
		var settings whisperSettings
		if err := configutil.Decode("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Optional: []string{"api_key", "model", "base_url", "language"},
		}, &settings); err != nil {
			return nil, err
		}
		settings.APIKey = apiKeyOrEnv(settings.APIKey)
		if err := configutil.RequireString("vendors.stt.settings.api_key", settings.APIKey); err != nil {
			return nil, err
		}
		return openai.NewTranscriber(openai.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}, settings.Language), nil
	})

	reg.RegisterSTT("deepgram", func(cfg Config, log *slog.Logger) (stt.Transcriber, error) {
		var settings deepgramSettings
		if err := configutil.Decode("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "language", "sample_rate", "encoding", "utterance_end_ms", "settle_timeout_ms", "retries"},
		}, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString("vendors.stt.settings.api_key", settings.APIKey); err != nil {
			return nil, err
		}
		if settings.Language == "" {
			settings.Language = "en"
		}
		if !validDeepgramEncoding(settings.Encoding) {
			return nil, fmt.Errorf("vendors.stt.settings.encoding must be one of [linear16, mulaw], got %s", settings.Encoding)
		}
		utteranceEnd := configutil.Or(settings.UtteranceEndMS, 1000)
		if utteranceEnd < 0 || utteranceEnd > 5000 {
			return nil, fmt.Errorf("vendors.stt.settings.utterance_end_ms must be between 0 and 5000, got %d", utteranceEnd)
		}
		return deepgram.New(deepgram.Config{
			APIKey:         settings.APIKey,
			Model:          settings.Model,
			Language:       settings.Language,
			SampleRate:     settings.SampleRate,
			Encoding:       settings.Encoding,
			UtteranceEndMS: utteranceEnd,
			SettleTimeout:  time.Duration(settings.SettleTimeoutMS) * time.Millisecond,
			Retries:        settings.Retries,
			Logger:         log,
		}), nil
	})

	reg.RegisterSTT("mock", func(cfg Config, log *slog.Logger) (stt.Transcriber, error) {
		var settings mockSTTSettings
		if err := configutil.Decode("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Optional: []string{"transcripts", "transcript"},
		}, &settings); err != nil {
			return nil, err
		}
		return mock.NewSTT(mock.STTConfig{Transcripts: settings.Transcripts, Transcript: settings.Transcript}), nil
	})

	reg.RegisterTTS("openai", func(cfg Config, log *slog.Logger) (tts.Synthesizer, error) {
		var settings openAISpeechSettings
		if err := configutil.Decode("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"api_key", "model", "base_url", "voice", "format", "speed"},
		}, &settings); err != nil {
			return nil, err
		}
		settings.APIKey = apiKeyOrEnv(settings.APIKey)
		if err := configutil.RequireString("vendors.tts.settings.api_key", settings.APIKey); err != nil {
			return nil, err
		}
		return openai.NewSynthesizer(openai.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}, settings.Voice, settings.Format, settings.Speed), nil
	})

	reg.RegisterTTS("elevenlabs", func(cfg Config, log *slog.Logger) (tts.Synthesizer, error) {
		var settings elevenlabsSettings
		if err := configutil.Decode("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Required: []string{"api_key", "voice_id"},
			Optional: []string{"model_id", "output_format", "base_url", "timeout_ms", "retries"},
		}, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString("vendors.tts.settings.api_key", settings.APIKey); err != nil {
			return nil, err
		}
		if err := configutil.RequireString("vendors.tts.settings.voice_id", settings.VoiceID); err != nil {
			return nil, err
		}
		return elevenlabs.New(elevenlabs.Config{
			APIKey:       settings.APIKey,
			VoiceID:      settings.VoiceID,
			ModelID:      settings.ModelID,
			OutputFormat: settings.OutputFormat,
			BaseURL:      settings.BaseURL,
			Timeout:      time.Duration(settings.TimeoutMS) * time.Millisecond,
			Retries:      settings.Retries,
			Logger:       log,
		}), nil
	})

	reg.RegisterTTS("mock", func(cfg Config, log *slog.Logger) (tts.Synthesizer, error) {
		var settings mockTTSSettings
		if err := configutil.Decode("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"sample_rate"},
		}, &settings); err != nil {
			return nil, err
		}
		return mock.NewTTS(mock.TTSConfig{SampleRate: settings.SampleRate}), nil
	})
}

func validDeepgramEncoding(v string) bool {
	switch v {
	case "", "linear16", "mulaw":
		return true
	default:
		return false
	}
}

func apiKeyOrEnv(key string) string {
	if key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}
