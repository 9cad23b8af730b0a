package voxa

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/harunnryd/voxa/pkg/agent"
	"github.com/harunnryd/voxa/pkg/errorsx"
)

type Config struct {
	Vendors     VendorsConfig `mapstructure:"vendors"`
	Agent       AgentConfig   `mapstructure:"agent"`
	Tools       ToolsConfig   `mapstructure:"tools"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
	Audio       AudioConfig   `mapstructure:"audio"`
	Privacy     PrivacyConfig `mapstructure:"privacy"`
	Environment string        `mapstructure:"environment"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT VendorConfig `mapstructure:"stt"`
	TTS VendorConfig `mapstructure:"tts"`
	LLM VendorConfig `mapstructure:"llm"`
}

type AgentConfig struct {
	SystemPrompt  string `mapstructure:"system_prompt"`
	MaxHistory    int    `mapstructure:"max_history"`
	MaxIterations int    `mapstructure:"max_iterations"`
	Stream        bool   `mapstructure:"stream"`
}

type ToolsConfig struct {
	Concurrency         int  `mapstructure:"concurrency"`
	TimeoutMS           int  `mapstructure:"timeout_ms"`
	Retries             int  `mapstructure:"retries"`
	RetryBackoffMS      int  `mapstructure:"retry_backoff_ms"`
	ExposeSystemCommand bool `mapstructure:"expose_system_command"`
}

type MetricsConfig struct {
	LogEvents      bool    `mapstructure:"log_events"`
	JSONLPath      string  `mapstructure:"jsonl_path"`
	AsyncBuffer    int     `mapstructure:"async_buffer"`
	SampleRate     float64 `mapstructure:"sample_rate"`
	PrometheusAddr string  `mapstructure:"prometheus_addr"`
	UsageDir       string  `mapstructure:"usage_dir"`
	RetentionDays  int     `mapstructure:"retention_days"`
}

type AudioConfig struct {
	Input  string `mapstructure:"input"`
	Output string `mapstructure:"output"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// LoadConfig reads path (optional) over the built-in defaults. String
// values may reference environment variables as ${NAME}.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("voxa")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errorsx.Wrap(fmt.Errorf("read config: %w", err), errorsx.ReasonConfigLoad)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errorsx.Wrap(fmt.Errorf("unmarshal: %w", err), errorsx.ReasonConfigLoad)
	}
	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, errorsx.Wrap(fmt.Errorf("validate config: %w", err), errorsx.ReasonConfigInvalid)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vendors.llm.provider", "openai")
	v.SetDefault("vendors.stt.provider", "openai")
	v.SetDefault("vendors.tts.provider", "openai")
	v.SetDefault("agent.system_prompt", agent.DefaultSystemPrompt)
	v.SetDefault("agent.max_history", agent.DefaultMaxHistory)
	v.SetDefault("agent.max_iterations", agent.DefaultMaxIterations)
	v.SetDefault("agent.stream", false)
	v.SetDefault("tools.concurrency", 4)
	v.SetDefault("tools.timeout_ms", 10000)
	v.SetDefault("tools.retries", 0)
	v.SetDefault("tools.retry_backoff_ms", 200)
	v.SetDefault("tools.expose_system_command", false)
	v.SetDefault("metrics.log_events", false)
	v.SetDefault("metrics.jsonl_path", "")
	v.SetDefault("metrics.async_buffer", 256)
	v.SetDefault("metrics.sample_rate", 1.0)
	v.SetDefault("metrics.prometheus_addr", "")
	v.SetDefault("metrics.usage_dir", "")
	v.SetDefault("metrics.retention_days", 0)
	v.SetDefault("audio.input", "")
	v.SetDefault("audio.output", "replies")
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.MaxHistory < 0 {
		return fmt.Errorf("agent.max_history must not be negative, got %d", c.Agent.MaxHistory)
	}
	if c.Tools.Concurrency < 1 {
		return fmt.Errorf("tools.concurrency must be at least 1, got %d", c.Tools.Concurrency)
	}
	if c.Tools.TimeoutMS < 0 || c.Tools.Retries < 0 || c.Tools.RetryBackoffMS < 0 {
		return fmt.Errorf("tools timeout, retries and backoff must not be negative")
	}
	if c.Metrics.SampleRate < 0 || c.Metrics.SampleRate > 1 {
		return fmt.Errorf("metrics.sample_rate must be between 0 and 1, got %v", c.Metrics.SampleRate)
	}
	if c.Metrics.RetentionDays < 0 {
		return fmt.Errorf("metrics.retention_days must not be negative, got %d", c.Metrics.RetentionDays)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %s", c.LogFormat)
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	}
}
