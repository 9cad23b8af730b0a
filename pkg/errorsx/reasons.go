package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonConfigLoad    ReasonCode = "config_load"
	ReasonConfigInvalid ReasonCode = "config_invalid"
	ReasonProviderBuild ReasonCode = "provider_build"

	ReasonLLMGenerate      ReasonCode = "llm_generate"
	ReasonLLMStream        ReasonCode = "llm_stream"
	ReasonLLMRateLimit     ReasonCode = "llm_rate_limit"
	ReasonBackendCall      ReasonCode = "backend_call"
	ReasonBackendRateLimit ReasonCode = "backend_rate_limit"
	ReasonIterationBudget  ReasonCode = "iteration_budget"
	ReasonAnomalousStop    ReasonCode = "anomalous_stop"

	ReasonToolRegistry  ReasonCode = "tool_registry"
	ReasonToolNotFound  ReasonCode = "tool_not_found"
	ReasonToolArguments ReasonCode = "tool_arguments"
	ReasonToolExecution ReasonCode = "tool_execution"
	ReasonToolTimeout   ReasonCode = "tool_timeout"

	ReasonSTTConnect    ReasonCode = "stt_connect"
	ReasonSTTTranscribe ReasonCode = "stt_transcribe"
	ReasonTTSConnect    ReasonCode = "tts_connect"
	ReasonTTSSynthesize ReasonCode = "tts_synthesize"

	ReasonAudioCapture ReasonCode = "audio_capture"
	ReasonAudioPlay    ReasonCode = "audio_play"

	ReasonHistoryExport ReasonCode = "history_export"
)
