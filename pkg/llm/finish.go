package llm

import "strings"

// FinishReason is the backend's structured stop signal. Values other than
// the ones declared here are passed through untouched.
type FinishReason string

const (
	FinishToolCalls     FinishReason = "tool_calls"
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
)

// StopKind groups finish reasons into the three cases the agent loop handles.
type StopKind int

const (
	StopAnomalous StopKind = iota
	StopToolCalls
	StopComplete
)

func (r FinishReason) Kind() StopKind {
	switch FinishReason(strings.ToLower(strings.TrimSpace(string(r)))) {
	case FinishToolCalls, "function_call":
		return StopToolCalls
	case FinishStop:
		return StopComplete
	default:
		return StopAnomalous
	}
}

func (k StopKind) String() string {
	switch k {
	case StopToolCalls:
		return "tool_calls"
	case StopComplete:
		return "complete"
	default:
		return "anomalous"
	}
}
