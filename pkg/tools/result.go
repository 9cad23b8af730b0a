package tools

import (
	"encoding/json"
	"fmt"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorKind classifies a failed tool result.
type ErrorKind string

const (
	KindToolNotFound     ErrorKind = "tool_not_found"
	KindInvalidArguments ErrorKind = "invalid_arguments"
	KindExecution        ErrorKind = "execution"
	KindTimeout          ErrorKind = "timeout"
	KindCanceled         ErrorKind = "canceled"
	KindRefused          ErrorKind = "refused"
)

// Result is the outcome of one tool invocation. Failures are values, not
// panics or returned errors.
type Result struct {
	Status Status
	Data   map[string]any
	Kind   ErrorKind
	Error  string
}

func Success(data map[string]any) Result {
	return Result{Status: StatusSuccess, Data: data}
}

func Failure(kind ErrorKind, format string, args ...any) Result {
	return Result{Status: StatusError, Kind: kind, Error: fmt.Sprintf(format, args...)}
}

func (r Result) OK() bool { return r.Status == StatusSuccess }

// String serializes the result into the text placed in a tool message.
// Data keys never override status, error or kind.
func (r Result) String() string {
	out := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		out[k] = v
	}
	out["status"] = string(r.Status)
	if r.Status != StatusSuccess {
		out["error"] = r.Error
		out["kind"] = string(r.Kind)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		fallback, _ := json.Marshal(map[string]any{
			"status": string(StatusError),
			"error":  "result not serializable: " + err.Error(),
			"kind":   string(KindExecution),
		})
		return string(fallback)
	}
	return string(raw)
}

func (r Result) normalize() Result {
	switch r.Status {
	case StatusSuccess:
	case "":
		r.Status = StatusSuccess
	default:
		r.Status = StatusError
		if r.Kind == "" {
			r.Kind = KindExecution
		}
		if r.Error == "" {
			r.Error = "tool failed"
		}
	}
	return r
}
