package tools

import (
	"encoding/json"
	"math"
	"strings"
)

// Args is the decoded named-argument mapping of a tool invocation.
type Args map[string]any

// ParseArgs decodes a raw argument blob. An empty blob is an empty mapping;
// anything that is not a JSON object is rejected.
func ParseArgs(raw string) (Args, error) {
	if strings.TrimSpace(raw) == "" {
		return Args{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return Args(m), nil
}

func (a Args) String(key, fallback string) string {
	if v, ok := a[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (a Args) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func (a Args) Int(key string, fallback int) int {
	f, ok := a.Float(key)
	if !ok || math.Trunc(f) != f {
		return fallback
	}
	return int(f)
}

func (a Args) Bool(key string, fallback bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return fallback
}

func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}
