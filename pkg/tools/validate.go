package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/harunnryd/voxa/pkg/errorsx"
)

// Validate checks args against the declared parameters: required presence,
// primitive type, enum membership and numeric bounds. Undeclared arguments
// are ignored.
func Validate(schema Schema, args Args) error {
	for _, p := range schema.Parameters {
		if p.Required && !args.Has(p.Name) {
			return invalid("missing required argument: %s", p.Name)
		}
	}
	for key, value := range args {
		p, ok := schema.parameter(key)
		if !ok {
			continue
		}
		if err := checkType(value, p.Type); err != nil {
			return invalid("argument %s: %v", key, err)
		}
		if len(p.Enum) > 0 {
			s, _ := value.(string)
			if !slices.Contains(p.Enum, s) {
				return invalid("argument %s: %v is not one of %v", key, value, p.Enum)
			}
		}
		if p.Minimum != nil || p.Maximum != nil {
			f, ok := Args{key: value}.Float(key)
			if !ok {
				return invalid("argument %s: bounded value must be a number, got %T", key, value)
			}
			if p.Minimum != nil && f < *p.Minimum {
				return invalid("argument %s: %v is below minimum %v", key, value, *p.Minimum)
			}
			if p.Maximum != nil && f > *p.Maximum {
				return invalid("argument %s: %v is above maximum %v", key, value, *p.Maximum)
			}
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	err := fmt.Errorf("%w: %s", ErrInvalidArguments, fmt.Sprintf(format, args...))
	return errorsx.Wrap(err, errorsx.ReasonToolArguments)
}

func checkType(value any, expected string) error {
	switch expected {
	case "":
		return nil
	case TypeString:
		if _, ok := value.(string); ok {
			return nil
		}
	case TypeNumber:
		if isNumber(value) {
			return nil
		}
	case TypeInteger:
		if isInteger(value) {
			return nil
		}
	case TypeBoolean:
		if _, ok := value.(bool); ok {
			return nil
		}
	case TypeObject:
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case TypeArray:
		if _, ok := value.([]any); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return math.Trunc(float64(v)) == float64(v)
	case float64:
		return math.Trunc(v) == v
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}
