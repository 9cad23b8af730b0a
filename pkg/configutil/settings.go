// Package configutil checks and decodes free-form vendor settings blocks.
package configutil

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/harunnryd/voxa/pkg/errorsx"
)

// Schema lists the keys a settings block accepts. Key matching ignores
// case, underscores and hyphens.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// Decode validates input against schema and decodes it into out.
// Errors are prefixed with path and carry errorsx.ReasonConfigInvalid.
func Decode(path string, input map[string]any, schema Schema, out any) error {
	if err := Validate(input, schema); err != nil {
		return errorsx.Errorf(errorsx.ReasonConfigInvalid, "%s: %w", path, err)
	}
	if err := decode(input, out); err != nil {
		return errorsx.Errorf(errorsx.ReasonConfigInvalid, "%s: %w", path, err)
	}
	return nil
}

// Validate reports missing required keys (absent or blank) and, unless
// the schema allows it, unknown keys.
func Validate(input map[string]any, schema Schema) error {
	required := make(map[string]string, len(schema.Required))
	allowed := make(map[string]bool, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Required {
		required[normalizeKey(k)] = k
		allowed[normalizeKey(k)] = true
	}
	for _, k := range schema.Optional {
		allowed[normalizeKey(k)] = true
	}

	var missing, unknown []string
	present := make(map[string]bool, len(input))
	for k, v := range input {
		nk := normalizeKey(k)
		if !isBlank(v) {
			present[nk] = true
		}
		if !allowed[nk] && !schema.AllowUnknown {
			unknown = append(unknown, k)
		}
	}
	for nk, k := range required {
		if !present[nk] {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unknown)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(unknown, ", "))
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}

func decode(input map[string]any, out any) error {
	if len(input) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// RequireString fails when value is blank, naming path.
func RequireString(path, value string) error {
	if strings.TrimSpace(value) == "" {
		return errorsx.Errorf(errorsx.ReasonConfigInvalid, "%s is required", path)
	}
	return nil
}

// Or dereferences value, falling back when it was not set.
func Or[T any](value *T, fallback T) T {
	if value == nil {
		return fallback
	}
	return *value
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func normalizeKey(value string) string {
	return strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(value))
}
