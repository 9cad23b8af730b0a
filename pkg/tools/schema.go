package tools

import "github.com/harunnryd/voxa/pkg/llm"

// Primitive parameter types understood by Validate.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Parameter declares one named argument of a tool.
type Parameter struct {
	Name        string
	Type        string
	Description string
	Enum        []string
	Minimum     *float64
	Maximum     *float64
	Required    bool
}

// Schema is the machine-readable description of a tool advertised to the model.
type Schema struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Bound is a helper for Parameter.Minimum and Parameter.Maximum.
func Bound(v float64) *float64 { return &v }

// JSONSchema renders the parameter block in the object form expected by
// function-calling backends.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Parameters))
	required := make([]string, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = append([]string(nil), p.Enum...)
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       TypeObject,
		"properties": props,
		"required":   required,
	}
}

// LLMTool converts the schema into the backend capability advertisement.
func (s Schema) LLMTool() llm.Tool {
	return llm.Tool{
		Name:        s.Name,
		Description: s.Description,
		Schema:      s.JSONSchema(),
	}
}

func (s Schema) parameter(name string) (Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}
