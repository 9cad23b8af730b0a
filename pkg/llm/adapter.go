package llm

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry of conversation history.
// Assistant messages may carry ToolCalls with empty Content; tool messages
// carry ToolCallID and ToolName linking the result to its invocation.
type Message struct {
	Role       Role       `json:"role" yaml:"role"`
	Content    string     `json:"content,omitempty" yaml:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
}

// ToolCall is a tool invocation request emitted by the model.
// Arguments is the raw serialized argument blob exactly as the backend sent it.
type ToolCall struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Arguments string `json:"arguments" yaml:"arguments"`
}

// Tool advertises a capability to the model. Schema is the JSON schema
// of the tool parameters.
type Tool struct {
	Name        string
	Description string
	Schema      any
}

// ToolChoiceAuto lets the model decide between answering and calling tools.
const ToolChoiceAuto = "auto"

type Context struct {
	Messages   []Message
	Tools      []Tool
	ToolChoice string
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Message      Message
	FinishReason FinishReason
	Usage        Usage
}

type LLMAdapter interface {
	Name() string
	Generate(ctx context.Context, input Context) (Response, error)
	Stream(ctx context.Context, input Context) (<-chan string, error)
}

// CloneMessages deep-copies messages so callers cannot alias tool call slices.
func CloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i, msg := range in {
		out[i] = msg
		if len(msg.ToolCalls) > 0 {
			out[i].ToolCalls = append([]ToolCall(nil), msg.ToolCalls...)
		}
	}
	return out
}
