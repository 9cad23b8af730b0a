package openai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/harunnryd/voxa/pkg/llm"
	"github.com/harunnryd/voxa/pkg/resilience"
)

const providerName = "openai"

// Config is shared by the chat, transcription and speech clients.
type Config struct {
	APIKey       string
	BaseURL      string
	Organization string
	Model        string
	Temperature  float32
	MaxTokens    int
	Timeout      time.Duration
}

func newClient(cfg Config) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.OrgID = cfg.Organization
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(oc)
}

// Adapter implements llm.LLMAdapter on the chat completions API.
type Adapter struct {
	client *openai.Client
	cfg    Config
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	return &Adapter{client: newClient(cfg), cfg: cfg}
}

func (a *Adapter) Name() string { return providerName }

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(input))
	if err != nil {
		return llm.Response{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, errors.New("openai: no choices returned")
	}
	choice := resp.Choices[0]
	return llm.Response{
		Message:      fromProviderMessage(choice.Message),
		FinishReason: llm.FinishReason(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (a *Adapter) Stream(ctx context.Context, input llm.Context) (<-chan string, error) {
	req := a.buildRequest(input)
	req.Stream = true
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	out := make(chan string, 128)
	go func() {
		defer stream.Close()
		defer close(out)
		for {
			chunk, err := stream.Recv()
			if err != nil {
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- chunk.Choices[0].Delta.Content:
			}
		}
	}()
	return out, nil
}

func (a *Adapter) buildRequest(input llm.Context) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Messages:    toProviderMessages(input.Messages),
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	if len(input.Tools) > 0 {
		req.Tools = toProviderTools(input.Tools)
		choice := input.ToolChoice
		if choice == "" {
			choice = llm.ToolChoiceAuto
		}
		req.ToolChoice = choice
	}
	return req
}

func toProviderTools(tools []llm.Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}
	return out
}

func toProviderMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		pm := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, call := range m.ToolCalls {
			pm.ToolCalls = append(pm.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out = append(out, pm)
	}
	return out
}

// fromProviderMessage keeps argument blobs verbatim and backfills missing
// call ids so results can always be correlated.
func fromProviderMessage(m openai.ChatCompletionMessage) llm.Message {
	msg := llm.Message{Role: llm.RoleAssistant, Content: m.Content}
	for _, tc := range m.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return msg
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: providerName, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: providerName, Message: "status " + strconv.Itoa(reqErr.HTTPStatusCode)}
	}
	return err
}

var _ llm.LLMAdapter = (*Adapter)(nil)
