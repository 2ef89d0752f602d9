// Package openai implements model.Client against OpenAI's chat completions
// API, using the same message and tool conversion approach as this
// repository's other providers, adapted to a synchronous
// CreateChatCompletion call rather than a streaming one, since this
// repository's Client contract is non-streaming.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/taskgraph/internal/model"
)

// completionAPI captures the subset of *openai.Client this package depends
// on, so tests can substitute a fake.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client implements model.Client against OpenAI's chat completions API.
type Client struct {
	api          completionAPI
	defaultModel string
	maxTokens    int
	temperature  float64
}

// Options configures a Client. DefaultModel is used whenever a Request
// leaves Model empty.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// New builds a Client from an already-constructed completions API, letting
// callers inject their own HTTP client, base URL (Azure, proxies), or a
// test double.
func New(api completionAPI, opts Options) (*Client, error) {
	if api == nil {
		return nil, errors.New("openai: completion client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model identifier is required")
	}
	return &Client{api: api, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewFromAPIKey constructs a Client reading credentials from apiKey.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	return New(openai.NewClient(apiKey), Options{DefaultModel: defaultModel})
}

// Complete issues a non-streaming CreateChatCompletion call and translates
// the result into model.Response.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	chatReq, err := c.prepareRequest(req)
	if err != nil {
		return model.Response{}, err
	}
	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return model.Response{}, classifyError(err)
	}
	return translateResponse(resp), nil
}

func (c *Client) prepareRequest(req model.Request) (openai.ChatCompletionRequest, error) {
	if len(req.Messages) == 0 {
		return openai.ChatCompletionRequest{}, errors.New("openai: messages are required")
	}
	messages, err := encodeMessages(req.Messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    modelID,
		Messages: messages,
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		chatReq.MaxTokens = maxTokens
	}

	temp := req.Temperature
	if temp <= 0 {
		temp = c.temperature
	}
	if temp > 0 {
		chatReq.Temperature = float32(temp)
	}

	if len(req.Tools) > 0 {
		chatReq.Tools = encodeTools(req.Tools)
	}
	return chatReq, nil
}

func encodeMessages(msgs []model.Message) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Text})
		case model.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Text})
		case model.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text}
			if len(m.ToolCalls) > 0 {
				msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
				for i, tc := range m.ToolCalls {
					msg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: string(tc.Arguments),
						},
					}
				}
			}
			out = append(out, msg)
		case model.RoleToolResult:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Text,
				ToolCallID: m.ToolCallID,
			})
		default:
			return nil, fmt.Errorf("openai: unsupported message role %d", m.Role)
		}
	}
	return out, nil
}

func encodeTools(specs []model.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, len(specs))
	for i, spec := range specs {
		params := spec.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		}
	}
	return out
}

func translateResponse(resp openai.ChatCompletionResponse) model.Response {
	var out model.Response
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Text = choice.Message.Content
		for _, tc := range choice.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
	}
	out.InputTokens = resp.Usage.PromptTokens
	out.OutputTokens = resp.Usage.CompletionTokens
	return out
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return &model.Error{Provider: "openai", Sentinel: model.ErrRateLimited, Cause: err}
		case 500, 502, 503, 504:
			return &model.Error{Provider: "openai", Sentinel: model.ErrUnavailable, Cause: err}
		case 400, 422:
			return &model.Error{Provider: "openai", Sentinel: model.ErrInvalidRequest, Cause: err}
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &model.Error{Provider: "openai", Sentinel: model.ErrUnavailable, Cause: err}
	}
	return fmt.Errorf("openai: create chat completion: %w", err)
}
