// Package anthropic implements model.Client on top of the Anthropic Claude
// Messages API, grounded on goa-ai's features/model/anthropic/client.go
// (same non-streaming Complete-only pattern, same params/translate split),
// simplified to this repository's flat Request/Response shape instead of
// goa-ai's part-based Message/Content model.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/taskgraph/internal/model"
)

// messagesClient captures the subset of the Anthropic SDK this package
// depends on, so tests can substitute a fake.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Client implements model.Client against Anthropic's Messages API.
type Client struct {
	msg          messagesClient
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

// New builds a Client from an already-constructed Anthropic Messages
// client, letting callers inject their own HTTP client, retries, or a test
// double.
func New(msg messagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model identifier is required")
	}
	return &Client{msg: msg, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewFromAPIKey constructs a Client authenticated with apiKey, returning an
// error when apiKey is empty. It sets no default max token count.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel})
}

// Complete issues a non-streaming Messages.New call and translates the
// result into model.Response.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return model.Response{}, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return model.Response{}, classifyError(err)
	}
	return translateResponse(msg), nil
}

func (c *Client) prepareRequest(req model.Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	msgs, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens <= 0 {
		return nil, errors.New("anthropic: max_tokens must be positive")
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(modelID),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	temp := req.Temperature
	if temp <= 0 {
		temp = c.temperature
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	return &params, nil
}

// encodeMessages splits System-role messages into Anthropic's separate
// system parameter, since the Messages API has no system role in the
// conversation turn list itself.
func encodeMessages(msgs []model.Message) ([]sdk.MessageParam, string, error) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	var system string

	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			if system == "" {
				system = m.Text
			} else {
				system += "\n" + m.Text
			}
			continue
		case model.RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Text)))
		case model.RoleAssistant:
			blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Text))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						return nil, "", fmt.Errorf("anthropic: decode tool call arguments: %w", err)
					}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
		case model.RoleToolResult:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Text, m.IsError)))
		default:
			return nil, "", fmt.Errorf("anthropic: unsupported message role %d", m.Role)
		}
	}
	if len(conversation) == 0 {
		return nil, "", errors.New("anthropic: at least one user/assistant/tool_result message is required")
	}
	return conversation, system, nil
}

func encodeTools(specs []model.ToolSpec) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		schema := sdk.ToolInputSchemaParam{ExtraFields: spec.Parameters}
		u := sdk.ToolUnionParamOfTool(schema, spec.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(spec.Description)
		}
		out = append(out, u)
	}
	return out
}

func translateResponse(msg *sdk.Message) model.Response {
	var resp model.Response
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Text += block.Text
		case "thinking":
			resp.Thinking += block.Thinking
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	resp.InputTokens = int(msg.Usage.InputTokens)
	resp.OutputTokens = int(msg.Usage.OutputTokens)
	return resp
}

func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return &model.Error{Provider: "anthropic", Sentinel: model.ErrRateLimited, Cause: err}
		case 500, 502, 503, 504:
			return &model.Error{Provider: "anthropic", Sentinel: model.ErrUnavailable, Cause: err}
		case 400, 422:
			return &model.Error{Provider: "anthropic", Sentinel: model.ErrInvalidRequest, Cause: err}
		}
	}
	return fmt.Errorf("anthropic: messages.new: %w", err)
}
