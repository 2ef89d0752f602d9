// Package bedrock implements model.Client against AWS Bedrock's Converse
// API, the provider-agnostic invocation surface bedrockruntime exposes
// across model families (Anthropic, Llama, Titan, Mistral, Cohere...).
//
// AWS config/credentials loading uses the same aws-sdk-go-v2 config.LoadDefaultConfig
// and credentials.NewStaticCredentialsProvider pattern as any other service client
// in this SDK family: explicit access key/secret/session token when given,
// falling back to the default provider chain otherwise.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/haasonsaas/taskgraph/internal/model"
)

// converseAPI captures the subset of *bedrockruntime.Client this package
// depends on, so tests can substitute a fake.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements model.Client against AWS Bedrock's Converse API.
type Client struct {
	api          converseAPI
	defaultModel string
	maxTokens    int
	temperature  float64
}

// Options configures a Client. DefaultModel is the Bedrock model ID or
// inference profile ARN used whenever a Request leaves Model empty.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// Credentials holds explicit static AWS credentials. Leave zero to fall
// back to the default credential chain (env vars, shared config, IAM role).
type Credentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// New builds a Client from an already-constructed Converse API, letting
// callers inject their own region, credentials, or a test double.
func New(api converseAPI, opts Options) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: converse client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	return &Client{api: api, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewFromCredentials loads an AWS config (explicit static credentials if
// given, otherwise the default chain) and constructs a Client.
func NewFromCredentials(ctx context.Context, creds Credentials, defaultModel string) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if creds.Region != "" {
		opts = append(opts, awsconfig.WithRegion(creds.Region))
	}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
		)))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return New(bedrockruntime.NewFromConfig(cfg), Options{DefaultModel: defaultModel})
}

// Complete issues a Converse call and translates the result into
// model.Response.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	input, err := c.prepareRequest(req)
	if err != nil {
		return model.Response{}, err
	}
	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return model.Response{}, classifyError(err)
	}
	return translateResponse(out)
}

func (c *Client) prepareRequest(req model.Request) (*bedrockruntime.ConverseInput, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	msgs, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	maxTokens := int32(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int32(c.maxTokens)
	}
	temp := float32(req.Temperature)
	if temp <= 0 {
		temp = float32(c.temperature)
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: msgs,
	}
	if maxTokens > 0 || temp > 0 {
		cfg := &types.InferenceConfiguration{}
		if maxTokens > 0 {
			cfg.MaxTokens = aws.Int32(maxTokens)
		}
		if temp > 0 {
			cfg.Temperature = aws.Float32(temp)
		}
		input.InferenceConfig = cfg
	}
	if system != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = encodeTools(req.Tools)
	}
	return input, nil
}

func encodeMessages(msgs []model.Message) ([]types.Message, string, error) {
	out := make([]types.Message, 0, len(msgs))
	var system string

	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			if system == "" {
				system = m.Text
			} else {
				system += "\n" + m.Text
			}
		case model.RoleUser:
			out = append(out, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Text}},
			})
		case model.RoleAssistant:
			var blocks []types.ContentBlock
			if m.Text != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Text})
			}
			for _, tc := range m.ToolCalls {
				input, err := decodeToolInput(tc.Arguments)
				if err != nil {
					return nil, "", err
				}
				blocks = append(blocks, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{ToolUseId: aws.String(tc.ID), Name: aws.String(tc.Name), Input: input},
				})
			}
			out = append(out, types.Message{Role: types.ConversationRoleAssistant, Content: blocks})
		case model.RoleToolResult:
			status := types.ToolResultStatusSuccess
			if m.IsError {
				status = types.ToolResultStatusError
			}
			out = append(out, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(m.ToolCallID),
						Status:    status,
						Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: m.Text}},
					},
				}},
			})
		default:
			return nil, "", fmt.Errorf("bedrock: unsupported message role %d", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, "", errors.New("bedrock: at least one user/assistant/tool_result message is required")
	}
	return out, system, nil
}

func decodeToolInput(args []byte) (document.Interface, error) {
	if len(args) == 0 {
		return document.NewLazyDocument(map[string]any{}), nil
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return nil, fmt.Errorf("bedrock: decode tool call arguments: %w", err)
	}
	return document.NewLazyDocument(v), nil
}

func encodeTools(specs []model.ToolSpec) *types.ToolConfiguration {
	tools := make([]types.Tool, 0, len(specs))
	for _, spec := range specs {
		params := spec.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(spec.Name),
				Description: aws.String(spec.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(params)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: tools}
}

func translateResponse(out *bedrockruntime.ConverseOutput) (model.Response, error) {
	var resp model.Response

	outputMember, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp, errors.New("bedrock: converse returned no message output")
	}
	for _, block := range outputMember.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			resp.Text += b.Value
		case *types.ContentBlockMemberToolUse:
			raw, err := b.Value.Input.MarshalSmithyDocument()
			if err != nil {
				return resp, fmt.Errorf("bedrock: encode tool use input: %w", err)
			}
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: raw,
			})
		}
	}
	if out.Usage != nil {
		resp.InputTokens = int(aws.ToInt32(out.Usage.InputTokens))
		resp.OutputTokens = int(aws.ToInt32(out.Usage.OutputTokens))
	}
	return resp, nil
}

func classifyError(err error) error {
	var throttling *types.ThrottlingException
	if errors.As(err, &throttling) {
		return &model.Error{Provider: "bedrock", Sentinel: model.ErrRateLimited, Cause: err}
	}
	var unavailable *types.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		return &model.Error{Provider: "bedrock", Sentinel: model.ErrUnavailable, Cause: err}
	}
	var internal *types.InternalServerException
	if errors.As(err, &internal) {
		return &model.Error{Provider: "bedrock", Sentinel: model.ErrUnavailable, Cause: err}
	}
	var validation *types.ValidationException
	if errors.As(err, &validation) {
		return &model.Error{Provider: "bedrock", Sentinel: model.ErrInvalidRequest, Cause: err}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("bedrock: converse: %s: %w", apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("bedrock: converse: %w", err)
}
