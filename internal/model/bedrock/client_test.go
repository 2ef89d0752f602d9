package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/taskgraph/internal/model"
)

type fakeConverseAPI struct {
	lastInput *bedrockruntime.ConverseInput
	output    *bedrockruntime.ConverseOutput
	err       error
}

func (f *fakeConverseAPI) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.lastInput = params
	return f.output, f.err
}

func TestCompleteTranslatesTextResponse(t *testing.T) {
	fake := &fakeConverseAPI{output: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "hello[DONE]"}},
		}},
		Usage: &types.TokenUsage{InputTokens: aws.Int32(9), OutputTokens: aws.Int32(2)},
	}}
	c, err := New(fake, Options{DefaultModel: "anthropic.claude-test"})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "say hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello[DONE]", resp.Text)
	assert.Equal(t, 9, resp.InputTokens)
	assert.Equal(t, 2, resp.OutputTokens)
	assert.Equal(t, "anthropic.claude-test", aws.ToString(fake.lastInput.ModelId))
}

func TestCompleteTranslatesToolUseResponse(t *testing.T) {
	fake := &fakeConverseAPI{output: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role: types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
				ToolUseId: aws.String("call_1"),
				Name:      aws.String("add"),
				Input:     document.NewLazyDocument(map[string]any{"a": float64(1), "b": float64(2)}),
			}}},
		}},
	}}
	c, err := New(fake, Options{DefaultModel: "anthropic.claude-test"})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "add 1 and 2"}},
		Tools:    []model.ToolSpec{{Name: "add", Description: "adds", Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "add", resp.ToolCalls[0].Name)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	require.NotNil(t, fake.lastInput.ToolConfig)
	require.Len(t, fake.lastInput.ToolConfig.Tools, 1)
}

func TestCompleteSeparatesSystemMessage(t *testing.T) {
	fake := &fakeConverseAPI{output: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "ok[DONE]"}},
		}},
	}}
	c, err := New(fake, Options{DefaultModel: "anthropic.claude-test"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Text: "be terse"},
			{Role: model.RoleUser, Text: "hi"},
		},
	})
	require.NoError(t, err)
	require.Len(t, fake.lastInput.System, 1)
	assert.Len(t, fake.lastInput.Messages, 1)
}

func TestCompleteRejectsMissingOutputMessage(t *testing.T) {
	fake := &fakeConverseAPI{output: &bedrockruntime.ConverseOutput{}}
	c, err := New(fake, Options{DefaultModel: "anthropic.claude-test"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
	})
	assert.Error(t, err)
}

func TestCompleteRejectsEmptyMessages(t *testing.T) {
	fake := &fakeConverseAPI{}
	c, err := New(fake, Options{DefaultModel: "anthropic.claude-test"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), model.Request{})
	assert.Error(t, err)
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	_, err := New(&fakeConverseAPI{}, Options{})
	assert.Error(t, err)
}
