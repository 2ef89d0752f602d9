package anthropic

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/taskgraph/internal/model"
)

type fakeMessagesClient struct {
	lastBody sdk.MessageNewParams
	response *sdk.Message
	err      error
}

func (f *fakeMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.lastBody = body
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func TestCompleteTranslatesTextResponse(t *testing.T) {
	fake := &fakeMessagesClient{response: &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: "hello[DONE]"}},
		Usage:   sdk.Usage{InputTokens: 10, OutputTokens: 4},
	}}
	c, err := New(fake, Options{DefaultModel: "claude-test", MaxTokens: 256})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "say hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello[DONE]", resp.Text)
	assert.Equal(t, 10, resp.InputTokens)
	assert.Equal(t, 4, resp.OutputTokens)
	assert.Equal(t, sdk.Model("claude-test"), fake.lastBody.Model)
}

func TestCompleteTranslatesToolUseResponse(t *testing.T) {
	fake := &fakeMessagesClient{response: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "tool_use", ID: "call_1", Name: "add", Input: []byte(`{"a":1,"b":2}`)},
		},
	}}
	c, err := New(fake, Options{DefaultModel: "claude-test", MaxTokens: 256})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "add 1 and 2"}},
		Tools:    []model.ToolSpec{{Name: "add", Description: "adds", Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "add", resp.ToolCalls[0].Name)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	require.Len(t, fake.lastBody.Tools, 1)
}

func TestCompleteSeparatesSystemMessage(t *testing.T) {
	fake := &fakeMessagesClient{response: &sdk.Message{}}
	c, err := New(fake, Options{DefaultModel: "claude-test", MaxTokens: 256})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Text: "you are terse"},
			{Role: model.RoleUser, Text: "hi"},
		},
	})
	require.NoError(t, err)
	require.Len(t, fake.lastBody.System, 1)
	assert.Equal(t, "you are terse", fake.lastBody.System[0].Text)
	assert.Len(t, fake.lastBody.Messages, 1)
}

func TestCompleteEncodesToolResultMessage(t *testing.T) {
	fake := &fakeMessagesClient{response: &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: "done[DONE]"}},
	}}
	c, err := New(fake, Options{DefaultModel: "claude-test", MaxTokens: 256})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), model.Request{
		Messages: []model.Message{
			{Role: model.RoleUser, Text: "add 1 and 2"},
			{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{ID: "call_1", Name: "add", Arguments: []byte(`{"a":1,"b":2}`)}}},
			{Role: model.RoleToolResult, ToolCallID: "call_1", Text: "3"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, fake.lastBody.Messages, 3)
}

func TestCompleteRejectsEmptyMessages(t *testing.T) {
	fake := &fakeMessagesClient{}
	c, err := New(fake, Options{DefaultModel: "claude-test", MaxTokens: 256})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), model.Request{})
	assert.Error(t, err)
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	_, err := New(&fakeMessagesClient{}, Options{})
	assert.Error(t, err)
}
