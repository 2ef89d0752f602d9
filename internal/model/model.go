// Package model defines the synchronous LLM client contract the Task Runner
// depends on, and the sentinel errors a Provider implementation surfaces.
//
// A Client is deliberately a single blocking call, never a stream: the
// scheduling model suspends a task's goroutine for the duration of the call
// and resumes it with a complete Response.
package model

import "context"

// Role identifies the speaker of a Message in a Request.
type Role int

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
	RoleToolResult
)

// ToolCall is one invocation request the Model asked the caller to perform.
type ToolCall struct {
	ID        string
	Name      string
	Arguments []byte
}

// Message is one entry of a Request's conversation history.
type Message struct {
	Role Role
	Text string
	// ToolCalls is populated on Assistant messages that invoked tools.
	ToolCalls []ToolCall
	// ToolCallID links a ToolResult message to the call it answers.
	ToolCallID string
	IsError    bool
}

// ToolSpec is the provider-agnostic JSON-Schema shape of one callable tool,
// produced by internal/toolregistry.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is one synchronous call to a Model.
type Request struct {
	Messages    []Message
	Tools       []ToolSpec
	Model       string
	MaxTokens   int
	Temperature float64
}

// Response is the Model's answer to one Request. Text and ToolCalls may both
// be non-empty in the same turn.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	// Thinking holds reasoning/thinking-token content, when the provider
	// exposes it. Never appended to conversation context.
	Thinking string
	// InputTokens and OutputTokens report provider-side usage, when
	// available, for the Token Budget component to account against caps.
	InputTokens  int
	OutputTokens int
}

// Client is the contract the Task Runner drives. Each concrete provider
// package (internal/model/anthropic, .../openai, .../bedrock) implements it
// against one vendor's API.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
