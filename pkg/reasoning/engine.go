// Package reasoning defines the reasoning engine collaborator contract: the
// engine receives system instructions, the conversation so far and a tool
// catalog, and answers with free text and/or requested tool invocations.
package reasoning

import (
	"context"
	"errors"
	"fmt"
)

// ErrProtocol marks a reasoning engine transport or contract failure. It is
// fatal for the whole control-loop invocation, never retried internally.
var ErrProtocol = errors.New("reasoning protocol error")

// Role identifies who produced a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one entry of the running conversation transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Set on assistant turns that requested tools.
	ToolCalls []ToolRequest `json:"tool_calls,omitempty"`

	// Set on tool turns; pairs the result with the request it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes one catalog entry offered to the engine.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

// ToolRequest is a structured action the engine asks the control loop to
// perform on its behalf.
type ToolRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	CallID    string         `json:"call_id"`
}

// Usage is the engine's token accounting for a single call.
type Usage struct {
	Input           int64 `json:"input"`
	Output          int64 `json:"output"`
	Total           int64 `json:"total"`
	ReasoningTokens int64 `json:"reasoning_tokens"`
}

// Result is one engine turn: free text, zero or more tool requests, and
// per-call usage.
type Result struct {
	FinalText    string        `json:"final_text"`
	ToolRequests []ToolRequest `json:"tool_requests"`
	Usage        Usage         `json:"usage"`
}

// Engine is implemented by reasoning providers.
type Engine interface {
	Invoke(ctx context.Context, systemInstructions string, transcript []Turn, catalog []ToolDefinition) (*Result, error)
}

// protocolError wraps err so it matches ErrProtocol.
func protocolError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}
