package engine

import (
	"context"
	"fmt"
	"time"
)

// MessageRole represents the role of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ChatMessage is the provider-agnostic message we pass around.
type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Validate checks if the ChatMessage is valid for sending to a Brain.
func (m ChatMessage) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
	return nil
}

// OutputHint asks the Brain for a particular reply shape.
type OutputHint string

const (
	HintNone OutputHint = ""
	HintJSON OutputHint = "json"
)

// BrainReply is a normalized result of one chat call.
type BrainReply struct {
	Content   string    // Reply text with any reasoning block removed
	Thinking  string    // Reasoning block emitted by thinking models, if any
	Timestamp time.Time // When the backend produced the reply
}

// Brain turns an ordered message history into a reply.
// Implementations must honor ctx cancellation.
type Brain interface {
	Chat(ctx context.Context, messages []ChatMessage, hint OutputHint) (BrainReply, error)
}

// BrainFunc adapts a function to the Brain interface.
type BrainFunc func(ctx context.Context, messages []ChatMessage, hint OutputHint) (BrainReply, error)

func (f BrainFunc) Chat(ctx context.Context, messages []ChatMessage, hint OutputHint) (BrainReply, error) {
	return f(ctx, messages, hint)
}

// ToolCallDecision is the planning phase's choice of the next action.
type ToolCallDecision struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// Context is the one-hop payload a state hands to its successor.
// Fields not set by the producing state are zero.
type Context struct {
	ToolCall     *ToolCallDecision
	FinalAnswer  string
	ErrorMessage string
}

// RunState is the per-run bookkeeping owned by the agent loop.
type RunState struct {
	ID       string    // Unique run identifier
	Request  string    // The user request that started the run
	Current  StateName // State about to execute (or that just executed)
	Step     int       // Steps executed so far
	MaxSteps int       // Step budget
	Started  time.Time
}
