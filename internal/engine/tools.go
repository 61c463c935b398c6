package engine

import (
	"context"
	"encoding/json"
	"fmt"
)

type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// ToolMetadata provides versioning and categorization for tools.
type ToolMetadata struct {
	Version  string   // e.g., "1.0.0"
	Category string   // e.g., "lookup", "reasoning"
	Tags     []string // e.g., ["read-only", "idempotent"]
}

// ToolFunction is the inner part of a capability descriptor.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolDescriptor is the capability description shown to the Brain.
type ToolDescriptor struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// Tool is a named capability the agent can invoke.
type Tool interface {
	Name() string
	Descriptor() ToolDescriptor
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// RetryableTool is implemented by tools that are safe to call again after a transient failure.
type RetryableTool interface {
	Retryable() bool
}

// FuncTool is the struct-based Tool implementation used by the built-in tools.
type FuncTool struct {
	ToolName    string
	Description string
	SchemaJSON  string
	Fn          ToolFunc
	IsRetryable bool
	Metadata    ToolMetadata
}

func (t *FuncTool) Name() string { return t.ToolName }

func (t *FuncTool) Descriptor() ToolDescriptor {
	params := json.RawMessage(t.SchemaJSON)
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return ToolDescriptor{
		Type: "function",
		Function: ToolFunction{
			Name:        t.ToolName,
			Description: t.Description,
			Parameters:  params,
		},
	}
}

func (t *FuncTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if t.Fn == nil {
		return "", fmt.Errorf("tool %s has no implementation", t.ToolName)
	}
	return t.Fn(ctx, args)
}

func (t *FuncTool) Retryable() bool { return t.IsRetryable }

// GetCategory returns the tool category, defaulting to "general" if unset.
func (t *FuncTool) GetCategory() string {
	if t.Metadata.Category == "" {
		return "general"
	}
	return t.Metadata.Category
}
