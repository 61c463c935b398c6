package engine

import (
	"time"

	"github.com/ChamsBouzaiene/planloop/internal/prompts"
)

const (
	DefaultMaxSteps     = 8
	DefaultBrainTimeout = 120 * time.Second
)

// AgentConfig holds configuration for an agent instance.
type AgentConfig struct {
	MaxSteps       int                   // Step budget per run
	BrainTimeout   time.Duration         // Per-attempt Brain call timeout (negative = none)
	ToolTimeout    time.Duration         // Per-call tool timeout (negative = none)
	RetryConfig    *RetryConfig          // nil uses DefaultRetryConfig
	PromptVersion  prompts.PromptVersion // "" uses the latest registered version
	FinishToolName string                // Terminal sentinel tool name
}

// DefaultAgentConfig returns a default agent configuration.
func DefaultAgentConfig() AgentConfig {
	rc := DefaultRetryConfig()
	return AgentConfig{
		MaxSteps:       DefaultMaxSteps,
		BrainTimeout:   DefaultBrainTimeout,
		ToolTimeout:    DefaultToolTimeout,
		RetryConfig:    &rc,
		FinishToolName: FinishToolName,
	}
}

func (c AgentConfig) withDefaults() AgentConfig {
	d := DefaultAgentConfig()
	if c.MaxSteps <= 0 {
		c.MaxSteps = d.MaxSteps
	}
	if c.BrainTimeout == 0 {
		c.BrainTimeout = d.BrainTimeout
	}
	if c.ToolTimeout == 0 {
		c.ToolTimeout = d.ToolTimeout
	}
	if c.RetryConfig == nil {
		c.RetryConfig = d.RetryConfig
	}
	if c.FinishToolName == "" {
		c.FinishToolName = d.FinishToolName
	}
	return c
}
