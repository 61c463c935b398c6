package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ChamsBouzaiene/planloop/internal/prompts"
)

// AgentBuilder helps construct an Agent with a fluent API.
type AgentBuilder struct {
	config  AgentConfig
	brain   Brain
	tools   *Registry
	hooks   Hooks
	states  StateTable
	prompts *prompts.PromptRegistry
	logger  *slog.Logger
	memory  *Memory
}

// NewAgentBuilder creates a new agent builder with default configuration.
func NewAgentBuilder() *AgentBuilder {
	return &AgentBuilder{
		config: DefaultAgentConfig(),
	}
}

// WithBrain sets the reasoning backend.
func (b *AgentBuilder) WithBrain(brain Brain) *AgentBuilder {
	b.brain = brain
	return b
}

// WithToolRegistry sets the tool registry.
func (b *AgentBuilder) WithToolRegistry(reg *Registry) *AgentBuilder {
	b.tools = reg
	return b
}

// WithMaxSteps sets the step budget.
func (b *AgentBuilder) WithMaxSteps(maxSteps int) *AgentBuilder {
	b.config.MaxSteps = maxSteps
	return b
}

// WithTimeouts sets the Brain and tool timeouts. Negative values disable them.
func (b *AgentBuilder) WithTimeouts(brain, tool time.Duration) *AgentBuilder {
	b.config.BrainTimeout = brain
	b.config.ToolTimeout = tool
	return b
}

// WithRetryConfig sets the retry configuration.
func (b *AgentBuilder) WithRetryConfig(retryConfig *RetryConfig) *AgentBuilder {
	b.config.RetryConfig = retryConfig
	return b
}

// WithPromptVersion pins the prompt version used by the states.
func (b *AgentBuilder) WithPromptVersion(version prompts.PromptVersion) *AgentBuilder {
	b.config.PromptVersion = version
	return b
}

// WithPromptRegistry sets a custom prompt registry.
func (b *AgentBuilder) WithPromptRegistry(r *prompts.PromptRegistry) *AgentBuilder {
	b.prompts = r
	return b
}

// WithStates overrides entries of the default state table.
func (b *AgentBuilder) WithStates(states StateTable) *AgentBuilder {
	b.states = states
	return b
}

// WithHooks sets custom hooks.
func (b *AgentBuilder) WithHooks(hooks Hooks) *AgentBuilder {
	b.hooks = hooks
	return b
}

// WithLogger sets the logger used by the default LoggerHook.
func (b *AgentBuilder) WithLogger(l *slog.Logger) *AgentBuilder {
	b.logger = l
	return b
}

// WithMemory shares an existing memory log with the new agent.
func (b *AgentBuilder) WithMemory(m *Memory) *AgentBuilder {
	b.memory = m
	return b
}

// Build constructs the Agent instance.
func (b *AgentBuilder) Build(ctx context.Context) (*Agent, error) {
	if b.brain == nil {
		return nil, fmt.Errorf("brain not configured: use WithBrain")
	}
	if b.tools == nil {
		return nil, fmt.Errorf("tools not configured: use WithToolRegistry")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	if b.config.PromptVersion != "" {
		registry := b.prompts
		if registry == nil {
			registry = prompts.DefaultRegistry()
		}
		if _, err := registry.Get(prompts.PlanningID, b.config.PromptVersion); err != nil {
			return nil, err
		}
	}

	hooks := b.hooks
	if hooks == nil {
		hooks = Hooks{NewLoggerHook(logger)}
	}

	opts := []Option{
		WithConfig(b.config),
		WithHooks(hooks...),
		WithLogger(logger),
	}
	if b.states != nil {
		opts = append(opts, WithStates(b.states))
	}
	if b.prompts != nil {
		opts = append(opts, WithPrompts(b.prompts))
	}
	if b.memory != nil {
		opts = append(opts, WithMemory(b.memory))
	}

	a, err := NewAgent(b.brain, b.tools, opts...)
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "agent configured",
		"tools", a.tools.Names(),
		"max_steps", a.config.MaxSteps,
		"brain_timeout", a.config.BrainTimeout,
		"tool_timeout", a.config.ToolTimeout,
	)
	return a, nil
}
