package engine

import (
	"context"
	"testing"
	"time"

	"github.com/ChamsBouzaiene/planloop/internal/prompts"
)

func TestAgentBuilder_Validation(t *testing.T) {
	ctx := context.Background()
	reg, _ := NewRegistry(weatherTool())

	t.Run("missing brain", func(t *testing.T) {
		_, err := NewAgentBuilder().WithToolRegistry(reg).Build(ctx)
		if err == nil || err.Error() != "brain not configured: use WithBrain" {
			t.Errorf("Build() error = %v, want 'brain not configured: use WithBrain'", err)
		}
	})

	t.Run("missing tools", func(t *testing.T) {
		_, err := NewAgentBuilder().WithBrain(repeatBrain("{}")).Build(ctx)
		if err == nil || err.Error() != "tools not configured: use WithToolRegistry" {
			t.Errorf("Build() error = %v, want 'tools not configured: use WithToolRegistry'", err)
		}
	})

	t.Run("unknown prompt version", func(t *testing.T) {
		_, err := NewAgentBuilder().
			WithBrain(repeatBrain("{}")).
			WithToolRegistry(reg).
			WithPromptVersion("9.9.9").
			Build(ctx)
		if err == nil {
			t.Error("Build() expected error for unknown prompt version")
		}
	})
}

func TestAgentBuilder_Success(t *testing.T) {
	reg, _ := NewRegistry(weatherTool(), finishTool())
	agent, err := NewAgentBuilder().
		WithBrain(repeatBrain(finishCall)).
		WithToolRegistry(reg).
		WithMaxSteps(3).
		WithTimeouts(time.Second, -1).
		WithPromptVersion(prompts.PromptV2).
		WithHooks(Hooks{NopHook{}}).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	cfg := agent.Config()
	if cfg.MaxSteps != 3 || cfg.BrainTimeout != time.Second || cfg.ToolTimeout != -1 {
		t.Errorf("Config() = %+v", cfg)
	}
	if cfg.FinishToolName != FinishToolName || cfg.RetryConfig == nil {
		t.Errorf("Config() defaults not applied: %+v", cfg)
	}
	if agent.Tools().Len() != 2 {
		t.Errorf("Tools().Len() = %d, want 2", agent.Tools().Len())
	}

	// Summarizing has no v2 prompt and falls back to the latest version.
	final := checkSingleFinal(t, collect(agent.Run(context.Background(), "hi")))
	if final.CurrentState != StateFinished {
		t.Errorf("final = %+v", final)
	}
}

func TestAgentBuilder_SharedMemory(t *testing.T) {
	reg, _ := NewRegistry(weatherTool(), finishTool())
	mem := NewMemory()
	build := func() *Agent {
		agent, err := NewAgentBuilder().
			WithBrain(repeatBrain(finishCall)).
			WithToolRegistry(reg).
			WithMemory(mem).
			WithHooks(Hooks{NopHook{}}).
			Build(context.Background())
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		return agent
	}

	first, second := build(), build()
	if first.Memory() != mem || second.Memory() != mem {
		t.Fatal("agents do not share the given memory")
	}

	collect(first.Run(context.Background(), "one"))
	n := mem.Len()
	collect(second.Run(context.Background(), "two"))
	if mem.Len() <= n {
		t.Errorf("second run did not extend the shared memory: %d -> %d", n, mem.Len())
	}
	if _, e := mem.LastOfRole(RoleUser); e.Content != "two" {
		t.Errorf("last user entry = %q, want %q", e.Content, "two")
	}
}

func TestDefaultAgentConfig(t *testing.T) {
	cfg := DefaultAgentConfig()
	if cfg.MaxSteps != 8 || cfg.BrainTimeout != 120*time.Second || cfg.ToolTimeout != 30*time.Second {
		t.Errorf("DefaultAgentConfig() = %+v", cfg)
	}
}
