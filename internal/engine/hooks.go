// engine/hooks.go
package engine

import (
	"context"
	"time"
)

// Hook observes a run. Hooks are called synchronously from the loop goroutine.
type Hook interface {
	OnRunStart(ctx context.Context, rs *RunState)
	OnStateEnter(ctx context.Context, rs *RunState, state StateName)
	OnBeforeBrain(ctx context.Context, rs *RunState, messages []ChatMessage, hint OutputHint)
	OnAfterBrain(ctx context.Context, rs *RunState, reply BrainReply, err error)
	OnToolCall(ctx context.Context, rs *RunState, call ToolCallDecision)
	OnToolResult(ctx context.Context, rs *RunState, result ToolResult)
	OnStep(ctx context.Context, rs *RunState, step StepResult)
	OnError(ctx context.Context, rs *RunState, err error)
	OnRetryAttempt(ctx context.Context, rs *RunState, attempt int, maxAttempts int, delay time.Duration, err error)
	OnRetryExhausted(ctx context.Context, rs *RunState, err error)
	OnDone(ctx context.Context, rs *RunState, final StepResult)
}

// NopHook lets you implement only the hooks you need.
type NopHook struct{}

func (NopHook) OnRunStart(context.Context, *RunState)                                     {}
func (NopHook) OnStateEnter(context.Context, *RunState, StateName)                        {}
func (NopHook) OnBeforeBrain(context.Context, *RunState, []ChatMessage, OutputHint)       {}
func (NopHook) OnAfterBrain(context.Context, *RunState, BrainReply, error)                {}
func (NopHook) OnToolCall(context.Context, *RunState, ToolCallDecision)                   {}
func (NopHook) OnToolResult(context.Context, *RunState, ToolResult)                       {}
func (NopHook) OnStep(context.Context, *RunState, StepResult)                             {}
func (NopHook) OnError(context.Context, *RunState, error)                                 {}
func (NopHook) OnRetryAttempt(context.Context, *RunState, int, int, time.Duration, error) {}
func (NopHook) OnRetryExhausted(context.Context, *RunState, error)                        {}
func (NopHook) OnDone(context.Context, *RunState, StepResult)                             {}
