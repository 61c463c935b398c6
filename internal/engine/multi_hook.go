package engine

import (
	"context"
	"time"
)

type Hooks []Hook

func (hs Hooks) OnRunStart(ctx context.Context, rs *RunState) {
	for _, h := range hs {
		h.OnRunStart(ctx, rs)
	}
}
func (hs Hooks) OnStateEnter(ctx context.Context, rs *RunState, s StateName) {
	for _, h := range hs {
		h.OnStateEnter(ctx, rs, s)
	}
}
func (hs Hooks) OnBeforeBrain(ctx context.Context, rs *RunState, m []ChatMessage, hint OutputHint) {
	for _, h := range hs {
		h.OnBeforeBrain(ctx, rs, m, hint)
	}
}
func (hs Hooks) OnAfterBrain(ctx context.Context, rs *RunState, r BrainReply, err error) {
	for _, h := range hs {
		h.OnAfterBrain(ctx, rs, r, err)
	}
}
func (hs Hooks) OnToolCall(ctx context.Context, rs *RunState, c ToolCallDecision) {
	for _, h := range hs {
		h.OnToolCall(ctx, rs, c)
	}
}
func (hs Hooks) OnToolResult(ctx context.Context, rs *RunState, r ToolResult) {
	for _, h := range hs {
		h.OnToolResult(ctx, rs, r)
	}
}
func (hs Hooks) OnStep(ctx context.Context, rs *RunState, s StepResult) {
	for _, h := range hs {
		h.OnStep(ctx, rs, s)
	}
}
func (hs Hooks) OnError(ctx context.Context, rs *RunState, err error) {
	for _, h := range hs {
		h.OnError(ctx, rs, err)
	}
}
func (hs Hooks) OnRetryAttempt(ctx context.Context, rs *RunState, attempt int, maxAttempts int, delay time.Duration, err error) {
	for _, h := range hs {
		h.OnRetryAttempt(ctx, rs, attempt, maxAttempts, delay, err)
	}
}
func (hs Hooks) OnRetryExhausted(ctx context.Context, rs *RunState, err error) {
	for _, h := range hs {
		h.OnRetryExhausted(ctx, rs, err)
	}
}
func (hs Hooks) OnDone(ctx context.Context, rs *RunState, final StepResult) {
	for _, h := range hs {
		h.OnDone(ctx, rs, final)
	}
}
