// engine/hook_logger.go
package engine

import (
	"context"
	"log/slog"
	"time"
)

const previewLen = 200

// LoggerHook writes structured run progress to a slog.Logger.
type LoggerHook struct{ L *slog.Logger }

// NewLoggerHook returns a LoggerHook; a nil logger uses slog.Default().
func NewLoggerHook(l *slog.Logger) LoggerHook {
	if l == nil {
		l = slog.Default()
	}
	return LoggerHook{L: l}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (h LoggerHook) OnRunStart(ctx context.Context, rs *RunState) {
	h.L.InfoContext(ctx, "run started", "run_id", rs.ID, "max_steps", rs.MaxSteps, "request", preview(rs.Request, previewLen))
}
func (h LoggerHook) OnStateEnter(ctx context.Context, rs *RunState, s StateName) {
	h.L.DebugContext(ctx, "entering state", "run_id", rs.ID, "step", rs.Step, "state", s)
}
func (h LoggerHook) OnBeforeBrain(ctx context.Context, rs *RunState, msgs []ChatMessage, hint OutputHint) {
	h.L.DebugContext(ctx, "brain call", "run_id", rs.ID, "step", rs.Step, "messages", len(msgs),
		"tokens_estimate", EstimateMessageTokens(msgs), "hint", string(hint))
}
func (h LoggerHook) OnAfterBrain(ctx context.Context, rs *RunState, r BrainReply, err error) {
	if err != nil {
		h.L.WarnContext(ctx, "brain call failed", "run_id", rs.ID, "step", rs.Step, "error", err)
		return
	}
	h.L.DebugContext(ctx, "brain reply", "run_id", rs.ID, "step", rs.Step, "reply", preview(r.Content, previewLen), "thinking_chars", len(r.Thinking))
}
func (h LoggerHook) OnToolCall(ctx context.Context, rs *RunState, c ToolCallDecision) {
	h.L.InfoContext(ctx, "tool call", "run_id", rs.ID, "step", rs.Step, "tool", c.ToolName, "args", c.Arguments)
}
func (h LoggerHook) OnToolResult(ctx context.Context, rs *RunState, r ToolResult) {
	if r.Err != nil {
		h.L.WarnContext(ctx, "tool error", "run_id", rs.ID, "tool", r.Tool, "error", r.Err, "duration", r.Duration)
		return
	}
	h.L.InfoContext(ctx, "tool result", "run_id", rs.ID, "tool", r.Tool, "output", preview(r.Output, previewLen), "duration", r.Duration)
}
func (h LoggerHook) OnStep(context.Context, *RunState, StepResult) {}
func (h LoggerHook) OnError(ctx context.Context, rs *RunState, err error) {
	h.L.ErrorContext(ctx, "run error", "run_id", rs.ID, "step", rs.Step, "error", err)
}
func (h LoggerHook) OnRetryAttempt(ctx context.Context, rs *RunState, attempt int, maxAttempts int, delay time.Duration, err error) {
	h.L.WarnContext(ctx, "retrying", "run_id", rs.ID, "attempt", attempt, "max_attempts", maxAttempts, "delay", delay, "error", err)
}
func (h LoggerHook) OnRetryExhausted(ctx context.Context, rs *RunState, err error) {
	h.L.ErrorContext(ctx, "retries exhausted", "run_id", rs.ID, "error", err)
}
func (h LoggerHook) OnDone(ctx context.Context, rs *RunState, final StepResult) {
	h.L.InfoContext(ctx, "run finished", "run_id", rs.ID, "steps", rs.Step, "state", final.CurrentState,
		"elapsed", time.Since(rs.Started).Round(time.Millisecond))
}
