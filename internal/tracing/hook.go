package tracing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
)

const (
	instrumentationName = "github.com/ChamsBouzaiene/planloop/internal/engine"
	previewLen          = 500
)

type runSpans struct {
	ctx  context.Context // carries the run span
	run  trace.Span
	step trace.Span // nil between steps
}

// Hook is an engine.Hook that turns a run into a span tree.
type Hook struct {
	engine.NopHook

	tracer trace.Tracer

	mu   sync.Mutex
	runs map[string]*runSpans
}

var _ engine.Hook = (*Hook)(nil)

// NewHook creates a tracing hook using tp.
func NewHook(tp trace.TracerProvider) *Hook {
	return &Hook{
		tracer: tp.Tracer(instrumentationName),
		runs:   make(map[string]*runSpans),
	}
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen] + "..."
}

func (h *Hook) get(rs *engine.RunState) *runSpans {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs[rs.ID]
}

func (h *Hook) OnRunStart(ctx context.Context, rs *engine.RunState) {
	ctx, span := h.tracer.Start(ctx, "agent.run",
		trace.WithTimestamp(rs.Started),
		trace.WithAttributes(
			attribute.String("planloop.run_id", rs.ID),
			attribute.Int("planloop.max_steps", rs.MaxSteps),
			attribute.String("planloop.request", preview(rs.Request)),
		),
	)
	h.mu.Lock()
	h.runs[rs.ID] = &runSpans{ctx: ctx, run: span}
	h.mu.Unlock()
}

func (h *Hook) OnStateEnter(_ context.Context, rs *engine.RunState, state engine.StateName) {
	r := h.get(rs)
	if r == nil {
		return
	}
	if r.step != nil {
		r.step.End()
	}
	_, r.step = h.tracer.Start(r.ctx, "agent.step "+string(state),
		trace.WithAttributes(
			attribute.Int("planloop.step", rs.Step),
			attribute.String("planloop.state", string(state)),
		),
	)
}

func (h *Hook) OnBeforeBrain(_ context.Context, rs *engine.RunState, msgs []engine.ChatMessage, hint engine.OutputHint) {
	if r := h.get(rs); r != nil && r.step != nil {
		r.step.AddEvent("brain.request", trace.WithAttributes(
			attribute.Int("planloop.brain.messages", len(msgs)),
			attribute.Int("planloop.brain.tokens_estimate", engine.EstimateMessageTokens(msgs)),
			attribute.String("planloop.brain.hint", string(hint)),
		))
	}
}

func (h *Hook) OnAfterBrain(_ context.Context, rs *engine.RunState, reply engine.BrainReply, err error) {
	r := h.get(rs)
	if r == nil || r.step == nil {
		return
	}
	if err != nil {
		r.step.RecordError(err)
		return
	}
	r.step.AddEvent("brain.reply", trace.WithAttributes(
		attribute.String("planloop.brain.reply", preview(reply.Content)),
		attribute.Int("planloop.brain.thinking_chars", len(reply.Thinking)),
	))
}

func (h *Hook) OnToolCall(_ context.Context, rs *engine.RunState, call engine.ToolCallDecision) {
	if r := h.get(rs); r != nil && r.step != nil {
		r.step.SetAttributes(attribute.String("planloop.tool.name", call.ToolName))
	}
}

func (h *Hook) OnToolResult(_ context.Context, rs *engine.RunState, res engine.ToolResult) {
	r := h.get(rs)
	if r == nil || r.step == nil {
		return
	}
	r.step.SetAttributes(attribute.Int64("planloop.tool.duration_ms", res.Duration.Milliseconds()))
	if res.Err != nil {
		r.step.RecordError(res.Err)
		r.step.SetAttributes(attribute.Bool("planloop.tool.error", true))
		return
	}
	r.step.SetAttributes(attribute.String("planloop.tool.output", preview(res.Output)))
}

func (h *Hook) OnRetryAttempt(_ context.Context, rs *engine.RunState, attempt, maxAttempts int, delay time.Duration, err error) {
	if r := h.get(rs); r != nil && r.step != nil {
		r.step.AddEvent("retry", trace.WithAttributes(
			attribute.Int("planloop.retry.attempt", attempt),
			attribute.Int("planloop.retry.max", maxAttempts),
			attribute.Int64("planloop.retry.delay_ms", delay.Milliseconds()),
			attribute.String("planloop.retry.error", err.Error()),
		))
	}
}

func (h *Hook) OnStep(_ context.Context, rs *engine.RunState, step engine.StepResult) {
	r := h.get(rs)
	if r == nil {
		return
	}
	if step.IsFinal {
		// The harvest step has no state entry of its own.
		r.run.AddEvent("final", trace.WithAttributes(
			attribute.String("planloop.state", string(step.CurrentState)),
		))
		return
	}
	if r.step == nil {
		return
	}
	if step.ToolName != "" {
		r.step.SetAttributes(attribute.String("planloop.step.action", step.ToolName))
	}
	r.step.End()
	r.step = nil
}

func (h *Hook) OnError(_ context.Context, rs *engine.RunState, err error) {
	if r := h.get(rs); r != nil {
		r.run.RecordError(err)
	}
}

func (h *Hook) OnDone(_ context.Context, rs *engine.RunState, final engine.StepResult) {
	h.mu.Lock()
	r := h.runs[rs.ID]
	delete(h.runs, rs.ID)
	h.mu.Unlock()
	if r == nil {
		return
	}
	if r.step != nil {
		r.step.End()
	}

	r.run.SetAttributes(
		attribute.Int("planloop.steps", rs.Step),
		attribute.String("planloop.final_state", string(final.CurrentState)),
		attribute.String("planloop.final_answer", preview(final.FinalAnswer)),
	)
	switch {
	case !final.IsFinal:
		r.run.SetStatus(codes.Unset, "stopped by consumer")
	case final.CurrentState == engine.StateError:
		r.run.SetStatus(codes.Error, final.FinalAnswer)
	default:
		r.run.SetStatus(codes.Ok, "")
	}
	r.run.End()
}
