package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, *Hook) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, NewHook(tp)
}

func runAgent(t *testing.T, hook *Hook, replies ...string) {
	t.Helper()
	i := 0
	brain := engine.BrainFunc(func(context.Context, []engine.ChatMessage, engine.OutputHint) (engine.BrainReply, error) {
		if i >= len(replies) {
			return engine.BrainReply{}, errors.New("script exhausted")
		}
		i++
		return engine.BrainReply{Content: replies[i-1]}, nil
	})
	echo := &engine.FuncTool{
		ToolName: "echo",
		Fn: func(_ context.Context, args map[string]any) (string, error) {
			return "echoed", nil
		},
	}
	reg, err := engine.NewRegistry(echo, &engine.FuncTool{ToolName: engine.FinishToolName})
	require.NoError(t, err)

	cfg := engine.DefaultAgentConfig()
	cfg.RetryConfig = &engine.RetryConfig{}
	agent, err := engine.NewAgent(brain, reg, engine.WithConfig(cfg), engine.WithHooks(hook))
	require.NoError(t, err)

	for range agent.Run(context.Background(), "say something") {
	}
}

func TestHookSpanTree(t *testing.T) {
	sr, hook := newRecorder(t)
	runAgent(t, hook,
		`{"tool_name":"echo","arguments":{}}`,
		`{"tool_name":"finish_task","arguments":{"final_answer":"echoed"}}`,
		"It echoed.",
	)

	spans := sr.Ended()
	require.Len(t, spans, 5) // 4 steps + run

	run := spans[len(spans)-1]
	assert.Equal(t, "agent.run", run.Name())
	assert.Equal(t, codes.Ok, run.Status().Code)

	names := make([]string, 0, 4)
	for _, s := range spans[:4] {
		names = append(names, s.Name())
		assert.Equal(t, run.SpanContext().SpanID(), s.Parent().SpanID())
		assert.Equal(t, run.SpanContext().TraceID(), s.SpanContext().TraceID())
	}
	assert.Equal(t, []string{
		"agent.step planning",
		"agent.step tool_execution",
		"agent.step planning",
		"agent.step summarizing",
	}, names)

	var toolName string
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "planloop.tool.name" {
			toolName = kv.Value.AsString()
		}
	}
	assert.Equal(t, "echo", toolName)
	assert.Empty(t, hook.runs)
}

func TestHookMarksFailedRun(t *testing.T) {
	sr, hook := newRecorder(t)
	runAgent(t, hook, "not json at all")

	spans := sr.Ended()
	require.NotEmpty(t, spans)
	run := spans[len(spans)-1]
	assert.Equal(t, "agent.run", run.Name())
	assert.Equal(t, codes.Error, run.Status().Code)

	var sawException bool
	for _, ev := range run.Events() {
		if ev.Name == "exception" {
			sawException = true
		}
	}
	assert.True(t, sawException)
}

func TestHookIgnoresUnknownRun(t *testing.T) {
	_, hook := newRecorder(t)
	rs := &engine.RunState{ID: "never-started", Started: time.Now()}

	assert.NotPanics(t, func() {
		hook.OnStateEnter(context.Background(), rs, engine.StatePlanning)
		hook.OnStep(context.Background(), rs, engine.StepResult{CurrentState: engine.StatePlanning})
		hook.OnDone(context.Background(), rs, engine.StepResult{})
	})
}

func TestNewProviderValidatesConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{})
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = NewProvider(context.Background(), Config{Endpoint: "localhost:4318", Protocol: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown OTLP protocol")
}
