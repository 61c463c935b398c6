package engine

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedBrain replays canned replies in order and records every call.
type scriptedBrain struct {
	mu      sync.Mutex
	replies []string
	errs    map[int]error
	calls   [][]ChatMessage
	hints   []OutputHint
}

func newScriptedBrain(replies ...string) *scriptedBrain {
	return &scriptedBrain{replies: replies, errs: map[int]error{}}
}

func (b *scriptedBrain) Chat(ctx context.Context, msgs []ChatMessage, hint OutputHint) (BrainReply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := len(b.calls)
	cp := make([]ChatMessage, len(msgs))
	copy(cp, msgs)
	b.calls = append(b.calls, cp)
	b.hints = append(b.hints, hint)

	if err := ctx.Err(); err != nil {
		return BrainReply{}, err
	}
	if err, ok := b.errs[i]; ok {
		return BrainReply{}, err
	}
	if i >= len(b.replies) {
		return BrainReply{}, fmt.Errorf("%w: script exhausted at call %d", ErrBrainProtocol, i)
	}
	return BrainReply{Content: b.replies[i], Timestamp: time.Now()}, nil
}

func (b *scriptedBrain) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// repeatBrain returns the same reply forever.
func repeatBrain(reply string) Brain {
	return BrainFunc(func(context.Context, []ChatMessage, OutputHint) (BrainReply, error) {
		return BrainReply{Content: reply, Timestamp: time.Now()}, nil
	})
}

var testWeather = map[string][2]string{
	"Tokyo":    {"Sunny", "28°C"},
	"Shanghai": {"Cloudy", "31°C"},
}

func weatherTool() *FuncTool {
	return &FuncTool{
		ToolName:    "get_todays_weather",
		Description: "Get today's weather for the specified city.",
		SchemaJSON:  `{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`,
		Fn: func(_ context.Context, args map[string]any) (string, error) {
			city, _ := args["city"].(string)
			w, ok := testWeather[city]
			if !ok {
				return "", fmt.Errorf("Can not find the '%s' weather.", city)
			}
			return fmt.Sprintf("%s's weather is %s and temperature is %s.", city, w[0], w[1]), nil
		},
	}
}

func finishTool() *FuncTool {
	return &FuncTool{
		ToolName:    FinishToolName,
		Description: "Report the final answer.",
		SchemaJSON:  `{"type":"object","properties":{"final_answer":{"type":"string"}},"required":["final_answer"]}`,
		Fn: func(_ context.Context, args map[string]any) (string, error) {
			s, _ := args["final_answer"].(string)
			return s, nil
		},
	}
}

func noRetryConfig() *RetryConfig {
	return &RetryConfig{}
}

func newTestAgent(t *testing.T, brain Brain, maxSteps int, opts ...Option) *Agent {
	t.Helper()
	reg, err := NewRegistry(weatherTool(), finishTool())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	cfg := AgentConfig{MaxSteps: maxSteps, RetryConfig: noRetryConfig()}
	a, err := NewAgent(brain, reg, append([]Option{WithConfig(cfg)}, opts...)...)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	return a
}

func collect(seq iter.Seq[StepResult]) []StepResult {
	var out []StepResult
	for s := range seq {
		out = append(out, s)
	}
	return out
}

// checkSingleFinal verifies the stream ends with exactly one final result.
func checkSingleFinal(t *testing.T, results []StepResult) StepResult {
	t.Helper()
	if len(results) == 0 {
		t.Fatal("run produced no results")
	}
	for i, r := range results[:len(results)-1] {
		if r.IsFinal {
			t.Errorf("result %d is final but not last: %+v", i, r)
		}
	}
	last := results[len(results)-1]
	if !last.IsFinal {
		t.Errorf("last result is not final: %+v", last)
	}
	return last
}

func states(results []StepResult) string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = string(r.CurrentState)
	}
	return strings.Join(names, ",")
}

// recordingHook records the callbacks it receives.
type recordingHook struct {
	NopHook
	mu      sync.Mutex
	events  []string
	done    []StepResult
	errs    []error
	retries int
}

func (h *recordingHook) add(e string) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *recordingHook) OnRunStart(context.Context, *RunState) { h.add("start") }
func (h *recordingHook) OnToolCall(_ context.Context, _ *RunState, c ToolCallDecision) {
	h.add("tool:" + c.ToolName)
}
func (h *recordingHook) OnRetryAttempt(context.Context, *RunState, int, int, time.Duration, error) {
	h.mu.Lock()
	h.retries++
	h.mu.Unlock()
}
func (h *recordingHook) OnDone(_ context.Context, _ *RunState, final StepResult) {
	h.mu.Lock()
	h.done = append(h.done, final)
	h.mu.Unlock()
}
func (h *recordingHook) OnError(_ context.Context, _ *RunState, err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}
