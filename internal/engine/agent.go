// Package engine provides the planning agent state machine.
package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ChamsBouzaiene/planloop/internal/prompts"
)

// Agent owns one memory log and drives the state machine over it.
// Only one Run may be active at a time; sequential runs share memory.
type Agent struct {
	brain   Brain
	tools   *Registry
	memory  *Memory
	states  StateTable
	prompts *prompts.PromptRegistry
	config  AgentConfig
	hooks   Hooks
	logger  *slog.Logger

	running atomic.Bool
	run     *RunState // active run, touched only by the loop goroutine

	mu      sync.Mutex
	lastRun *RunState
}

// Option configures an Agent.
type Option func(*Agent)

// WithConfig replaces the agent configuration. Zero fields take defaults.
func WithConfig(cfg AgentConfig) Option {
	return func(a *Agent) { a.config = cfg }
}

// WithHooks appends observers.
func WithHooks(hooks ...Hook) Option {
	return func(a *Agent) { a.hooks = append(a.hooks, hooks...) }
}

// WithStates overrides entries of the default state table.
func WithStates(states StateTable) Option {
	return func(a *Agent) {
		for name, s := range states {
			a.states[name] = s
		}
	}
}

// WithPrompts sets the prompt registry used by planning and summarizing.
func WithPrompts(r *prompts.PromptRegistry) Option {
	return func(a *Agent) { a.prompts = r }
}

// WithLogger sets the logger used for internal diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithMemory seeds the agent with an existing memory log.
func WithMemory(m *Memory) Option {
	return func(a *Agent) { a.memory = m }
}

// NewAgent creates an agent around a Brain and a tool registry.
func NewAgent(brain Brain, reg *Registry, opts ...Option) (*Agent, error) {
	if brain == nil {
		return nil, fmt.Errorf("brain not configured")
	}
	if reg == nil {
		return nil, fmt.Errorf("tool registry not configured")
	}
	a := &Agent{
		brain:   brain,
		memory:  NewMemory(),
		states:  DefaultStates(),
		prompts: prompts.DefaultRegistry(),
		config:  DefaultAgentConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.config = a.config.withDefaults()
	a.tools = reg.WithTimeout(a.config.ToolTimeout)
	if a.memory == nil {
		a.memory = NewMemory()
	}
	return a, nil
}

// Memory returns the agent's memory log.
func (a *Agent) Memory() *Memory { return a.memory }

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *Registry { return a.tools }

// Config returns the effective configuration.
func (a *Agent) Config() AgentConfig { return a.config }

// LastRun returns a snapshot of the most recent run's bookkeeping, or nil.
func (a *Agent) LastRun() *RunState {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastRun == nil {
		return nil
	}
	cp := *a.lastRun
	return &cp
}

func (a *Agent) publish(rs *RunState) {
	cp := *rs
	a.mu.Lock()
	a.lastRun = &cp
	a.mu.Unlock()
}

func (a *Agent) currentRun() *RunState {
	if a.run == nil {
		return &RunState{MaxSteps: a.config.MaxSteps}
	}
	return a.run
}

// Run streams the steps of one task. Nothing executes until the sequence is
// ranged over; breaking out of the range stops the loop after the current step.
// The sequence always ends with exactly one result whose IsFinal is true,
// unless the consumer stops early.
func (a *Agent) Run(ctx context.Context, request string) iter.Seq[StepResult] {
	return func(yield func(StepResult) bool) {
		if !a.running.CompareAndSwap(false, true) {
			yield(StepResult{
				CurrentState: StateError,
				IsFinal:      true,
				FinalAnswer:  fmt.Sprintf("Task terminated due to error: %v", ErrAgentBusy),
			})
			return
		}
		defer a.running.Store(false)

		rs := &RunState{
			ID:       uuid.NewString(),
			Request:  request,
			Current:  StatePlanning,
			MaxSteps: a.config.MaxSteps,
			Started:  time.Now(),
		}
		a.run = rs
		defer func() { a.run = nil }()

		var last StepResult
		emit := func(s StepResult) bool {
			last = s
			a.publish(rs)
			a.hooks.OnStep(ctx, rs, s)
			return yield(s)
		}
		a.hooks.OnRunStart(ctx, rs)
		defer func() { a.hooks.OnDone(ctx, rs, last) }()

		_ = a.memory.Append(RoleUser, request)

		var (
			sc      Context
			current = a.states[StatePlanning]
		)
		if current == nil {
			emit(unknownStateResult(StatePlanning))
			return
		}

		for rs.Step < rs.MaxSteps {
			if err := ctx.Err(); err != nil {
				current = a.states[StateError]
				sc = Context{ErrorMessage: fmt.Sprintf("Run cancelled: %v", err)}
				a.hooks.OnError(ctx, rs, err)
				break
			}

			rs.Step++
			name := current.Name()
			rs.Current = name
			before := a.memory.Len()

			a.hooks.OnStateEnter(ctx, rs, name)
			var next StateName
			next, sc = a.execState(ctx, current, sc)

			if !emit(a.stepResult(name, sc, before)) {
				return
			}

			st, ok := a.states[next]
			if !ok {
				emit(unknownStateResult(next))
				return
			}
			current = st
			if next.Terminal() {
				break
			}
		}

		if !current.Name().Terminal() {
			// Budget exhausted without a natural terminal transition.
			current = a.states[StateFinished]
			if sc.FinalAnswer == "" {
				sc = Context{FinalAnswer: fmt.Sprintf("Stopped after reaching the step limit (%d) before the task was completed.", rs.MaxSteps)}
			}
		}

		rs.Current = current.Name()
		_, final := a.execState(ctx, current, sc)
		emit(StepResult{
			CurrentState: current.Name(),
			IsFinal:      true,
			FinalAnswer:  final.FinalAnswer,
		})
	}
}

func unknownStateResult(name StateName) StepResult {
	return StepResult{
		CurrentState: StateError,
		IsFinal:      true,
		FinalAnswer:  fmt.Sprintf("Error: Try to move to an unknown state: '%s'", name),
	}
}

// execState runs one state, turning a panic in a custom state into an error transition.
func (a *Agent) execState(ctx context.Context, s State, in Context) (next StateName, out Context) {
	defer func() {
		if v := recover(); v != nil {
			a.logger.Error("state panicked", "state", s.Name(), "panic", v)
			next, out = StateError, Context{ErrorMessage: fmt.Sprintf("State %s failed: %v", s.Name(), v)}
		}
	}()
	return s.Execute(ctx, a, in)
}

func (a *Agent) stepResult(name StateName, sc Context, memBefore int) StepResult {
	s := StepResult{CurrentState: name}
	if sc.ToolCall != nil {
		s.ToolName = sc.ToolCall.ToolName
		s.ToolInput = sc.ToolCall.Arguments
	}
	if a.memory.Len() > memBefore {
		if e, ok := a.memory.Last(); ok && e.Role == RoleTool {
			s.ToolOutput = e.Content
		}
	}
	return s
}

// fail reports err to hooks and returns the error transition with a readable message.
func (a *Agent) fail(ctx context.Context, state StateName, op string, err error, format string) (StateName, Context) {
	rs := a.currentRun()
	a.hooks.OnError(ctx, rs, &StepError{Err: err, Step: rs.Step, State: state, Operation: op})
	return StateError, Context{ErrorMessage: fmt.Sprintf(format, err)}
}

func (a *Agent) renderPrompt(id string, vars map[string]string) (string, error) {
	b, err := prompts.NewPromptBuilder(a.prompts, id, a.config.PromptVersion)
	if err != nil && a.config.PromptVersion != "" {
		b, err = prompts.NewPromptBuilder(a.prompts, id, "")
	}
	if err != nil {
		return "", err
	}
	for k, v := range vars {
		b.SetVariable(k, v)
	}
	return b.Build()
}

// Ask sends messages to the Brain with the configured timeout and retry policy.
func (a *Agent) Ask(ctx context.Context, state StateName, msgs []ChatMessage, hint OutputHint) (BrainReply, error) {
	rs := a.currentRun()
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return BrainReply{}, err
		}
	}

	a.logger.DebugContext(ctx, "asking brain", "state", state, "messages", len(msgs), "hint", string(hint))
	a.hooks.OnBeforeBrain(ctx, rs, msgs, hint)
	policy := a.config.RetryConfig.BrainPolicy
	reply, err := RetryBrainCall(ctx, policy, a.brain, a.config.BrainTimeout, msgs, hint,
		func(attempt int, delay time.Duration, err error) {
			a.hooks.OnRetryAttempt(ctx, rs, attempt, policy.MaxRetries, delay, err)
		},
	)
	if IsRetryExhausted(err) {
		a.hooks.OnRetryExhausted(ctx, rs, err)
	}
	a.hooks.OnAfterBrain(ctx, rs, reply, err)
	if err != nil {
		return BrainReply{}, err
	}
	return reply, nil
}

// invokeTool runs a tool through the registry with the tool retry policy.
func (a *Agent) invokeTool(ctx context.Context, call ToolCallDecision) ToolResult {
	rs := a.currentRun()
	policy := a.config.RetryConfig.ToolPolicy
	res, err := RetryToolCall(ctx, policy, a.tools, call,
		func(attempt int, delay time.Duration, err error) {
			a.hooks.OnRetryAttempt(ctx, rs, attempt, policy.MaxRetries, delay, err)
		},
	)
	if IsRetryExhausted(err) {
		a.hooks.OnRetryExhausted(ctx, rs, err)
	}
	return res
}
