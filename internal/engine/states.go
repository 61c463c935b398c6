package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/planloop/internal/prompts"
)

const (
	msgNoToolCall      = "No valid tool call provided from the planning state."
	msgNoToolName      = "Planning state decided to use a tool but did not provide a name."
	msgDefaultFinished = "Task is done."
	msgUnknownError    = "Unknown error occurs"
)

// PlanningState asks the Brain for the next tool call.
type PlanningState struct{}

func (PlanningState) Name() StateName { return StatePlanning }

func (PlanningState) Execute(ctx context.Context, a *Agent, _ Context) (StateName, Context) {
	system, err := a.renderPrompt(prompts.PlanningID, map[string]string{
		prompts.VarToolsJSON: a.tools.DescribeJSON(),
	})
	if err != nil {
		return a.fail(ctx, StatePlanning, "prompt", err, "Could not build the planning prompt: %v")
	}

	msgs := append([]ChatMessage{{Role: RoleSystem, Content: system}}, a.memory.Entries()...)
	reply, err := a.Ask(ctx, StatePlanning, msgs, HintJSON)
	if err != nil {
		return a.fail(ctx, StatePlanning, "brain_call", err, "Brain call failed during planning: %v")
	}

	decision, err := ParseDecision(reply.Content)
	if err != nil {
		return a.fail(ctx, StatePlanning, "parse", err, "Could not understand the planning decision: %v")
	}

	normalized, err := json.Marshal(decision)
	if err != nil {
		return a.fail(ctx, StatePlanning, "parse", err, "Could not encode the planning decision: %v")
	}
	_ = a.memory.Append(RoleAssistant, string(normalized))

	if decision.ToolName == a.config.FinishToolName {
		return StateSummarizing, Context{ToolCall: &decision}
	}
	return StateToolExecution, Context{ToolCall: &decision}
}

// ToolExecutionState runs the decided tool and records the observation.
type ToolExecutionState struct{}

func (ToolExecutionState) Name() StateName { return StateToolExecution }

func (ToolExecutionState) Execute(ctx context.Context, a *Agent, in Context) (StateName, Context) {
	if in.ToolCall == nil {
		return StateError, Context{ErrorMessage: msgNoToolCall}
	}
	call := *in.ToolCall
	if call.ToolName == "" {
		return StateError, Context{ErrorMessage: msgNoToolName}
	}

	rs := a.currentRun()
	a.hooks.OnToolCall(ctx, rs, call)
	res := a.invokeTool(ctx, call)
	a.hooks.OnToolResult(ctx, rs, res)

	_ = a.memory.Append(RoleTool, res.String())
	return StatePlanning, Context{}
}

// SummarizingState turns the run's observations into a natural-language answer.
type SummarizingState struct{}

func (SummarizingState) Name() StateName { return StateSummarizing }

func (SummarizingState) Execute(ctx context.Context, a *Agent, in Context) (StateName, Context) {
	entries := a.memory.Entries()
	reqIdx, req := a.memory.LastOfRole(RoleUser)

	system, err := a.renderPrompt(prompts.SummarizingID, map[string]string{
		prompts.VarUserRequest: req.Content,
	})
	if err != nil {
		return a.fail(ctx, StateSummarizing, "prompt", err, "Could not build the summarizing prompt: %v")
	}

	msgs := []ChatMessage{{Role: RoleSystem, Content: system}}
	if reqIdx >= 0 {
		msgs = append(msgs, req)
	}
	msgs = append(msgs, CurateObservations(entries[reqIdx+1:])...)

	reply, err := a.Ask(ctx, StateSummarizing, msgs, HintNone)
	if err != nil {
		return a.fail(ctx, StateSummarizing, "brain_call", err, "Brain call failed during summarizing: %v")
	}

	answer := strings.TrimSpace(reply.Content)
	if answer == "" && in.ToolCall != nil {
		if s, ok := in.ToolCall.Arguments["final_answer"].(string); ok {
			answer = strings.TrimSpace(s)
		}
	}
	if answer == "" {
		return a.fail(ctx, StateSummarizing, "brain_call", ErrBrainProtocol, "Brain returned an empty summary: %v")
	}
	return StateFinished, Context{FinalAnswer: answer}
}

// CurateObservations keeps assistant and tool entries, dropping exact-content
// repeats while preserving first-seen order.
func CurateObservations(entries []ChatMessage) []ChatMessage {
	seen := make(map[string]struct{}, len(entries))
	out := make([]ChatMessage, 0, len(entries))
	for _, e := range entries {
		if e.Role != RoleAssistant && e.Role != RoleTool {
			continue
		}
		if _, dup := seen[e.Content]; dup {
			continue
		}
		seen[e.Content] = struct{}{}
		out = append(out, e)
	}
	return out
}

// FinishedState surfaces the final answer.
type FinishedState struct{}

func (FinishedState) Name() StateName { return StateFinished }

func (FinishedState) Execute(_ context.Context, _ *Agent, in Context) (StateName, Context) {
	if in.FinalAnswer == "" {
		return StateFinished, Context{FinalAnswer: msgDefaultFinished}
	}
	return StateFinished, Context{FinalAnswer: in.FinalAnswer}
}

// ErrorState surfaces the error message as the final answer.
type ErrorState struct{}

func (ErrorState) Name() StateName { return StateError }

func (ErrorState) Execute(_ context.Context, _ *Agent, in Context) (StateName, Context) {
	msg := in.ErrorMessage
	if msg == "" {
		msg = msgUnknownError
	}
	return StateError, Context{ErrorMessage: msg, FinalAnswer: fmt.Sprintf("Task terminated due to error: %s", msg)}
}
