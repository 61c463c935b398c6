package engine

import (
	"context"
	"testing"
)

func TestCurateObservations(t *testing.T) {
	entries := []ChatMessage{
		{Role: RoleAssistant, Content: "A"},
		{Role: RoleAssistant, Content: "B"},
		{Role: RoleUser, Content: "ignored"},
		{Role: RoleAssistant, Content: "A"},
		{Role: RoleTool, Content: "C"},
	}

	got := CurateObservations(entries)
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("CurateObservations() = %v, want %v", got, want)
	}
	for i, m := range got {
		if m.Content != want[i] {
			t.Errorf("CurateObservations()[%d] = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestTerminalStates(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name       string
		state      State
		in         Context
		wantNext   StateName
		wantAnswer string
	}{
		{name: "finished with answer", state: FinishedState{}, in: Context{FinalAnswer: "42"}, wantNext: StateFinished, wantAnswer: "42"},
		{name: "finished placeholder", state: FinishedState{}, wantNext: StateFinished, wantAnswer: "Task is done."},
		{name: "error with message", state: ErrorState{}, in: Context{ErrorMessage: "bad reply"}, wantNext: StateError, wantAnswer: "Task terminated due to error: bad reply"},
		{name: "error default", state: ErrorState{}, wantNext: StateError, wantAnswer: "Task terminated due to error: Unknown error occurs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, out := tt.state.Execute(ctx, nil, tt.in)
			if next != tt.wantNext || out.FinalAnswer != tt.wantAnswer {
				t.Errorf("Execute() = (%s, %q), want (%s, %q)", next, out.FinalAnswer, tt.wantNext, tt.wantAnswer)
			}
		})
	}
}

func TestToolExecutionState_InvalidDecision(t *testing.T) {
	a := newTestAgent(t, repeatBrain("{}"), 1)
	tests := []struct {
		name string
		in   Context
		want string
	}{
		{name: "no decision", in: Context{}, want: "No valid tool call provided from the planning state."},
		{name: "no name", in: Context{ToolCall: &ToolCallDecision{Arguments: map[string]any{}}}, want: "Planning state decided to use a tool but did not provide a name."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, out := ToolExecutionState{}.Execute(context.Background(), a, tt.in)
			if next != StateError || out.ErrorMessage != tt.want {
				t.Errorf("Execute() = (%s, %q), want (error, %q)", next, out.ErrorMessage, tt.want)
			}
			if a.Memory().Len() != 0 {
				t.Error("invalid decisions must not touch memory")
			}
		})
	}
}

func TestPlanningState_RoutesFinishToSummarizing(t *testing.T) {
	tests := []struct {
		reply string
		want  StateName
	}{
		{reply: tokyoCall, want: StateToolExecution},
		{reply: finishCall, want: StateSummarizing},
		{reply: "nope", want: StateError},
	}
	for _, tt := range tests {
		a := newTestAgent(t, repeatBrain(tt.reply), 1)
		_ = a.Memory().Append(RoleUser, "Tokyo?")
		next, _ := PlanningState{}.Execute(context.Background(), a, Context{})
		if next != tt.want {
			t.Errorf("planning(%q) -> %s, want %s", tt.reply, next, tt.want)
		}
	}
}

func TestSummarizingState_FallsBackToFinishArgument(t *testing.T) {
	a := newTestAgent(t, repeatBrain("  "), 1)
	_ = a.Memory().Append(RoleUser, "Tokyo?")

	in := Context{ToolCall: &ToolCallDecision{ToolName: FinishToolName, Arguments: map[string]any{"final_answer": "Sunny"}}}
	next, out := SummarizingState{}.Execute(context.Background(), a, in)
	if next != StateFinished || out.FinalAnswer != "Sunny" {
		t.Errorf("Execute() = (%s, %q), want (finished, Sunny)", next, out.FinalAnswer)
	}

	next, out = SummarizingState{}.Execute(context.Background(), a, Context{})
	if next != StateError {
		t.Errorf("empty summary without fallback -> %s (%q), want error", next, out.ErrorMessage)
	}
}
