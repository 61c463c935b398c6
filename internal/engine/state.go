package engine

import (
	"context"
)

// StateName identifies a state of the agent state machine.
type StateName string

const (
	StatePlanning      StateName = "planning"
	StateToolExecution StateName = "tool_execution"
	StateSummarizing   StateName = "summarizing"
	StateFinished      StateName = "finished"
	StateError         StateName = "error"
)

// FinishToolName is the terminal sentinel the planner uses to end a task.
const FinishToolName = "finish_task"

// Terminal reports whether the state ends a run.
func (n StateName) Terminal() bool {
	return n == StateFinished || n == StateError
}

// State is one node of the state machine. Execute must not panic; every
// failure is expressed as a transition to StateError with an ErrorMessage.
type State interface {
	Name() StateName
	Execute(ctx context.Context, a *Agent, in Context) (StateName, Context)
}

// StateTable maps names to state implementations.
type StateTable map[StateName]State

// DefaultStates returns the built-in state table.
func DefaultStates() StateTable {
	return StateTable{
		StatePlanning:      PlanningState{},
		StateToolExecution: ToolExecutionState{},
		StateSummarizing:   SummarizingState{},
		StateFinished:      FinishedState{},
		StateError:         ErrorState{},
	}
}
