package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StepResult describes one executed transition of the state machine.
// When IsFinal is true, FinalAnswer is the run's output and nothing follows it.
type StepResult struct {
	CurrentState StateName      `json:"current_state"`
	ToolName     string         `json:"tool_name,omitempty"`
	ToolInput    map[string]any `json:"tool_input,omitempty"`
	ToolOutput   string         `json:"tool_output,omitempty"`
	IsFinal      bool           `json:"is_final"`
	FinalAnswer  string         `json:"final_answer,omitempty"`
}

// String renders the console form of the step.
func (s StepResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[State: %s]", s.CurrentState)
	if s.IsFinal {
		fmt.Fprintf(&b, " Final answer: %s", s.FinalAnswer)
		return b.String()
	}
	if s.ToolName != "" {
		fmt.Fprintf(&b, "\n  Action: %s", s.ToolName)
		if len(s.ToolInput) > 0 {
			in, err := json.Marshal(s.ToolInput)
			if err != nil {
				in = []byte(fmt.Sprint(s.ToolInput))
			}
			fmt.Fprintf(&b, "\n  Input: %s", in)
		}
	}
	if s.ToolOutput != "" {
		fmt.Fprintf(&b, "\n  Result: %s", s.ToolOutput)
	}
	return b.String()
}
