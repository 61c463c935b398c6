// Package journal records every streamed step of every run in SQLite for later inspection.
// The journal is write-only from the agent's point of view: nothing in it is ever loaded back
// into an agent's memory.
package journal

import (
	"time"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
)

// RunStatus is the lifecycle state of a journaled run.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusDone    RunStatus = "done"    // Ended in the finished state
	StatusFailed  RunStatus = "failed"  // Ended in the error state
	StatusStopped RunStatus = "stopped" // Consumer stopped reading before the final step
)

// RunMeta is a lightweight representation for listing.
type RunMeta struct {
	ID          string    `json:"id"`
	Request     string    `json:"request"`
	Status      RunStatus `json:"status"`
	Steps       int       `json:"steps"`
	MaxSteps    int       `json:"max_steps"`
	FinalState  string    `json:"final_state,omitempty"`
	FinalAnswer string    `json:"final_answer,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

// Run is a journaled run with its streamed steps in order.
type Run struct {
	RunMeta
	Steps []StepRecord `json:"step_results"`
}

// StepRecord is one streamed Step Result.
type StepRecord struct {
	Seq       int               `json:"seq"`
	Result    engine.StepResult `json:"result"`
	CreatedAt time.Time         `json:"created_at"`
}
