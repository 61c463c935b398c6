// Package reasoning holds meta tools that steer the agent loop rather than touch the outside world.
package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
)

// NewFinishTool creates the finish_task tool. Choosing it ends planning and moves the
// agent to summarizing; when executed directly it echoes the final answer back.
func NewFinishTool() *engine.FuncTool {
	return &engine.FuncTool{
		ToolName:    engine.FinishToolName,
		Description: "When all tasks have been completed, call this tool to report the final answer to the user and end the process.",
		SchemaJSON:  `{"type":"object","properties":{"final_answer":{"type":"string","description":"Final response to the user based on the operations."}},"required":["final_answer"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			answer, ok := args["final_answer"].(string)
			if !ok {
				return "", fmt.Errorf("final_answer must be a string")
			}
			if strings.TrimSpace(answer) == "" {
				return "", fmt.Errorf("final_answer cannot be empty")
			}
			return answer, nil
		},
		IsRetryable: true, // Idempotent
		Metadata: engine.ToolMetadata{
			Version:  "1.0.0",
			Category: "meta",
			Tags:     []string{"completion", "idempotent"},
		},
	}
}
