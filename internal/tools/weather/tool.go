package weather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
)

// ToolName is the name the Brain uses to call the weather tool.
const ToolName = "get_todays_weather"

// NewTool creates the get_todays_weather tool backed by table.
func NewTool(table *Table, logger *slog.Logger) *engine.FuncTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &engine.FuncTool{
		ToolName:    ToolName,
		Description: "Get today's weather for the specified city.",
		SchemaJSON:  `{"type":"object","properties":{"city":{"type":"string","description":"The name of the city where you want to check the weather, e.g., 'Tokyo' or 'Shanghai'."}},"required":["city"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			city, ok := args["city"].(string)
			if !ok {
				return "", fmt.Errorf("city must be a string")
			}
			city = strings.TrimSpace(city)
			logger.Debug("weather lookup", "city", city)

			report, ok := table.Lookup(city)
			if !ok {
				return "", fmt.Errorf("Can not find the '%s' weather.", city)
			}
			return fmt.Sprintf("%s's weather is %s and temperature is %s.", city, report.Condition, report.Temperature), nil
		},
		IsRetryable: true,
		Metadata: engine.ToolMetadata{
			Version:  "1.0.0",
			Category: "lookup",
			Tags:     []string{"read-only", "idempotent"},
		},
	}
}
