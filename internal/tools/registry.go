// Package tools wires the built-in tool set into an engine registry.
package tools

import (
	"fmt"
	"log/slog"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
	"github.com/ChamsBouzaiene/planloop/internal/tools/reasoning"
	"github.com/ChamsBouzaiene/planloop/internal/tools/weather"
)

// Config selects how the built-in tools are backed.
type Config struct {
	// WeatherFile is an optional YAML weather table. Empty uses the built-in table.
	WeatherFile string
	// WatchWeather reloads WeatherFile when it changes on disk.
	WatchWeather bool
	Logger       *slog.Logger
}

// NewRegistry creates the registry holding get_todays_weather and finish_task.
// The returned stop function releases the weather file watcher, if one was started.
func NewRegistry(cfg Config) (*engine.Registry, func() error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stop := func() error { return nil }

	reports := weather.DefaultReports()
	if cfg.WeatherFile != "" {
		loaded, err := weather.LoadFile(cfg.WeatherFile)
		if err != nil {
			return nil, stop, err
		}
		reports = loaded
	}
	table := weather.NewTable(reports)

	if cfg.WeatherFile != "" && cfg.WatchWeather {
		fw, err := weather.NewFileWatcher(cfg.WeatherFile, table, logger)
		if err != nil {
			return nil, stop, err
		}
		if err := fw.Start(); err != nil {
			_ = fw.Stop()
			return nil, stop, fmt.Errorf("start weather watcher: %w", err)
		}
		stop = fw.Stop
	}

	reg, err := engine.NewRegistry(
		weather.NewTool(table, logger),
		reasoning.NewFinishTool(),
	)
	if err != nil {
		_ = stop()
		return nil, func() error { return nil }, err
	}
	return reg, stop, nil
}
