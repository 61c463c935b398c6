package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
	"github.com/ChamsBouzaiene/planloop/internal/tools/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryDefaults(t *testing.T) {
	reg, stop, err := NewRegistry(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stop() })

	assert.Equal(t, []string{weather.ToolName, engine.FinishToolName}, reg.Names())

	res := reg.Invoke(context.Background(), weather.ToolName, map[string]any{"city": "Tokyo"})
	require.NoError(t, res.Err)
	assert.Equal(t, "Tokyo's weather is Sunny and temperature is 28°C.", res.Output)
}

func TestNewRegistryWeatherFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cities:\n  Osaka: {condition: Rainy, temperature: \"22°C\"}\n"), 0o600))

	reg, stop, err := NewRegistry(Config{WeatherFile: path, WatchWeather: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stop() })

	res := reg.Invoke(context.Background(), weather.ToolName, map[string]any{"city": "Osaka"})
	require.NoError(t, res.Err)
	assert.Equal(t, "Osaka's weather is Rainy and temperature is 22°C.", res.Output)

	res = reg.Invoke(context.Background(), weather.ToolName, map[string]any{"city": "Tokyo"})
	assert.Error(t, res.Err)
}

func TestNewRegistryMissingWeatherFile(t *testing.T) {
	_, stop, err := NewRegistry(Config{WeatherFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	assert.NoError(t, stop())
}
