// Package config persists user preferences and layers environment overrides on top of them.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the user's persistent configuration preferences.
type Config struct {
	LLMProvider  string   `json:"llm_provider,omitempty"`  // openai, anthropic, ollama, lan, etc.
	APIKey       string   `json:"api_key,omitempty"`       // The API key for the selected provider
	Model        string   `json:"model,omitempty"`         // Default model name
	BaseURL      string   `json:"base_url,omitempty"`      // Optional override for API base URL
	MaxSteps     int      `json:"max_steps,omitempty"`     // Step budget per run
	BrainTimeout Duration `json:"brain_timeout,omitempty"` // Per Brain call
	ToolTimeout  Duration `json:"tool_timeout,omitempty"`  // Per tool call
	WeatherFile  string   `json:"weather_file,omitempty"`  // YAML weather table; empty uses built-ins
	JournalPath  string   `json:"journal_path,omitempty"`  // SQLite run journal
	LogLevel     string   `json:"log_level,omitempty"`     // debug, info, warn, error
	LogFormat    string   `json:"log_format,omitempty"`    // text or json
	OTLPEndpoint string   `json:"otlp_endpoint,omitempty"` // Traces are exported only when set
}

// Duration is a time.Duration stored as a Go duration string ("90s").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Plain numbers are seconds.
		var secs float64
		if err2 := json.Unmarshal(b, &secs); err2 != nil {
			return fmt.Errorf("duration must be a string like \"30s\": %w", err)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager creates a manager rooted at os.UserConfigDir()/planloop.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return NewManagerAt(filepath.Join(configDir, "planloop")), nil
}

// NewManagerAt creates a manager storing config.json in dir.
func NewManagerAt(dir string) *Manager {
	return &Manager{configDir: dir}
}

// Dir returns the configuration directory.
func (m *Manager) Dir() string { return m.configDir }

// GetConfigPath returns the absolute path to the config.json file.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// Load reads the configuration from disk.
// If the file does not exist, it returns an empty Config and no error.
func (m *Manager) Load() (*Config, error) {
	path := m.GetConfigPath()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to disk with restricted permissions (0600).
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with 0600 permissions (read/write only by owner)
	if err := os.WriteFile(m.GetConfigPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return !os.IsNotExist(err)
}

// ApplyEnv overrides file values with PLANLOOP_* and OTEL_EXPORTER_OTLP_ENDPOINT variables.
// Provider selection and credentials are resolved separately through Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	if v := getenv("PLANLOOP_MAX_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("PLANLOOP_MAX_STEPS must be a positive integer, got %q", v)
		}
		c.MaxSteps = n
	}
	for _, d := range []struct {
		key string
		dst *Duration
	}{
		{"PLANLOOP_BRAIN_TIMEOUT", &c.BrainTimeout},
		{"PLANLOOP_TOOL_TIMEOUT", &c.ToolTimeout},
	} {
		if v := getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", d.key, err)
			}
			*d.dst = Duration(parsed)
		}
	}
	for _, s := range []struct {
		key string
		dst *string
	}{
		{"PLANLOOP_WEATHER_FILE", &c.WeatherFile},
		{"PLANLOOP_JOURNAL", &c.JournalPath},
		{"PLANLOOP_LOG_LEVEL", &c.LogLevel},
		{"PLANLOOP_LOG_FORMAT", &c.LogFormat},
		{"OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTLPEndpoint},
	} {
		if v := getenv(s.key); v != "" {
			*s.dst = v
		}
	}
	return nil
}

// Getenv returns a lookup that prefers the environment and falls back to the stored
// provider credentials (LLM_PROVIDER and <PROVIDER>_API_KEY, _MODEL, _BASE_URL).
func (c *Config) Getenv(getenv func(string) string) func(string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	prefix := strings.ToUpper(c.LLMProvider)
	fallback := map[string]string{"LLM_PROVIDER": c.LLMProvider}
	if prefix != "" {
		fallback[prefix+"_API_KEY"] = c.APIKey
		fallback[prefix+"_MODEL"] = c.Model
		fallback[prefix+"_BASE_URL"] = c.BaseURL
	}
	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback[key]
	}
}

// DefaultJournalPath places the run journal next to config.json.
func (m *Manager) DefaultJournalPath() string {
	return filepath.Join(m.configDir, "journal.db")
}
