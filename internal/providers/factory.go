package providers

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
)

// DefaultProvider is used when LLM_PROVIDER is unset.
const DefaultProvider = "ollama"

type backendKind int

const (
	kindOpenAI backendKind = iota
	kindAnthropic
)

type providerSpec struct {
	kind           backendKind
	envPrefix      string
	defaultModel   string
	defaultBaseURL string
	defaultAPIKey  string // local servers accept any key
	requireBaseURL bool
}

var providerSpecs = map[string]providerSpec{
	"openai":    {kind: kindOpenAI, envPrefix: "OPENAI", defaultModel: "gpt-4o-mini"},
	"anthropic": {kind: kindAnthropic, envPrefix: "ANTHROPIC", defaultModel: "claude-3-5-sonnet-20241022"},
	"kimi": {kind: kindOpenAI, envPrefix: "KIMI", defaultModel: "kimi-k2-250711",
		defaultBaseURL: "https://ark.ap-southeast.bytepluses.com/api/v3"},
	"gemini": {kind: kindOpenAI, envPrefix: "GEMINI", defaultModel: "gemini-1.5-flash",
		defaultBaseURL: "https://generativelanguage.googleapis.com/v1beta/openai"},
	"lmstudio": {kind: kindOpenAI, envPrefix: "LMSTUDIO", defaultModel: "local-model",
		defaultBaseURL: "http://localhost:1234/v1", defaultAPIKey: "lm-studio"},
	"ollama": {kind: kindOpenAI, envPrefix: "OLLAMA", defaultModel: "llama3.1",
		defaultBaseURL: "http://localhost:11434/v1", defaultAPIKey: "ollama"},
	// Ollama on another machine of the local network; the host is mandatory.
	"lan": {kind: kindOpenAI, envPrefix: "LAN", defaultModel: "gemma3:12b",
		defaultAPIKey: "ollama", requireBaseURL: true},
	"glm": {kind: kindOpenAI, envPrefix: "GLM", defaultModel: "glm-4-plus",
		defaultBaseURL: "https://open.bigmodel.cn/api/paas/v4"},
	"minimax": {kind: kindOpenAI, envPrefix: "MINIMAX", defaultModel: "abab6.5s-chat",
		defaultBaseURL: "https://api.minimax.chat/v1"},
	"deepseek": {kind: kindOpenAI, envPrefix: "DEEPSEEK", defaultModel: "deepseek-chat",
		defaultBaseURL: "https://api.deepseek.com/v1"},
	"groq": {kind: kindOpenAI, envPrefix: "GROQ", defaultModel: "llama-3.1-70b-versatile",
		defaultBaseURL: "https://api.groq.com/openai/v1"},
}

// Settings selects and parameterizes a Brain backend.
type Settings struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}

// SupportedProviders lists the known provider names in sorted order.
func SupportedProviders() []string {
	names := make([]string, 0, len(providerSpecs))
	for name := range providerSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SettingsFromEnv reads LLM_PROVIDER and the <PROVIDER>_API_KEY, _MODEL and _BASE_URL variables.
// A nil getenv reads the process environment.
func SettingsFromEnv(getenv func(string) string) Settings {
	if getenv == nil {
		getenv = os.Getenv
	}
	provider := strings.ToLower(strings.TrimSpace(getenv("LLM_PROVIDER")))
	if provider == "" {
		provider = DefaultProvider
	}
	s := Settings{Provider: provider}
	if spec, ok := providerSpecs[provider]; ok {
		s.APIKey = getenv(spec.envPrefix + "_API_KEY")
		s.Model = getenv(spec.envPrefix + "_MODEL")
		s.BaseURL = getenv(spec.envPrefix + "_BASE_URL")
	}
	// The LAN backend takes its host from OLLAMA_HOST.
	if provider == "lan" && s.BaseURL == "" {
		if host := getenv("OLLAMA_HOST"); host != "" {
			s.BaseURL = strings.TrimSuffix(host, "/") + "/v1"
		}
	}
	return s
}

// Resolve fills provider defaults and validates the settings.
func (s Settings) Resolve() (Settings, error) {
	if s.Provider == "" {
		s.Provider = DefaultProvider
	}
	s.Provider = strings.ToLower(s.Provider)
	spec, ok := providerSpecs[s.Provider]
	if !ok {
		return s, fmt.Errorf("unknown LLM_PROVIDER: %s (supported: %s)",
			s.Provider, strings.Join(SupportedProviders(), ", "))
	}
	if s.Model == "" {
		s.Model = spec.defaultModel
	}
	if s.BaseURL == "" {
		s.BaseURL = spec.defaultBaseURL
	}
	if s.BaseURL == "" && spec.requireBaseURL {
		return s, fmt.Errorf("%s_BASE_URL not set", spec.envPrefix)
	}
	if s.APIKey == "" {
		s.APIKey = spec.defaultAPIKey
	}
	if s.APIKey == "" {
		return s, fmt.Errorf("%s_API_KEY not set", spec.envPrefix)
	}
	return s, nil
}

// NewBrain builds the Brain described by s and returns the resolved settings.
func NewBrain(s Settings) (engine.Brain, Settings, error) {
	resolved, err := s.Resolve()
	if err != nil {
		return nil, resolved, err
	}
	opts := []Option{WithTemperature(resolved.Temperature), WithMaxTokens(resolved.MaxTokens)}

	switch providerSpecs[resolved.Provider].kind {
	case kindAnthropic:
		return NewAnthropicBrain(resolved.APIKey, resolved.Model, resolved.BaseURL, opts...), resolved, nil
	default:
		return NewOpenAIBrain(resolved.APIKey, resolved.Model, resolved.BaseURL, opts...), resolved, nil
	}
}

// NewBrainFromEnv is NewBrain(SettingsFromEnv(os.Getenv)).
func NewBrainFromEnv() (engine.Brain, Settings, error) {
	return NewBrain(SettingsFromEnv(nil))
}
