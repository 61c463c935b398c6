package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
	anthropic "github.com/liushuangls/go-anthropic/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model          string `json:"model"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newOpenAIServer(t *testing.T, content string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1700000000,"model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, content)
	})
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"gemma3:12b","object":"model"},{"id":"llama3.1","object":"model"}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIBrainChat(t *testing.T) {
	var got capturedRequest
	srv := newOpenAIServer(t, `<think>look it up</think>{"tool_name":"finish_task","arguments":{}}`, &got)
	brain := NewOpenAIBrain("key", "gemma3:12b", srv.URL)

	reply, err := brain.Chat(context.Background(), []engine.ChatMessage{
		{Role: engine.RoleSystem, Content: "plan"},
		{Role: engine.RoleUser, Content: "weather in Tokyo"},
		{Role: engine.RoleAssistant, Content: `{"tool_name":"get_todays_weather"}`},
		{Role: engine.RoleTool, Content: "Tokyo's weather is Sunny"},
	}, engine.HintJSON)
	require.NoError(t, err)

	assert.Equal(t, `{"tool_name":"finish_task","arguments":{}}`, reply.Content)
	assert.Equal(t, "look it up", reply.Thinking)
	assert.Equal(t, int64(1700000000), reply.Timestamp.Unix())

	assert.Equal(t, "gemma3:12b", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "Tool result: Tokyo's weather is Sunny", got.Messages[3].Content)
}

func TestOpenAIBrainPlainHintHasNoResponseFormat(t *testing.T) {
	var got capturedRequest
	srv := newOpenAIServer(t, "It is sunny in Tokyo.", &got)
	brain := NewOpenAIBrain("key", "m", srv.URL)

	reply, err := brain.Chat(context.Background(), []engine.ChatMessage{{Role: engine.RoleUser, Content: "hi"}}, engine.HintNone)
	require.NoError(t, err)
	assert.Equal(t, "It is sunny in Tokyo.", reply.Content)
	assert.Nil(t, got.ResponseFormat)
}

func TestOpenAIBrainEmptyContentIsProtocolError(t *testing.T) {
	srv := newOpenAIServer(t, "<think>only thoughts</think>", nil)
	brain := NewOpenAIBrain("key", "m", srv.URL)

	_, err := brain.Chat(context.Background(), []engine.ChatMessage{{Role: engine.RoleUser, Content: "hi"}}, engine.HintNone)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrBrainProtocol)
	assert.Equal(t, engine.RetryClassNonRetryable, engine.ClassifyBrainError(err))
}

func TestOpenAIBrainServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	t.Cleanup(srv.Close)
	brain := NewOpenAIBrain("key", "m", srv.URL)

	_, err := brain.Chat(context.Background(), []engine.ChatMessage{{Role: engine.RoleUser, Content: "hi"}}, engine.HintNone)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrBrainUnavailable)
	assert.Equal(t, engine.RetryClassRetryable, engine.ClassifyBrainError(err))

	var ee *engine.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, http.StatusServiceUnavailable, ee.HTTPStatus)
}

func TestOpenAIBrainCheckModel(t *testing.T) {
	srv := newOpenAIServer(t, "", nil)

	require.NoError(t, NewOpenAIBrain("key", "gemma3:12b", srv.URL).CheckModel(context.Background()))

	err := NewOpenAIBrain("key", "deepseek-r1:14b", srv.URL).CheckModel(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `model "deepseek-r1:14b" is not available`)
	assert.Contains(t, err.Error(), "llama3.1")
}

func TestToAnthropicMessagesMergesRoles(t *testing.T) {
	system, msgs := toAnthropicMessages([]engine.ChatMessage{
		{Role: engine.RoleSystem, Content: "plan"},
		{Role: engine.RoleUser, Content: "weather in Tokyo"},
		{Role: engine.RoleAssistant, Content: `{"tool_name":"get_todays_weather"}`},
		{Role: engine.RoleTool, Content: "Sunny"},
		{Role: engine.RoleUser, Content: "and Shanghai?"},
	})

	require.Len(t, system, 1)
	assert.Equal(t, "plan", system[0].Text)

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.RoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.RoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.RoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 2)
	require.NotNil(t, msgs[2].Content[0].Text)
	assert.Equal(t, "Tool result: Sunny", *msgs[2].Content[0].Text)
}

func TestSplitThinking(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		thinking string
		answer   string
	}{
		{"no block", "answer", "", "answer"},
		{"block first", "<think>\nhmm\n</think>\n\nanswer", "hmm", "answer"},
		{"unterminated", "prefix <think>still going", "still going", "prefix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thinking, answer := splitThinking(tt.in)
			assert.Equal(t, tt.thinking, thinking)
			assert.Equal(t, tt.answer, answer)
		})
	}
}

func TestExtractErrorMetadata(t *testing.T) {
	status, retryAfter := extractErrorMetadata(errors.New("429 Too Many Requests: Retry-After: 7"))
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "7", retryAfter)

	status, retryAfter = extractErrorMetadata(errors.New("dial tcp: connection refused"))
	assert.Zero(t, status)
	assert.Empty(t, retryAfter)
}

func TestSettingsFromEnv(t *testing.T) {
	env := map[string]string{
		"LLM_PROVIDER":   "DeepSeek",
		"DEEPSEEK_MODEL": "deepseek-reasoner",
	}
	s := SettingsFromEnv(func(k string) string { return env[k] })
	assert.Equal(t, "deepseek", s.Provider)
	assert.Equal(t, "deepseek-reasoner", s.Model)

	_, err := s.Resolve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEEPSEEK_API_KEY not set")

	env["DEEPSEEK_API_KEY"] = "sk-test"
	s = SettingsFromEnv(func(k string) string { return env[k] })
	resolved, err := s.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "https://api.deepseek.com/v1", resolved.BaseURL)
}

func TestSettingsDefaultsToLocalOllama(t *testing.T) {
	s := SettingsFromEnv(func(string) string { return "" })
	resolved, err := s.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "ollama", resolved.Provider)
	assert.Equal(t, "http://localhost:11434/v1", resolved.BaseURL)
	assert.Equal(t, "ollama", resolved.APIKey)
}

func TestLANProviderNeedsHost(t *testing.T) {
	_, _, err := NewBrain(Settings{Provider: "lan"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LAN_BASE_URL not set")

	env := map[string]string{"LLM_PROVIDER": "lan", "OLLAMA_HOST": "http://192.168.1.20:11434/"}
	brain, resolved, err := NewBrain(SettingsFromEnv(func(k string) string { return env[k] }))
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:11434/v1", resolved.BaseURL)
	assert.IsType(t, &OpenAIBrain{}, brain)
}

func TestNewBrainSelectsBackend(t *testing.T) {
	brain, _, err := NewBrain(Settings{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicBrain{}, brain)

	_, _, err = NewBrain(Settings{Provider: "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown LLM_PROVIDER: bogus")
}
