package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/planloop/internal/engine"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// toolResultPrefix marks tool observations for backends that only know user/assistant turns.
const toolResultPrefix = "Tool result: "

// OpenAIBrain implements engine.Brain against OpenAI and any OpenAI-compatible endpoint
// (Ollama, DeepSeek, Kimi, Gemini, Groq, LM Studio...).
type OpenAIBrain struct {
	client  *openai.Client
	model   string
	baseURL string
	opts    options
}

// NewOpenAIBrain creates a Brain for the given model. An empty baseURL targets api.openai.com.
func NewOpenAIBrain(apiKey, model, baseURL string, opts ...Option) *OpenAIBrain {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIBrain{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		baseURL: baseURL,
		opts:    applyOptions(opts),
	}
}

// Model returns the configured model name.
func (b *OpenAIBrain) Model() string { return b.model }

// Chat implements engine.Brain.
func (b *OpenAIBrain) Chat(ctx context.Context, messages []engine.ChatMessage, hint engine.OutputHint) (engine.BrainReply, error) {
	req := openai.ChatCompletionRequest{
		Model:    b.model,
		Messages: toOpenAIMessages(messages),
	}
	if hint == engine.HintJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if b.opts.maxTokens > 0 {
		req.MaxTokens = b.opts.maxTokens
	}
	if b.opts.temperature > 0 {
		temperature := b.opts.temperature
		req.Temperature = &temperature
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		httpStatus, retryAfter := extractErrorMetadata(err)
		return engine.BrainReply{}, engine.WrapBrainError(err, httpStatus, retryAfter)
	}

	if len(resp.Choices) == 0 {
		return engine.BrainReply{}, engine.WrapBrainError(
			fmt.Errorf("%w: empty response from %s", engine.ErrBrainProtocol, b.endpoint()),
			http.StatusOK, "")
	}

	thinking, answer := splitThinking(resp.Choices[0].Message.Content)
	if answer == "" {
		return engine.BrainReply{}, engine.WrapBrainError(
			fmt.Errorf("%w: %s returned no content", engine.ErrBrainProtocol, b.endpoint()),
			http.StatusOK, "")
	}

	ts := time.Now()
	if resp.Created > 0 {
		ts = time.Unix(resp.Created, 0)
	}

	return engine.BrainReply{
		Content:   answer,
		Thinking:  thinking,
		Timestamp: ts,
	}, nil
}

// CheckModel verifies that the configured model is served by the endpoint.
func (b *OpenAIBrain) CheckModel(ctx context.Context) error {
	list, err := b.client.ListModels(ctx)
	if err != nil {
		httpStatus, retryAfter := extractErrorMetadata(err)
		return engine.WrapBrainError(err, httpStatus, retryAfter)
	}
	available := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if m.ID == b.model {
			return nil
		}
		available = append(available, m.ID)
	}
	return fmt.Errorf("model %q is not available on %s (found: %s)",
		b.model, b.endpoint(), strings.Join(available, ", "))
}

func (b *OpenAIBrain) endpoint() string {
	if b.baseURL == "" {
		return "OpenAI"
	}
	return b.baseURL
}

func toOpenAIMessages(messages []engine.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case engine.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Content,
			})
		case engine.RoleUser:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		case engine.RoleAssistant:
			// Some compatible servers reject empty assistant content.
			content := msg.Content
			if content == "" {
				content = " "
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			})
		case engine.RoleTool:
			// Observations are not answers to native tool calls, so they travel as user turns.
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: toolResultPrefix + msg.Content,
			})
		}
	}
	return out
}
