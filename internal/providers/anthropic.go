package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/planloop/internal/engine"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const (
	anthropicDefaultMaxTokens = 4096
	jsonOnlyInstruction       = "Respond with a single JSON object and nothing else. Do not wrap it in markdown."
)

// AnthropicBrain implements engine.Brain using the Anthropic Messages API.
type AnthropicBrain struct {
	client *anthropic.Client
	model  string
	opts   options
}

// NewAnthropicBrain creates a Brain for the given Claude model.
func NewAnthropicBrain(apiKey, model, baseURL string, opts ...Option) *AnthropicBrain {
	var clientOpts []anthropic.ClientOption
	if baseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(baseURL))
	}

	return &AnthropicBrain{
		client: anthropic.NewClient(apiKey, clientOpts...),
		model:  model,
		opts:   applyOptions(opts),
	}
}

// Model returns the configured model name.
func (b *AnthropicBrain) Model() string { return b.model }

// Chat implements engine.Brain.
func (b *AnthropicBrain) Chat(ctx context.Context, messages []engine.ChatMessage, hint engine.OutputHint) (engine.BrainReply, error) {
	systemParts, msgs := toAnthropicMessages(messages)
	if hint == engine.HintJSON {
		systemParts = append(systemParts, anthropic.MessageSystemPart{
			Type: "text",
			Text: jsonOnlyInstruction,
		})
	}

	maxTokens := anthropicDefaultMaxTokens
	if b.opts.maxTokens > 0 {
		maxTokens = b.opts.maxTokens
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(b.model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	if b.opts.temperature > 0 {
		temperature := b.opts.temperature
		req.Temperature = &temperature
	}
	if len(systemParts) > 0 {
		req.MultiSystem = systemParts
	}

	resp, err := b.client.CreateMessages(ctx, req)
	if err != nil {
		httpStatus, retryAfter := extractErrorMetadata(err)
		return engine.BrainReply{}, engine.WrapBrainError(err, httpStatus, retryAfter)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}

	thinking, answer := splitThinking(text.String())
	if answer == "" {
		return engine.BrainReply{}, engine.WrapBrainError(
			fmt.Errorf("%w: anthropic returned no text content (stop reason %q)", engine.ErrBrainProtocol, resp.StopReason),
			http.StatusOK, "")
	}

	return engine.BrainReply{
		Content:   answer,
		Thinking:  thinking,
		Timestamp: time.Now(),
	}, nil
}

// toAnthropicMessages splits out system parts and merges consecutive same-role turns,
// which the Messages API requires to alternate.
func toAnthropicMessages(messages []engine.ChatMessage) ([]anthropic.MessageSystemPart, []anthropic.Message) {
	var systemParts []anthropic.MessageSystemPart
	var out []anthropic.Message

	for _, msg := range messages {
		var role anthropic.ChatRole
		content := msg.Content
		switch msg.Role {
		case engine.RoleSystem:
			systemParts = append(systemParts, anthropic.MessageSystemPart{
				Type: "text",
				Text: msg.Content,
			})
			continue
		case engine.RoleUser:
			role = anthropic.RoleUser
		case engine.RoleAssistant:
			role = anthropic.RoleAssistant
		case engine.RoleTool:
			role = anthropic.RoleUser
			content = toolResultPrefix + msg.Content
		default:
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		block := anthropic.NewTextMessageContent(content)
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, block)
			continue
		}
		out = append(out, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{block},
		})
	}
	return systemParts, out
}
