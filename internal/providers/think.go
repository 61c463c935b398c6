package providers

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// splitThinking separates a reasoning model's <think>...</think> block from the answer.
// Content without a block is returned unchanged as the answer.
func splitThinking(content string) (thinking, answer string) {
	start := strings.Index(content, thinkOpen)
	if start < 0 {
		return "", content
	}
	rest := content[start+len(thinkOpen):]
	end := strings.Index(rest, thinkClose)
	if end < 0 {
		// Unterminated block: everything after <think> is reasoning.
		return strings.TrimSpace(rest), strings.TrimSpace(content[:start])
	}
	thinking = strings.TrimSpace(rest[:end])
	answer = strings.TrimSpace(content[:start] + rest[end+len(thinkClose):])
	return thinking, answer
}
