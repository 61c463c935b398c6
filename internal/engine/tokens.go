package engine

import "unicode/utf8"

// EstimateTokens gives a rough token count (~4 characters per token).
// It is only used for log output.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// EstimateMessageTokens sums EstimateTokens over msgs plus a small per-message overhead.
func EstimateMessageTokens(msgs []ChatMessage) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Content) + 4
	}
	return total
}
