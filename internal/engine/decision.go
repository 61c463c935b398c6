package engine

import (
	"encoding/json"
	"strings"
)

// ParseDecision turns a planning reply into a ToolCallDecision.
// A surrounding ```json fence or leading prose before the object is tolerated.
func ParseDecision(reply string) (ToolCallDecision, error) {
	text := stripFence(strings.TrimSpace(reply))
	if text == "" {
		return ToolCallDecision{}, &DecisionParseError{Reply: reply, Reason: "empty reply"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		obj, ok := extractObject(text)
		if !ok {
			return ToolCallDecision{}, &DecisionParseError{Reply: reply, Reason: "not a JSON object", Err: err}
		}
		if err := json.Unmarshal([]byte(obj), &fields); err != nil {
			return ToolCallDecision{}, &DecisionParseError{Reply: reply, Reason: "not a JSON object", Err: err}
		}
	}

	var d ToolCallDecision
	raw, ok := fields["tool_name"]
	if !ok {
		return ToolCallDecision{}, &DecisionParseError{Reply: reply, Reason: "missing tool_name"}
	}
	if err := json.Unmarshal(raw, &d.ToolName); err != nil {
		return ToolCallDecision{}, &DecisionParseError{Reply: reply, Reason: "tool_name is not a string", Err: err}
	}
	d.ToolName = strings.TrimSpace(d.ToolName)
	if d.ToolName == "" {
		return ToolCallDecision{}, &DecisionParseError{Reply: reply, Reason: "missing tool_name"}
	}

	d.Arguments = map[string]any{}
	if raw, ok := fields["arguments"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &d.Arguments); err != nil {
			return ToolCallDecision{}, &DecisionParseError{Reply: reply, Reason: "arguments is not an object", Err: err}
		}
	}
	return d, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
