package prompts

import (
	"fmt"
	"strings"
)

// PromptBuilder composes a prompt from a registered template, extra fragments and variables.
type PromptBuilder struct {
	basePrompt *Prompt
	fragments  []string
	variables  map[string]string
}

// NewPromptBuilder creates a builder based on a registered prompt.
// An empty version selects the latest non-deprecated one.
func NewPromptBuilder(registry *PromptRegistry, id string, version PromptVersion) (*PromptBuilder, error) {
	var (
		basePrompt *Prompt
		err        error
	)
	if version == "" {
		basePrompt, err = registry.GetLatest(id)
	} else {
		basePrompt, err = registry.Get(id, version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get base prompt: %w", err)
	}

	return &PromptBuilder{
		basePrompt: basePrompt,
		fragments:  []string{basePrompt.Content},
		variables:  make(map[string]string),
	}, nil
}

// AddFragment appends a fragment to the prompt.
func (b *PromptBuilder) AddFragment(text string) *PromptBuilder {
	if text != "" {
		b.fragments = append(b.fragments, text)
	}
	return b
}

// SetVariable sets a variable for {{key}} substitution.
func (b *PromptBuilder) SetVariable(key, value string) *PromptBuilder {
	b.variables[key] = value
	return b
}

// Build constructs the final prompt string in a single pass over the template.
// Placeholders without a value are an error. Substituted values are inserted
// verbatim and never scanned for placeholders themselves.
func (b *PromptBuilder) Build() (string, error) {
	tmpl := strings.Join(b.fragments, "\n\n")

	var out strings.Builder
	out.Grow(len(tmpl))
	for {
		i := strings.Index(tmpl, "{{")
		if i < 0 {
			break
		}
		j := strings.Index(tmpl[i+2:], "}}")
		if j < 0 {
			break
		}
		name := tmpl[i+2 : i+2+j]
		if !isVariableName(name) {
			out.WriteString(tmpl[:i+2])
			tmpl = tmpl[i+2:]
			continue
		}
		value, ok := b.variables[name]
		if !ok {
			return "", fmt.Errorf("prompt %s: unresolved variable {{%s}}", b.basePrompt.ID, name)
		}
		out.WriteString(tmpl[:i])
		out.WriteString(value)
		tmpl = tmpl[i+2+j+2:]
	}
	out.WriteString(tmpl)

	return out.String(), nil
}

func isVariableName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Render is a shortcut for building the latest version of id with vars.
func Render(registry *PromptRegistry, id string, vars map[string]string) (string, error) {
	b, err := NewPromptBuilder(registry, id, "")
	if err != nil {
		return "", err
	}
	for k, v := range vars {
		b.SetVariable(k, v)
	}
	return b.Build()
}
