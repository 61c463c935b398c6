package prompts

// PromptVersion represents a version identifier for prompts.
type PromptVersion string

const (
	// PromptV1 is the first version of prompts.
	PromptV1 PromptVersion = "1.0.0"
	// PromptV2 tightens the JSON-only instruction for small local models.
	PromptV2 PromptVersion = "2.0.0"
)

// Well-known prompt IDs used by the agent states.
const (
	PlanningID    = "planning"
	SummarizingID = "summarizing"
)

// Template variables understood by the agent prompts.
const (
	VarToolsJSON   = "tools_json"
	VarUserRequest = "user_request"
)

// Prompt represents a versioned prompt with metadata.
type Prompt struct {
	ID          string        // Unique identifier (e.g., "planning", "summarizing")
	Version     PromptVersion // Version of this prompt
	Content     string        // Template text with {{var}} placeholders
	Description string        // Human-readable description
	Tags        []string
	Deprecated  bool
}
