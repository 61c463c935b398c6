package engine

import (
	"fmt"
	"sync"
)

// Memory is the agent's append-only working log.
// Entries are never reordered or removed; only user, assistant and tool roles are accepted.
type Memory struct {
	mu      sync.RWMutex
	entries []ChatMessage
}

// NewMemory creates an empty memory log.
func NewMemory() *Memory {
	return &Memory{}
}

// Append adds an entry to the end of the log.
func (m *Memory) Append(role MessageRole, content string) error {
	switch role {
	case RoleUser, RoleAssistant, RoleTool:
	default:
		return fmt.Errorf("memory does not accept role %q", role)
	}
	m.mu.Lock()
	m.entries = append(m.entries, ChatMessage{Role: role, Content: content})
	m.mu.Unlock()
	return nil
}

// Entries returns a copy of the log in insertion order.
func (m *Memory) Entries() []ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ChatMessage, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Last returns the newest entry.
func (m *Memory) Last() (ChatMessage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return ChatMessage{}, false
	}
	return m.entries[len(m.entries)-1], true
}

// LastOfRole returns the index and content of the newest entry with the given role, or -1.
func (m *Memory) LastOfRole(role MessageRole) (int, ChatMessage) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Role == role {
			return i, m.entries[i]
		}
	}
	return -1, ChatMessage{}
}
