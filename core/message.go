package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a Message within a conversation.
type Role string

const (
	// RoleSystem carries instructions that frame the conversation.
	RoleSystem Role = "system"
	// RoleUser is input from a human or an orchestrating program.
	RoleUser Role = "user"
	// RoleAssistant is model generated output.
	RoleAssistant Role = "assistant"
	// RoleTool is the result of a tool invocation fed back to the model.
	RoleTool Role = "tool"
)

// String returns the wire representation of the role.
func (r Role) String() string { return string(r) }

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Message is a single conversational turn. After construction it should be
// treated as immutable; use Clone before mutating Meta.
type Message struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewMessage creates a message with a fresh identifier and a UTC timestamp.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Meta:      map[string]any{},
		Timestamp: time.Now().UTC(),
	}
}

// SystemMessage creates a system-authored message.
func SystemMessage(content string) Message { return NewMessage(RoleSystem, content) }

// UserMessage creates a user-authored message.
func UserMessage(content string) Message { return NewMessage(RoleUser, content) }

// AssistantMessage creates an assistant-authored message.
func AssistantMessage(content string) Message { return NewMessage(RoleAssistant, content) }

// ToolMessage records the output of the named tool for the given call.
func ToolMessage(name, callID, content string) Message {
	m := NewMessage(RoleTool, content)
	m.Name = name
	m.ToolCallID = callID
	return m
}

// Clone returns a copy of m whose Meta map can be modified independently.
func (m Message) Clone() Message {
	cp := m
	if m.Meta != nil {
		cp.Meta = make(map[string]any, len(m.Meta))
		for k, v := range m.Meta {
			cp.Meta[k] = v
		}
	}
	return cp
}

// JoinMessages flattens a conversation into "<role>: <content>" lines. Used by
// providers whose API is driven by a single prompt.
func JoinMessages(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role.String()+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }
