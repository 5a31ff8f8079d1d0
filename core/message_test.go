package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMessage(t *testing.T) {
	m := NewMessage(RoleUser, "hello")
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, RoleUser, m.Role)
	assert.Equal(t, "hello", m.Content)
	assert.False(t, m.Timestamp.IsZero())
	assert.Equal(t, "UTC", m.Timestamp.Location().String())

	other := NewMessage(RoleUser, "hello")
	assert.NotEqual(t, m.ID, other.ID)
}

func TestMessageHelpers(t *testing.T) {
	assert.Equal(t, RoleSystem, SystemMessage("s").Role)
	assert.Equal(t, RoleUser, UserMessage("u").Role)
	assert.Equal(t, RoleAssistant, AssistantMessage("a").Role)

	tm := ToolMessage("shell", "call-1", "ok")
	assert.Equal(t, RoleTool, tm.Role)
	assert.Equal(t, "shell", tm.Name)
	assert.Equal(t, "call-1", tm.ToolCallID)
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool} {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("narrator").Valid())
}

func TestMessageClone(t *testing.T) {
	m := UserMessage("x")
	m.Meta["k"] = "v"

	cp := m.Clone()
	cp.Meta["k"] = "changed"

	assert.Equal(t, "v", m.Meta["k"])
	assert.Equal(t, "changed", cp.Meta["k"])
}

func TestJoinMessages(t *testing.T) {
	got := JoinMessages([]Message{
		SystemMessage("be brief"),
		UserMessage("hi"),
		AssistantMessage("hello"),
	})
	assert.Equal(t, "system: be brief\nuser: hi\nassistant: hello", got)
	assert.Equal(t, "", JoinMessages(nil))
}
