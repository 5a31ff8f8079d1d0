package memory

import (
	"strings"
	"sync"

	"github.com/hupe1980/astra/core"
)

// DefaultCapacity is the number of messages kept when no capacity is given.
const DefaultCapacity = 50

// ShortTermMemory is a token-agnostic rolling buffer of messages. Once full,
// adding a message evicts the oldest one. It is safe for concurrent use.
type ShortTermMemory struct {
	mu       sync.RWMutex
	capacity int
	buf      []core.Message
}

// NewShortTermMemory creates a buffer holding up to capacity messages.
// Capacities <= 0 fall back to DefaultCapacity.
func NewShortTermMemory(capacity int) *ShortTermMemory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ShortTermMemory{capacity: capacity, buf: make([]core.Message, 0, capacity)}
}

// Capacity returns the maximum number of retained messages.
func (m *ShortTermMemory) Capacity() int { return m.capacity }

// Add appends messages, dropping the oldest beyond capacity.
func (m *ShortTermMemory) Add(msgs ...core.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf = append(m.buf, msgs...)
	if over := len(m.buf) - m.capacity; over > 0 {
		kept := make([]core.Message, m.capacity)
		copy(kept, m.buf[over:])
		m.buf = kept
	}
}

// Clear removes every message.
func (m *ShortTermMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf = m.buf[:0]
}

// Dump returns a copy of the buffered messages, oldest first.
func (m *ShortTermMemory) Dump() []core.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Message, len(m.buf))
	copy(out, m.buf)
	return out
}

// Len returns the number of buffered messages.
func (m *ShortTermMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buf)
}

// Search returns up to limit messages whose content contains query, newest
// first. An empty query matches everything; limit <= 0 means no limit.
func (m *ShortTermMemory) Search(query string, limit int) []core.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Message
	for i := len(m.buf) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if query == "" || strings.Contains(m.buf[i].Content, query) {
			out = append(out, m.buf[i])
		}
	}
	return out
}
