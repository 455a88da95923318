package session

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/toolbench/core/protocol"
)

type memorySession struct {
	id        string
	turns     []protocol.Turn
	exchanges []Exchange
	discard   bool
	mu        sync.RWMutex
}

// NewMemorySession creates a Session backed by in-memory slices.
// The session is assigned a unique UUIDv7 identifier.
func NewMemorySession() Session {
	return &memorySession{
		id: uuid.Must(uuid.NewV7()).String(),
	}
}

func (s *memorySession) ID() string {
	return s.id
}

func (s *memorySession) Append(turn protocol.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, cloneTurn(turn))
}

func (s *memorySession) Turns() []protocol.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]protocol.Turn, len(s.turns))
	for i, turn := range s.turns {
		copied[i] = cloneTurn(turn)
	}
	return copied
}

func (s *memorySession) Record(ex Exchange) {
	if s.discard {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, ex)
}

func (s *memorySession) Exchanges() []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.exchanges)
}

func cloneTurn(t protocol.Turn) protocol.Turn {
	t.ToolCalls = slices.Clone(t.ToolCalls)
	t.Outcomes = slices.Clone(t.Outcomes)
	t.Artifacts = slices.Clone(t.Artifacts)
	return t
}
