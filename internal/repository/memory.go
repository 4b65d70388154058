package repository

import (
	"context"
	"sync"

	"finance-chatbot/internal/domain"
)

// MemoryStore is an in-process conversation store for the local REPL. It
// mirrors the DynamoDB client's contract without persistence.
type MemoryStore struct {
	mu    sync.Mutex
	turns map[string][]domain.Message
	meta  map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns: make(map[string][]domain.Message),
		meta:  make(map[string]int),
	}
}

func (m *MemoryStore) GetConversationTurnCount(_ context.Context, conversationID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta[conversationID], nil
}

// GetHistory returns the most recent turns in chronological order.
func (m *MemoryStore) GetHistory(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.turns[conversationID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]domain.Message, len(turns))
	copy(out, turns)
	return out, nil
}

func (m *MemoryStore) SaveCompletedTurn(_ context.Context, conversationID, question, answer string, turns int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := NewMessage(conversationID, question, StatusComplete)
	msg.Answer = answer
	m.turns[conversationID] = append(m.turns[conversationID], msg)
	m.meta[conversationID] = turns
	return nil
}
