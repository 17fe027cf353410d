package session

import (
	"context"
	"sync"
)

type conversation struct {
	mu    sync.RWMutex
	turns []Turn
}

// MemoryStore keeps every conversation in process memory for the life of
// the process. Nothing is evicted.
type MemoryStore struct {
	conversations sync.Map // string -> *conversation
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) get(conversationID string, create bool) *conversation {
	if c, ok := s.conversations.Load(conversationID); ok {
		return c.(*conversation)
	}

	if !create {
		return nil
	}

	c, _ := s.conversations.LoadOrStore(conversationID, &conversation{})

	return c.(*conversation)
}

// LastTurn returns a copy of the latest turn
func (s *MemoryStore) LastTurn(ctx context.Context, conversationID string) (*Turn, error) {
	if err := checkID(conversationID); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := s.get(conversationID, false)
	if c == nil {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.turns) == 0 {
		return nil, nil
	}

	return copyTurn(c.turns[len(c.turns)-1]), nil
}

// AppendTurn adds turn to the end of the conversation
func (s *MemoryStore) AppendTurn(ctx context.Context, conversationID string, turn Turn) error {
	if err := checkID(conversationID); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c := s.get(conversationID, true)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, *copyTurn(turn))

	return nil
}

// Turns returns copies of every turn in order
func (s *MemoryStore) Turns(ctx context.Context, conversationID string) ([]Turn, error) {
	if err := checkID(conversationID); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := s.get(conversationID, false)
	if c == nil {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Turn, len(c.turns))
	for i, t := range c.turns {
		out[i] = *copyTurn(t)
	}

	return out, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
