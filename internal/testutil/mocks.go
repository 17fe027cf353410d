package testutil

import (
	"context"
	"sync"

	"github.com/kyleking/sqlassist/internal/query"
)

// MockStore implements session.Store in memory with error injection
type MockStore struct {
	mu sync.RWMutex

	turns      map[string][]query.Turn
	errors     map[string]error
	callCounts map[string]int
}

// MockOption is a functional option for configuring MockStore
type MockOption func(*MockStore)

// WithStoreError fails the named operation ("LastTurn", "AppendTurn",
// "Turns") with err.
func WithStoreError(operation string, err error) MockOption {
	return func(m *MockStore) {
		m.errors[operation] = err
	}
}

// WithTurns preloads a conversation
func WithTurns(conversationID string, turns ...query.Turn) MockOption {
	return func(m *MockStore) {
		m.turns[conversationID] = append(m.turns[conversationID], turns...)
	}
}

// NewMockStore creates a new mock store with the given options
func NewMockStore(opts ...MockOption) *MockStore {
	mock := &MockStore{
		turns:      make(map[string][]query.Turn),
		errors:     make(map[string]error),
		callCounts: make(map[string]int),
	}

	for _, opt := range opts {
		opt(mock)
	}

	return mock
}

func (m *MockStore) record(operation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCounts[operation]++

	return m.errors[operation]
}

// LastTurn returns the most recent turn, or nil
func (m *MockStore) LastTurn(_ context.Context, conversationID string) (*query.Turn, error) {
	if err := m.record("LastTurn"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	turns := m.turns[conversationID]
	if len(turns) == 0 {
		return nil, nil
	}

	last := turns[len(turns)-1]
	last.Intent = last.Intent.Clone()

	return &last, nil
}

// AppendTurn records a turn
func (m *MockStore) AppendTurn(_ context.Context, conversationID string, turn query.Turn) error {
	if err := m.record("AppendTurn"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns[conversationID] = append(m.turns[conversationID], turn)

	return nil
}

// Turns returns a copy of the conversation's turns
func (m *MockStore) Turns(_ context.Context, conversationID string) ([]query.Turn, error) {
	if err := m.record("Turns"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]query.Turn(nil), m.turns[conversationID]...), nil
}

// Close is a no-op
func (m *MockStore) Close() error {
	return nil
}

// CallCount returns how many times operation was called
func (m *MockStore) CallCount(operation string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.callCounts[operation]
}
