// Package session keeps the append-only turn log of each conversation
package session

import (
	"context"
	"sync"

	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/query"
)

// Turn is one completed exchange
type Turn = query.Turn

// Store is the conversation log. Appends for one conversation id are applied
// in call order; different ids never block each other.
type Store interface {
	// LastTurn returns the most recent turn, or nil for an unknown id
	LastTurn(ctx context.Context, conversationID string) (*Turn, error)
	AppendTurn(ctx context.Context, conversationID string, turn Turn) error
	Turns(ctx context.Context, conversationID string) ([]Turn, error)
	Close() error
}

// ErrEmptyConversationID is returned for a blank id
var ErrEmptyConversationID = errors.New(errors.ErrTypeSession, "conversation id is empty")

func checkID(conversationID string) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}

	return nil
}

func copyTurn(t Turn) *Turn {
	t.Intent = t.Intent.Clone()
	return &t
}

// keyedMutex hands out one mutex per key
type keyedMutex struct {
	locks sync.Map // string -> *sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	mu, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()

	return m.Unlock
}
