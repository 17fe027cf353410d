package session_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/sqlassist/internal/config"
	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/query"
	"github.com/kyleking/sqlassist/internal/session"
	"github.com/kyleking/sqlassist/internal/testutil"
)

type storeFactory func(t *testing.T) session.Store

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(_ *testing.T) session.Store {
			return session.NewMemoryStore()
		},
		"duckdb": func(t *testing.T) session.Store {
			s, err := session.OpenSQLStore(context.Background(), "duckdb", filepath.Join(t.TempDir(), "sessions.duckdb"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })

			return s
		},
		"sqlite3": func(t *testing.T) session.Store {
			s, err := session.OpenSQLStore(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "sessions.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })

			return s
		},
	}
}

func turn(minutes int, opts ...testutil.IntentOption) session.Turn {
	return session.Turn{
		Intent:    testutil.NewIntent(opts...),
		Timestamp: testutil.FixedNow.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestStore_AppendAndRead(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			last, err := s.LastTurn(ctx, testutil.TestConversationID)
			require.NoError(t, err)
			assert.Nil(t, last)

			first := turn(0, testutil.WithFilter("amount", query.CmpGt, float64(100)))
			second := turn(1,
				testutil.WithFilter("amount", query.CmpGt, float64(100)),
				testutil.WithFilter("quantity", query.CmpIn, int64(1), int64(2)),
				testutil.WithOrder("created_at", query.Desc),
			)

			require.NoError(t, s.AppendTurn(ctx, testutil.TestConversationID, first))
			require.NoError(t, s.AppendTurn(ctx, testutil.TestConversationID, second))

			last, err = s.LastTurn(ctx, testutil.TestConversationID)
			require.NoError(t, err)
			require.NotNil(t, last)

			if diff := cmp.Diff(second, *last); diff != "" {
				t.Errorf("LastTurn() mismatch (-want +got):\n%s", diff)
			}

			turns, err := s.Turns(ctx, testutil.TestConversationID)
			require.NoError(t, err)

			if diff := cmp.Diff([]session.Turn{first, second}, turns); diff != "" {
				t.Errorf("Turns() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_ConversationsAreIsolated(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			require.NoError(t, s.AppendTurn(ctx, "a", turn(0, testutil.WithLimit(1))))
			require.NoError(t, s.AppendTurn(ctx, "b", turn(0, testutil.WithLimit(2))))

			last, err := s.LastTurn(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, 1, last.Intent.Limit)

			turns, err := s.Turns(ctx, "c")
			require.NoError(t, err)
			assert.Empty(t, turns)
		})
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			original := turn(0, testutil.WithFilter("region", query.CmpIn, "north", "south"))
			require.NoError(t, s.AppendTurn(ctx, "x", original))

			original.Intent.Filters[0].Values[0] = "changed"

			last, err := s.LastTurn(ctx, "x")
			require.NoError(t, err)
			last.Intent.Filters[0].Values[1] = "mutated"

			again, err := s.LastTurn(ctx, "x")
			require.NoError(t, err)
			assert.Equal(t, []any{"north", "south"}, again.Intent.Filters[0].Values)
		})
	}
}

func TestStore_RejectsEmptyID(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)

			err := s.AppendTurn(context.Background(), "", turn(0))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeSession))
		})
	}
}

func TestStore_ConcurrentAppendsKeepPerIDOrder(t *testing.T) {
	const workers, perWorker = 4, 10

	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			testutil.RunConcurrent(t, workers, func(workerID int) error {
				id := fmt.Sprintf("conv-%d", workerID)

				for i := range perWorker {
					if err := s.AppendTurn(ctx, id, turn(i, testutil.WithLimit(i+1))); err != nil {
						return err
					}
				}

				return nil
			})

			for w := range workers {
				turns, err := s.Turns(ctx, fmt.Sprintf("conv-%d", w))
				require.NoError(t, err)
				require.Len(t, turns, perWorker)

				for i, tr := range turns {
					assert.Equal(t, i+1, tr.Intent.Limit)
				}
			}
		})
	}
}

func TestMemoryStore_ConcurrentAppendsToOneID(t *testing.T) {
	s := session.NewMemoryStore()
	ctx := context.Background()

	testutil.RunConcurrent(t, 20, func(workerID int) error {
		return s.AppendTurn(ctx, "shared", turn(workerID))
	})

	turns, err := s.Turns(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, turns, 20)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := session.NewMemoryStore().AppendTurn(ctx, "x", turn(0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")

	s, err := session.OpenSQLStore(ctx, "sqlite3", path)
	require.NoError(t, err)
	require.NoError(t, s.AppendTurn(ctx, "x", turn(0, testutil.WithCount())))
	require.NoError(t, s.Close())

	s, err = session.OpenSQLStore(ctx, "sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	last, err := s.LastTurn(ctx, "x")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, query.OpCount, last.Intent.Operation)
}

func TestOpenSQLStore_UnknownBackend(t *testing.T) {
	_, err := session.OpenSQLStore(context.Background(), "redis", "x")
	assert.True(t, errors.IsType(err, errors.ErrTypeSession))
}

func TestNewStore(t *testing.T) {
	s, err := session.NewStore(context.Background(), config.SessionConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &session.MemoryStore{}, s)

	s, err = session.NewStore(context.Background(), config.SessionConfig{Backend: "sqlite3", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.IsType(t, &session.SQLStore{}, s)
}
