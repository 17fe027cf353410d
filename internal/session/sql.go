package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // registers the duckdb driver
	_ "github.com/mattn/go-sqlite3"     // registers the sqlite3 driver

	"github.com/kyleking/sqlassist/internal/config"
	"github.com/kyleking/sqlassist/internal/errors"
)

// SQLStore persists conversations in a conversation_turns table. Appends for
// one id are serialized in process; the (conversation_id, seq) key rejects
// interleaved appends from other processes.
type SQLStore struct {
	db    *sql.DB
	locks keyedMutex
}

// NewStore builds the store selected by cfg
func NewStore(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	if cfg.Backend == "memory" {
		return NewMemoryStore(), nil
	}

	return OpenSQLStore(ctx, cfg.Backend, cfg.DSN)
}

// OpenSQLStore opens driver ("duckdb" or "sqlite3") at dsn and applies
// pending migrations.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != "duckdb" && driver != "sqlite3" {
		return nil, errors.Newf(errors.ErrTypeSession, "unsupported session backend %q", driver)
	}

	if path := filePath(dsn); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeSession, "failed to create session directory")
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeSession, "failed to open session database")
	}

	if driver == "sqlite3" {
		// Every sqlite3 connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store, err := NewSQLStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// NewSQLStore migrates db and takes ownership of it
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	if _, err := NewMigrationManager(db).MigrateUp(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeSession, "failed to migrate session schema")
	}

	return &SQLStore{db: db}, nil
}

func filePath(dsn string) string {
	path, _, _ := strings.Cut(dsn, "?")
	path = strings.TrimPrefix(path, "file:")

	if path == "" || path == ":memory:" {
		return ""
	}

	return path
}

// LastTurn returns the latest turn, or nil
func (s *SQLStore) LastTurn(ctx context.Context, conversationID string) (*Turn, error) {
	if err := checkID(conversationID); err != nil {
		return nil, err
	}

	var payload string

	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM conversation_turns WHERE conversation_id = ? ORDER BY seq DESC LIMIT 1",
		conversationID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeSession, "failed to load last turn")
	}

	turn, err := decodeTurn(payload)
	if err != nil {
		return nil, err
	}

	return &turn, nil
}

// AppendTurn stores turn after the conversation's latest turn
func (s *SQLStore) AppendTurn(ctx context.Context, conversationID string, turn Turn) error {
	if err := checkID(conversationID); err != nil {
		return err
	}

	payload, err := json.Marshal(turn)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeSession, "failed to encode turn")
	}

	unlock := s.locks.lock(conversationID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeSession, "failed to begin transaction")
	}

	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM conversation_turns WHERE conversation_id = ?",
		conversationID).Scan(&seq); err != nil {
		return errors.Wrap(err, errors.ErrTypeSession, "failed to read turn sequence")
	}

	created := turn.Timestamp
	if created.IsZero() {
		created = time.Now()
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO conversation_turns (conversation_id, seq, payload, created_at) VALUES (?, ?, ?, ?)",
		conversationID, seq+1, string(payload), created.UTC()); err != nil {
		return errors.Wrap(err, errors.ErrTypeSession, "failed to append turn")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrTypeSession, "failed to commit turn")
	}

	return nil
}

// Turns returns every turn of the conversation in order
func (s *SQLStore) Turns(ctx context.Context, conversationID string) ([]Turn, error) {
	if err := checkID(conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM conversation_turns WHERE conversation_id = ? ORDER BY seq",
		conversationID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeSession, "failed to load turns")
	}
	defer rows.Close()

	var turns []Turn

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeSession, "failed to scan turn")
		}

		turn, err := decodeTurn(payload)
		if err != nil {
			return nil, err
		}

		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeSession, "failed to iterate turns")
	}

	return turns, nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func decodeTurn(payload string) (Turn, error) {
	var turn Turn
	if err := json.Unmarshal([]byte(payload), &turn); err != nil {
		return Turn{}, errors.Wrap(err, errors.ErrTypeSession, fmt.Sprintf("corrupt turn record: %d bytes", len(payload)))
	}

	return turn, nil
}
