package session

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	Up          string
}

// migrations lists every schema change. Each Up is a single statement so it
// runs unchanged on duckdb and sqlite3.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Create conversation turn log",
		Up: `CREATE TABLE IF NOT EXISTS conversation_turns (
			conversation_id VARCHAR NOT NULL,
			seq INTEGER NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (conversation_id, seq)
		)`,
	},
}

// MigrationManager applies schema migrations
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a migration manager for db
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// GetMigrations returns all migrations sorted by version
func (m *MigrationManager) GetMigrations() []Migration {
	out := append([]Migration(nil), migrations...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	return out
}

func (m *MigrationManager) initializeMigrationTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description VARCHAR NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	return nil
}

// AppliedVersions returns the applied migration versions in order
func (m *MigrationManager) AppliedVersions(ctx context.Context) ([]int, error) {
	if err := m.initializeMigrationTable(ctx); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}

		versions = append(versions, version)
	}

	return versions, rows.Err()
}

func (m *MigrationManager) apply(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		migration.Version, migration.Description)
	if err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	return tx.Commit()
}

// MigrateUp applies all pending migrations and returns how many ran
func (m *MigrationManager) MigrateUp(ctx context.Context) (int, error) {
	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	ran := 0

	for _, migration := range m.GetMigrations() {
		if done[migration.Version] {
			continue
		}

		if err := m.apply(ctx, migration); err != nil {
			return ran, err
		}

		ran++
	}

	return ran, nil
}
