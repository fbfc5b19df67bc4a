package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgx.Conn the Postgres store needs
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore keeps checkpoints in the migration target database
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a checkpoint store on an open connection.
// The connection stays owned by the caller.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the checkpoint table if it doesn't exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
		task_name TEXT PRIMARY KEY,
		last_id   TEXT
	)`
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", TableName, err)
	}
	return nil
}

// Load retrieves the last migrated id for a task
func (s *PostgresStore) Load(ctx context.Context, taskName string) (sql.NullString, error) {
	var lastID sql.NullString

	err := s.db.QueryRow(ctx,
		`SELECT last_id FROM `+TableName+` WHERE task_name = $1`, taskName,
	).Scan(&lastID)
	if errors.Is(err, pgx.ErrNoRows) {
		return sql.NullString{}, nil
	}
	if err != nil {
		return sql.NullString{}, fmt.Errorf("load checkpoint for %q: %w", taskName, err)
	}

	return lastID, nil
}

// Save upserts the task's checkpoint in a dedicated transaction
func (s *PostgresStore) Save(ctx context.Context, taskName, lastID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	query := `
	INSERT INTO ` + TableName + ` (task_name, last_id)
	VALUES ($1, $2)
	ON CONFLICT (task_name) DO UPDATE SET last_id = excluded.last_id
	`
	if _, err := tx.Exec(ctx, query, taskName, lastID); err != nil {
		return fmt.Errorf("failed to upsert checkpoint: %w", err)
	}

	return tx.Commit(ctx)
}
