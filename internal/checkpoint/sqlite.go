package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite file, for runs where the
// target database should not carry the checkpoint table
type SQLiteStore struct {
	db      *sql.DB
	closed  bool
	writeMu sync.Mutex
}

// NewSQLiteStore opens (or creates) a SQLite checkpoint file
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(60000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one writer at a time; the migration engine is sequential anyway
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &SQLiteStore{db: db}, nil
}

// EnsureSchema creates the checkpoint table if it doesn't exist
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if s.closed {
		return fmt.Errorf("database store is closed")
	}

	query := `
	CREATE TABLE IF NOT EXISTS ` + TableName + ` (
		task_name TEXT PRIMARY KEY,
		last_id TEXT,
		updated_at DATETIME NOT NULL
	);
	`

	return s.retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query)
		return err
	})
}

// Load retrieves the last migrated id with retry on lock contention
func (s *SQLiteStore) Load(ctx context.Context, taskName string) (sql.NullString, error) {
	if s.closed {
		return sql.NullString{}, fmt.Errorf("database store is closed")
	}

	var lastID sql.NullString
	err := s.retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT last_id FROM `+TableName+` WHERE task_name = ?`, taskName)
		err := row.Scan(&lastID)
		if errors.Is(err, sql.ErrNoRows) {
			lastID = sql.NullString{}
			return nil
		}
		return err
	})
	if err != nil {
		return sql.NullString{}, fmt.Errorf("load checkpoint for %q: %w", taskName, err)
	}

	return lastID, nil
}

// Save upserts the checkpoint with retry on lock contention
func (s *SQLiteStore) Save(ctx context.Context, taskName, lastID string) error {
	if s.closed {
		return fmt.Errorf("database store is closed")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.retryOnBusy(ctx, func() error {
		return s.saveWithTransaction(ctx, taskName, lastID)
	})
}

func (s *SQLiteStore) saveWithTransaction(ctx context.Context, taskName, lastID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // This will be ignored if Commit() succeeds

	query := `
    INSERT INTO ` + TableName + ` (task_name, last_id, updated_at)
    VALUES (?, ?, ?)
    ON CONFLICT(task_name) DO UPDATE SET
        last_id = excluded.last_id,
        updated_at = excluded.updated_at
    `

	if _, err := tx.ExecContext(ctx, query, taskName, lastID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to execute upsert: %w", err)
	}

	return tx.Commit()
}

// retryOnBusy retries the operation if SQLite is busy.
// The backoff wait ends early when ctx is cancelled.
func (s *SQLiteStore) retryOnBusy(ctx context.Context, operation func() error) error {
	maxRetries := 10
	baseDelay := 50 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = operation()
		if err == nil || !isSQLiteBusyError(err) {
			return err
		}
		if attempt == maxRetries-1 {
			break
		}

		// exponential backoff with a small linear jitter
		delay := baseDelay * time.Duration(1<<uint(attempt))
		jitter := time.Duration(attempt*10) * time.Millisecond
		timer := time.NewTimer(delay + jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}

// isSQLiteBusyError checks if the error is a SQLite busy error
func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY")
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.closed = true
	return s.db.Close()
}
