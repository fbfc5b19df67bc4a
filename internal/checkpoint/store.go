package checkpoint

import (
	"context"
	"database/sql"
)

// TableName is the checkpoint table created in the backing database
const TableName = "migration_progress"

// Store defines the interface for checkpoint persistence.
// Implementations keep one row per task holding the last migrated id.
type Store interface {
	// EnsureSchema creates the checkpoint table when it is missing
	EnsureSchema(ctx context.Context) error
	// Load returns the last migrated id; Valid is false if the task never committed a batch
	Load(ctx context.Context, taskName string) (sql.NullString, error)
	// Save upserts the task's last id in its own committed transaction
	Save(ctx context.Context, taskName, lastID string) error
}
