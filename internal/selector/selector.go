package selector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pgmigrator/internal/storage"

	"github.com/jackc/pgx/v5"
)

// ErrCheckpointNotInList is returned when a supplied id list does not contain
// the stored checkpoint, so the resume position cannot be determined
var ErrCheckpointNotInList = errors.New("checkpoint id not found in id list")

// Selector produces the ordered sequence of ids still to migrate
type Selector interface {
	// Select returns the ids strictly after the given checkpoint, in order.
	// An invalid checkpoint selects from the beginning.
	Select(ctx context.Context, after sql.NullString) ([]string, error)
}

// List selects from an externally supplied, pre-sorted id list
type List struct {
	ids []string
}

// NewList validates the id list; duplicates are rejected because resuming
// locates the checkpoint by position
func NewList(ids []string) (*List, error) {
	seen := make(map[string]int, len(ids))
	for i, id := range ids {
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("duplicate id %q at lines %d and %d", id, prev+1, i+1)
		}
		seen[id] = i
	}
	return &List{ids: ids}, nil
}

// Len returns the number of ids in the full list
func (l *List) Len() int {
	return len(l.ids)
}

// Select returns the tail of the list after the checkpoint id
func (l *List) Select(_ context.Context, after sql.NullString) ([]string, error) {
	if !after.Valid {
		return l.ids, nil
	}

	for i, id := range l.ids {
		if id == after.String {
			return l.ids[i+1:], nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrCheckpointNotInList, after.String)
}

// Querier is the subset of *pgx.Conn used to read ids
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Query selects ids from the source table matching a predicate.
// The predicate is evaluated on every run, so newly qualifying rows are picked up.
type Query struct {
	db        Querier
	mapping   storage.Mapping
	predicate string
}

// NewQuery creates a store-derived selector; an empty predicate matches every row
func NewQuery(db Querier, mapping storage.Mapping, predicate string) *Query {
	return &Query{db: db, mapping: mapping, predicate: predicate}
}

// SQL returns the selection statement and its arguments
func (q *Query) SQL(after sql.NullString) (string, []any) {
	predicate := q.predicate
	if predicate == "" {
		predicate = "TRUE"
	}

	id := q.mapping.ID()
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE (%s)", id, q.mapping.Source(), predicate)

	var args []any
	if after.Valid {
		stmt += fmt.Sprintf(" AND %s > $1", id)
		args = append(args, after.String)
	}

	return stmt + fmt.Sprintf(" ORDER BY %s", id), args
}

// Select runs the selection query; any failure discards the partial result
func (q *Query) Select(ctx context.Context, after sql.NullString) ([]string, error) {
	stmt, args := q.SQL(after)

	rows, err := q.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}

	return ids, nil
}
