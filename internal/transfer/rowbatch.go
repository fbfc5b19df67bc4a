package transfer

import (
	"context"
	"fmt"
	"strings"

	"pgmigrator/internal/storage"

	"github.com/jackc/pgx/v5"
)

// RowBatch reads a batch with one query and writes it as a pipelined batch
// of parameterized INSERTs
type RowBatch struct {
	src     Conn
	dst     Conn
	mapping storage.Mapping
}

// NewRowBatch creates the batched INSERT strategy
func NewRowBatch(src, dst Conn, mapping storage.Mapping) *RowBatch {
	return &RowBatch{src: src, dst: dst, mapping: mapping}
}

// Name returns the strategy name
func (s *RowBatch) Name() string {
	return KindSimple
}

// SelectSQL returns the row fetch statement; $1 is the id array
func (s *RowBatch) SelectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1) ORDER BY %s",
		s.mapping.ColumnList(""), s.mapping.Source(), s.mapping.ID(), s.mapping.ID())
}

// InsertSQL returns the per-row insert statement
func (s *RowBatch) InsertSQL() string {
	placeholders := make([]string, len(s.mapping.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.mapping.Target(), s.mapping.ColumnList(""), strings.Join(placeholders, ", "))
}

// Transfer reads the batch rows and inserts them in a single target transaction
func (s *RowBatch) Transfer(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	rows, err := s.src.Query(ctx, s.SelectSQL(), ids)
	if err != nil {
		return 0, fmt.Errorf("query rows: %w", err)
	}
	values, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]any, error) {
		return row.Values()
	})
	if err != nil {
		return 0, fmt.Errorf("read rows: %w", err)
	}

	insert := s.InsertSQL()
	batch := &pgx.Batch{}
	for _, v := range values {
		batch.Queue(insert, v...)
	}

	tx, err := s.dst.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin target transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	inserted, err := sendBatch(ctx, tx, batch)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return inserted, nil
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) (int64, error) {
	results := tx.SendBatch(ctx, batch)

	var inserted int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("insert row %d: %w", i+1, err)
		}
		inserted += tag.RowsAffected()
	}

	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	return inserted, nil
}
