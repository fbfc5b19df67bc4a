package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"pgmigrator/internal/storage"

	"github.com/jackc/pgx/v5"
)

// stagingTable receives the batch ids on the source session so the export
// can join on them instead of inlining ids into the COPY statement
const stagingTable = "migrator_batch_ids"

// Copy transfers a batch with COPY TO on the source and COPY FROM on the target.
// Both sides use NULL '\N'; the export quotes a literal \N value, and Recode
// keeps that quoting so the target stores it as text.
type Copy struct {
	src     Conn
	dst     Conn
	mapping storage.Mapping
}

// NewCopy creates the streaming COPY strategy
func NewCopy(src, dst Conn, mapping storage.Mapping) *Copy {
	return &Copy{src: src, dst: dst, mapping: mapping}
}

// Name returns the strategy name
func (c *Copy) Name() string {
	return KindCopy
}

// Transfer exports, re-encodes and loads one batch
func (c *Copy) Transfer(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var exported bytes.Buffer
	if err := c.export(ctx, ids, &exported); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	var canonical bytes.Buffer
	if _, err := Recode(&canonical, &exported, len(c.mapping.Columns)); err != nil {
		return 0, fmt.Errorf("recode: %w", err)
	}

	rows, err := c.load(ctx, &canonical)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}

	return rows, nil
}

// ExportSQL returns the COPY TO statement reading the staged ids
func (c *Copy) ExportSQL() string {
	return fmt.Sprintf(
		`COPY (SELECT %s FROM %s p JOIN %s b ON b.id = p.%s ORDER BY p.%s) TO STDOUT WITH (FORMAT csv, DELIMITER E'\t', NULL '\N')`,
		c.mapping.ColumnList("p"), c.mapping.Source(), stagingTable, c.mapping.ID(), c.mapping.ID(),
	)
}

// LoadSQL returns the COPY FROM statement writing the target table
func (c *Copy) LoadSQL() string {
	return fmt.Sprintf(
		`COPY %s (%s) FROM STDIN WITH (FORMAT csv, NULL '\N')`,
		c.mapping.Target(), c.mapping.ColumnList(""),
	)
}

// export stages the ids and streams the matching rows into w.
// The source transaction is always rolled back, which drops the staging table.
func (c *Copy) export(ctx context.Context, ids []string, w io.Writer) error {
	tx, err := c.src.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin source transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE `+stagingTable+` (id text PRIMARY KEY) ON COMMIT DROP`); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{stagingTable}, []string{"id"},
		pgx.CopyFromSlice(len(ids), func(i int) ([]any, error) {
			return []any{ids[i]}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("stage ids: %w", err)
	}

	if _, err := tx.Conn().PgConn().CopyTo(ctx, w, c.ExportSQL()); err != nil {
		return fmt.Errorf("copy out: %w", err)
	}

	return nil
}

// load writes the canonical CSV into the target inside one transaction
func (c *Copy) load(ctx context.Context, r io.Reader) (int64, error) {
	tx, err := c.dst.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin target transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	tag, err := tx.Conn().PgConn().CopyFrom(ctx, r, c.LoadSQL())
	if err != nil {
		return 0, fmt.Errorf("copy in: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return tag.RowsAffected(), nil
}
