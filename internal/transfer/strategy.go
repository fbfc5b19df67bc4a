package transfer

import (
	"context"
	"fmt"

	"pgmigrator/internal/storage"

	"github.com/jackc/pgx/v5"
)

const (
	// KindCopy selects the bulk COPY strategy
	KindCopy = "copy"
	// KindSimple selects the batched INSERT strategy
	KindSimple = "simple"
)

// Strategy moves one batch of rows from the source to the target.
// Either every row of the batch is committed in the target or none is.
type Strategy interface {
	Name() string
	Transfer(ctx context.Context, ids []string) (int64, error)
}

// Conn is the subset of *pgx.Conn the strategies use
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// New returns the strategy registered under kind
func New(kind string, src, dst Conn, mapping storage.Mapping) (Strategy, error) {
	if len(mapping.Columns) == 0 {
		return nil, fmt.Errorf("no columns to transfer")
	}

	switch kind {
	case KindCopy:
		return NewCopy(src, dst, mapping), nil
	case KindSimple:
		return NewRowBatch(src, dst, mapping), nil
	default:
		return nil, fmt.Errorf("unknown transfer strategy %q", kind)
	}
}
