package selector

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"pgmigrator/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMapping = storage.Mapping{
	SourceTable: "person",
	TargetTable: "kids",
	IDColumn:    "id",
	Columns:     []string{"id", "birthday"},
}

func TestListSelectsFromStart(t *testing.T) {
	l, err := NewList([]string{"1", "2", "3"})
	require.NoError(t, err)

	ids, err := l.Select(context.Background(), sql.NullString{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids)
	assert.Equal(t, 3, l.Len())
}

func TestListResumesAfterCheckpoint(t *testing.T) {
	l, err := NewList([]string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"})
	require.NoError(t, err)

	ids, err := l.Select(context.Background(), sql.NullString{String: "5", Valid: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"6", "7", "8", "9", "10"}, ids)
}

func TestListCheckpointIsLast(t *testing.T) {
	l, err := NewList([]string{"a", "b"})
	require.NoError(t, err)

	ids, err := l.Select(context.Background(), sql.NullString{String: "b", Valid: true})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListCheckpointMissing(t *testing.T) {
	l, err := NewList([]string{"1", "2", "3"})
	require.NoError(t, err)

	ids, err := l.Select(context.Background(), sql.NullString{String: "42", Valid: true})
	assert.ErrorIs(t, err, ErrCheckpointNotInList)
	assert.Nil(t, ids)
}

func TestListRejectsDuplicates(t *testing.T) {
	_, err := NewList([]string{"1", "2", "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate id "1" at lines 1 and 3`)
}

func TestQuerySQL(t *testing.T) {
	q := NewQuery(nil, testMapping, "birthday > current_date - interval '18 years'")

	stmt, args := q.SQL(sql.NullString{})
	assert.Equal(t, `SELECT "id" FROM "person" WHERE (birthday > current_date - interval '18 years') ORDER BY "id"`, stmt)
	assert.Empty(t, args)

	stmt, args = q.SQL(sql.NullString{String: "5", Valid: true})
	assert.Equal(t, `SELECT "id" FROM "person" WHERE (birthday > current_date - interval '18 years') AND "id" > $1 ORDER BY "id"`, stmt)
	assert.Equal(t, []any{"5"}, args)
}

func TestQuerySQLWithoutPredicate(t *testing.T) {
	q := NewQuery(nil, testMapping, "")

	stmt, _ := q.SQL(sql.NullString{})
	assert.Equal(t, `SELECT "id" FROM "person" WHERE (TRUE) ORDER BY "id"`, stmt)
}

type failingQuerier struct {
	err error
}

func (f failingQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, f.err
}

func TestQueryFailureIsReturned(t *testing.T) {
	boom := errors.New("connection reset")
	q := NewQuery(failingQuerier{err: boom}, testMapping, "")

	ids, err := q.Select(context.Background(), sql.NullString{})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, ids)
}

func TestQuerySelect_Integration(t *testing.T) {
	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		t.Skip("PG_URL not set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `CREATE TEMP TABLE person (id text PRIMARY KEY, birthday date)`)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `INSERT INTO person (id, birthday) VALUES
		('1', current_date - interval '10 years'),
		('2', current_date - interval '20 years'),
		('3', current_date - interval '5 years'),
		('4', current_date - interval '1 year')`)
	require.NoError(t, err)

	q := NewQuery(conn, testMapping, "birthday > current_date - interval '18 years'")

	ids, err := q.Select(ctx, sql.NullString{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "4"}, ids)

	ids, err = q.Select(ctx, sql.NullString{String: "1", Valid: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4"}, ids)

	ids, err = q.Select(ctx, sql.NullString{String: "4", Valid: true})
	require.NoError(t, err)
	assert.Empty(t, ids)
}
