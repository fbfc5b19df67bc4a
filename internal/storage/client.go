package storage

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// Config contains connection configuration
type Config struct {
	URL      string
	User     string
	Password string
	QueryLog bool
}

// Mapping describes which source rows are copied into which target table.
// Column names are shared by both sides.
type Mapping struct {
	SourceTable string
	TargetTable string
	IDColumn    string
	Columns     []string
}

// Source returns the quoted source table name
func (m Mapping) Source() string {
	return QuoteTable(m.SourceTable)
}

// Target returns the quoted target table name
func (m Mapping) Target() string {
	return QuoteTable(m.TargetTable)
}

// ID returns the quoted identifier column
func (m Mapping) ID() string {
	return pgx.Identifier{m.IDColumn}.Sanitize()
}

// ColumnList returns the quoted column list, optionally qualified by alias
func (m Mapping) ColumnList(alias string) string {
	cols := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		if alias != "" {
			cols[i] = alias + "." + pgx.Identifier{c}.Sanitize()
		} else {
			cols[i] = pgx.Identifier{c}.Sanitize()
		}
	}
	return strings.Join(cols, ", ")
}

// QuoteTable quotes a possibly schema-qualified table name
func QuoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
