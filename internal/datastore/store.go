// Package datastore writes flat rows of book data to SQLite, Postgres or a
// remote Datasette instance.
package datastore

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ColumnType is the portable type of a table column.
type ColumnType int

const (
	Text ColumnType = iota
	Integer
	Boolean
)

// Column describes one table column.
type Column struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
}

// Table describes a table independently of the SQL dialect.
type Table struct {
	Name    string
	Columns []Column
}

// PrimaryKey returns the name of the primary key column, or "".
func (t Table) PrimaryKey() string {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}

// Store defines the interface for row-oriented export targets
type Store interface {
	// Connect establishes a connection to the data store
	Connect(ctx context.Context) error

	// CreateTable creates the table if it doesn't exist
	CreateTable(ctx context.Context, table Table) error

	// BatchInsert upserts records into the specified table
	BatchInsert(ctx context.Context, database, table string, records []map[string]any) error

	// Close closes the connection to the data store
	Close() error
}

// columnsOf returns the union of keys over all records in sorted order, so
// statements are identical between runs.
func columnsOf(records []map[string]any) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, r := range records {
		for col := range r {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(t Table, typeName func(ColumnType) string) (string, error) {
	if t.Name == "" || len(t.Columns) == 0 {
		return "", fmt.Errorf("table %q has no columns", t.Name)
	}
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def := quoteIdent(c.Name) + " " + typeName(c.Type)
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(t.Name), strings.Join(defs, ", ")), nil
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
