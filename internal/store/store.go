// Package store provides whole-table access to tabular stores such as a
// spreadsheet. Reads return every row plus a version token and writes
// replace the table only if that version is still current.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTableNotFound is returned when the named table does not exist.
	ErrTableNotFound = errors.New("table not found")
	// ErrVersionConflict is returned by Write when the table changed since it was read.
	ErrVersionConflict = errors.New("table version conflict")
	// ErrSchemaMismatch is returned when a requested column is missing from the table.
	ErrSchemaMismatch = errors.New("table schema mismatch")
	// ErrOutcomeUnknown is returned by Write when the request may have been
	// applied but no answer came back. Retrying could apply it twice.
	ErrOutcomeUnknown = errors.New("write outcome unknown")
)

// Table is a full snapshot of a named table.
// An empty Version means the table does not exist yet.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Version string     `json:"version,omitempty"`
}

// IsEmpty reports whether the table holds no rows.
func (t *Table) IsEmpty() bool {
	return t == nil || len(t.Rows) == 0
}

// TableStore reads and replaces whole tables.
type TableStore interface {
	// Read returns the table restricted to columns, in that order. It never
	// serves cached data.
	Read(ctx context.Context, table string, columns []string) (*Table, error)
	// Write replaces the table with t. t.Version must equal the version
	// currently stored (empty when the table does not exist yet), otherwise
	// ErrVersionConflict is returned.
	Write(ctx context.Context, table string, t *Table) error
}

// Project returns a copy of t restricted to columns, in that order.
// Short rows are padded with empty cells. A table with neither columns nor
// rows projects to an empty table with the requested header.
func (t *Table) Project(columns []string) (*Table, error) {
	if len(columns) == 0 {
		return t, nil
	}
	out := &Table{Columns: append([]string(nil), columns...), Version: t.Version}
	if len(t.Columns) == 0 && len(t.Rows) == 0 {
		return out, nil
	}

	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}
	source := make([]int, len(columns))
	for i, c := range columns {
		pos, ok := index[c]
		if !ok {
			return nil, fmt.Errorf("%w: column %q not present", ErrSchemaMismatch, c)
		}
		source[i] = pos
	}

	out.Rows = make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		projected := make([]string, len(columns))
		for i, pos := range source {
			if pos < len(row) {
				projected[i] = row[pos]
			}
		}
		out.Rows = append(out.Rows, projected)
	}
	return out, nil
}
