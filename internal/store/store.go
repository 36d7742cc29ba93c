// Package store abstracts the tabular backing store. Tables are ordered
// rows of string cells; all type coercion happens in the repository layer.
package store

import "context"

// AppendResult reports the outcome of a conditional append.
type AppendResult struct {
	Appended  bool
	Duplicate bool
}

// TabularStore is the contract the repositories require from a backend.
// Row and column indices are zero-based; row 0 is the header row.
type TabularStore interface {
	// CreateTable ensures the named table exists. Creating an existing
	// table is a no-op.
	CreateTable(ctx context.Context, table string) error

	// GetRows returns every row of the table, header included. A missing
	// table yields an empty result, not an error.
	GetRows(ctx context.Context, table string) ([][]string, error)

	// AppendRows adds rows after the current last row.
	AppendRows(ctx context.Context, table string, rows [][]string) error

	// AppendRowsIfAbsent appends rows only when no existing row carries the
	// same value in keyCol as the first row being appended. The check and
	// the append are one store request; callers rely on this for
	// dedup-on-create.
	AppendRowsIfAbsent(ctx context.Context, table string, rows [][]string, keyCol int) (AppendResult, error)

	// UpdateRange overwrites len(rows) rows starting at startRow.
	UpdateRange(ctx context.Context, table string, startRow int, rows [][]string) error
}
