// Package source defines the contract the migration engine uses to read
// rows from a relational source, plus a database/sql implementation.
package source

import (
	"context"
)

// Batch is one forward-only page of rows.
type Batch struct {
	Rows []map[string]any
}

// ColumnType describes one column of a query's result shape.
type ColumnType struct {
	Name string
	Type string
}

// Reader streams rows out of a relational source. Implementations are
// forward-only; the engine never rewinds a stream.
type Reader interface {
	// Count returns the number of rows the query would produce.
	Count(ctx context.Context, query string) (int64, error)

	// Stream executes the query and delivers rows in batches of at
	// most batchSize to fn. A non-nil error from fn stops the stream.
	Stream(ctx context.Context, query string, batchSize int, fn func(Batch) error) error

	// ColumnTypes reports the result shape of the query without
	// consuming rows.
	ColumnTypes(ctx context.Context, query string) ([]ColumnType, error)

	// Sample returns up to n rows for validation spot checks.
	Sample(ctx context.Context, query string, n int) ([]map[string]any, error)
}
