package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-hclog"

	// Postgres driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
)

// SQLReader implements Reader over database/sql.
type SQLReader struct {
	db  *sql.DB
	log hclog.Logger
}

// Open connects to a source database. driverName is a registered
// database/sql driver ("pgx" for postgres).
func Open(driverName, dsn string, log hclog.Logger) (*SQLReader, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach source database: %w", err)
	}
	return &SQLReader{db: db, log: log.Named("source")}, nil
}

// NewSQLReader wraps an existing connection pool.
func NewSQLReader(db *sql.DB, log hclog.Logger) *SQLReader {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &SQLReader{db: db, log: log.Named("source")}
}

// Close releases the underlying pool.
func (r *SQLReader) Close() error {
	return r.db.Close()
}

// Count wraps the query in a COUNT(*) subselect.
func (r *SQLReader) Count(ctx context.Context, query string) (int64, error) {
	var n int64
	counted := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS migration_count", query)
	if err := r.db.QueryRowContext(ctx, counted).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count source rows: %w", err)
	}
	return n, nil
}

// Stream executes the query and hands rows to fn in batches. The final
// partial batch is delivered before returning.
func (r *SQLReader) Stream(ctx context.Context, query string, batchSize int, fn func(Batch) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to execute source query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read source columns: %w", err)
	}

	batch := make([]map[string]any, 0, batchSize)
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return err
		}
		batch = append(batch, row)
		if len(batch) == batchSize {
			if err := fn(Batch{Rows: batch}); err != nil {
				return err
			}
			batch = make([]map[string]any, 0, batchSize)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("source stream failed: %w", err)
	}
	if len(batch) > 0 {
		if err := fn(Batch{Rows: batch}); err != nil {
			return err
		}
	}
	return nil
}

// ColumnTypes runs the query with a LIMIT 0 wrapper and reports the
// result shape.
func (r *SQLReader) ColumnTypes(ctx context.Context, query string) ([]ColumnType, error) {
	limited := fmt.Sprintf("SELECT * FROM (%s) AS migration_shape LIMIT 0", query)
	rows, err := r.db.QueryContext(ctx, limited)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect source columns: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read source column types: %w", err)
	}
	out := make([]ColumnType, 0, len(types))
	for _, t := range types {
		out = append(out, ColumnType{Name: t.Name(), Type: t.DatabaseTypeName()})
	}
	return out, nil
}

// Sample returns up to n rows for spot checks.
func (r *SQLReader) Sample(ctx context.Context, query string, n int) ([]map[string]any, error) {
	limited := fmt.Sprintf("SELECT * FROM (%s) AS migration_sample LIMIT %d", query, n)
	rows, err := r.db.QueryContext(ctx, limited)
	if err != nil {
		return nil, fmt.Errorf("failed to sample source rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read source columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source sample failed: %w", err)
	}
	return out, nil
}

func scanRow(rows *sql.Rows, cols []string) (map[string]any, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan source row: %w", err)
	}
	row := make(map[string]any, len(cols))
	for i, c := range cols {
		row[c] = values[i]
	}
	return row, nil
}
