package source

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(t *testing.T) *SQLReader {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer TEXT)`)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		_, err = db.Exec(`INSERT INTO orders (id, customer) VALUES (?, ?)`, i, "c")
		require.NoError(t, err)
	}
	return NewSQLReader(db, nil)
}

func TestCount(t *testing.T) {
	r := newTestReader(t)
	n, err := r.Count(context.Background(), "SELECT * FROM orders")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestStreamBatches(t *testing.T) {
	r := newTestReader(t)

	var batches [][]map[string]any
	err := r.Stream(context.Background(), "SELECT * FROM orders ORDER BY id", 2, func(b Batch) error {
		batches = append(batches, b.Rows)
		return nil
	})
	require.NoError(t, err)

	// 5 rows at batch size 2: two full batches plus a final partial.
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, int64(1), batches[0][0]["id"])
}

func TestStreamCallbackErrorStops(t *testing.T) {
	r := newTestReader(t)

	calls := 0
	err := r.Stream(context.Background(), "SELECT * FROM orders", 2, func(b Batch) error {
		calls++
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestStreamRejectsBadBatchSize(t *testing.T) {
	r := newTestReader(t)
	err := r.Stream(context.Background(), "SELECT * FROM orders", 0, func(Batch) error { return nil })
	require.Error(t, err)
}

func TestColumnTypes(t *testing.T) {
	r := newTestReader(t)
	cols, err := r.ColumnTypes(context.Background(), "SELECT * FROM orders")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "customer", cols[1].Name)
}

func TestSample(t *testing.T) {
	r := newTestReader(t)
	rows, err := r.Sample(context.Background(), "SELECT * FROM orders ORDER BY id", 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
