package deadletter

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("/dlq", nil, WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	return s
}

func TestRecordAndList(t *testing.T) {
	s := newTestStore(t)

	s.Record("job-1", "orders", map[string]any{"ORDER_ID": float64(1)}, errors.New("mapper_parsing_exception"))
	s.Record("job-1", "customers", map[string]any{"CUSTOMER_ID": float64(2)}, errors.New("timeout"))

	all, err := s.List("")
	require.NoError(t, err)
	require.Len(t, all, 2)

	orders, err := s.List("orders")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	e := orders[0]
	assert.Equal(t, "job-1", e.JobID)
	assert.Equal(t, "orders", e.TableName)
	assert.Equal(t, map[string]any{"ORDER_ID": float64(1)}, e.RecordData)
	assert.Equal(t, "mapper_parsing_exception", e.ErrorMessage)
	assert.Equal(t, 0, e.RetryCount)

	_, err = time.Parse(time.RFC3339, e.Timestamp)
	assert.NoError(t, err)
}

func TestRecordSameSecondDistinctFiles(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s, err := NewStore("/dlq", nil,
		WithFs(afero.NewMemMapFs()),
		WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	s.Record("job-1", "orders", map[string]any{"ORDER_ID": float64(1)}, errors.New("a"))
	s.Record("job-1", "orders", map[string]any{"ORDER_ID": float64(2)}, errors.New("b"))

	entries, err := s.List("orders")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRemoveIdempotent(t *testing.T) {
	s := newTestStore(t)
	s.Record("job-1", "orders", map[string]any{"ORDER_ID": float64(1)}, errors.New("boom"))

	entries, err := s.List("")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, s.Remove(entries[0]))
	require.NoError(t, s.Remove(entries[0]))

	entries, err = s.List("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// failingFs rejects writes so persistence failures can be exercised.
type failingFs struct{ afero.Fs }

func (f failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) != 0 {
		return nil, errors.New("disk full")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestRecordNeverErrors(t *testing.T) {
	s, err := NewStore("/dlq", nil, WithFs(failingFs{afero.NewMemMapFs()}))
	require.NoError(t, err)

	s.Record("job-1", "orders", map[string]any{"ORDER_ID": float64(1)}, errors.New("boom"))

	entries, err := s.List("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMarkRetried(t *testing.T) {
	s := newTestStore(t)
	s.Record("job-1", "orders", map[string]any{"ORDER_ID": float64(1)}, errors.New("boom"))

	entries, err := s.List("")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, s.MarkRetried(entries[0]))

	entries, err = s.List("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].RetryCount)
}
