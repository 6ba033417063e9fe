package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()

	// Fixed clock: run starts at t0, snapshot taken 10s later.
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	current := t0
	m.now = func() time.Time { return current }

	m.Start(1000)
	m.RecordBatch(95, 5)
	current = t0.Add(10 * time.Second)

	s := m.Snapshot()
	assert.Equal(t, int64(1000), s.Total)
	assert.Equal(t, int64(95), s.Processed)
	assert.Equal(t, int64(5), s.Failed)
	assert.Equal(t, int64(1), s.Batches)
	assert.Equal(t, 10*time.Second, s.Elapsed)
	assert.InDelta(t, 10.0, s.RecordsPerSecond, 0.001)
	// 900 remaining at 10 records/second.
	assert.Equal(t, 90*time.Second, s.ETA)
}

func TestMetricsSnapshotBeforeStart(t *testing.T) {
	m := NewMetrics()
	s := m.Snapshot()
	assert.Zero(t, s.Elapsed)
	assert.Zero(t, s.ETA)
	assert.Zero(t, s.RecordsPerSecond)
}

func TestMetricsNoETAWhenDone(t *testing.T) {
	m := NewMetrics()
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	current := t0
	m.now = func() time.Time { return current }

	m.Start(100)
	m.RecordBatch(100, 0)
	current = t0.Add(time.Second)

	s := m.Snapshot()
	assert.Zero(t, s.ETA)
	assert.InDelta(t, 100.0, s.RecordsPerSecond, 0.001)
}
