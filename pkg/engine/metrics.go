package engine

import (
	"sync"
	"time"
)

// Metrics tracks live progress for one job run. All methods are safe
// for concurrent use; status endpoints read while the run loop writes.
type Metrics struct {
	mu sync.Mutex

	total     int64
	processed int64
	failed    int64
	batches   int64
	startedAt time.Time

	now func() time.Time
}

// NewMetrics returns metrics ready for Start.
func NewMetrics() *Metrics {
	return &Metrics{now: time.Now}
}

// Start records the measured total and the clock start.
func (m *Metrics) Start(total int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
	m.startedAt = m.now()
}

// RecordBatch adds one batch's outcome.
func (m *Metrics) RecordBatch(processed, failed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed += processed
	m.failed += failed
	m.batches++
}

// Snapshot is a point-in-time copy of the metrics with derived rates.
type Snapshot struct {
	Total     int64
	Processed int64
	Failed    int64
	Batches   int64
	Elapsed   time.Duration

	// RecordsPerSecond is the observed throughput, zero before any
	// progress.
	RecordsPerSecond float64

	// ETA estimates time remaining at the observed rate; zero when the
	// rate or remainder is unknown.
	ETA time.Duration
}

// Snapshot returns a consistent copy of the current metrics.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Total:     m.total,
		Processed: m.processed,
		Failed:    m.failed,
		Batches:   m.batches,
	}
	if m.startedAt.IsZero() {
		return s
	}
	s.Elapsed = m.now().Sub(m.startedAt)

	done := m.processed + m.failed
	if done > 0 && s.Elapsed > 0 {
		s.RecordsPerSecond = float64(done) / s.Elapsed.Seconds()
		remaining := m.total - done
		if remaining > 0 && s.RecordsPerSecond > 0 {
			s.ETA = time.Duration(float64(remaining)/s.RecordsPerSecond) * time.Second
		}
	}
	return s
}
