// Package engine runs migration jobs: it streams rows from a source
// reader, transforms them into documents, bulk-loads them into a target
// writer, and dead-letters what fails. One Engine owns one job run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/tablecast/tablecast/pkg/deadletter"
	"github.com/tablecast/tablecast/pkg/mapping"
	"github.com/tablecast/tablecast/pkg/models"
	"github.com/tablecast/tablecast/pkg/source"
	"github.com/tablecast/tablecast/pkg/target"
	"github.com/tablecast/tablecast/pkg/transform"
)

// errStopped aborts the stream callback when a cooperative stop or
// context cancellation is observed at a batch boundary.
var errStopped = errors.New("migration stopped")

// Engine executes one migration job.
type Engine struct {
	cfg      *mapping.Config
	strategy models.MigrationStrategy
	db       *gorm.DB
	reader   source.Reader
	writer   target.Writer
	dlq      *deadletter.Store
	log      hclog.Logger

	metrics *Metrics
	job     *models.MigrationJob
	stopped atomic.Bool

	// maxAttempts bounds bulk-write retries per batch.
	maxAttempts uint64
	maxInterval time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the mapping configuration. Required.
func WithConfig(cfg *mapping.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithStrategy selects full, incremental, or hybrid. Defaults to full.
func WithStrategy(s models.MigrationStrategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithDB sets the job store. Required.
func WithDB(db *gorm.DB) Option {
	return func(e *Engine) { e.db = db }
}

// WithReader sets the source reader. Required.
func WithReader(r source.Reader) Option {
	return func(e *Engine) { e.reader = r }
}

// WithWriter sets the target writer. Required.
func WithWriter(w target.Writer) Option {
	return func(e *Engine) { e.writer = w }
}

// WithDeadLetter sets the dead-letter store. Required.
func WithDeadLetter(d *deadletter.Store) Option {
	return func(e *Engine) { e.dlq = d }
}

// WithLogger sets the logger; nil falls back to a no-op logger.
func WithLogger(log hclog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithRetry overrides bulk-write retry bounds.
func WithRetry(attempts uint64, maxInterval time.Duration) Option {
	return func(e *Engine) {
		e.maxAttempts = attempts
		e.maxInterval = maxInterval
	}
}

// New builds an engine, validating that every required collaborator is
// present.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		strategy:    models.StrategyFull,
		metrics:     NewMetrics(),
		maxAttempts: 3,
		maxInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = hclog.NewNullLogger()
	}
	e.log = e.log.Named("engine")

	switch {
	case e.cfg == nil:
		return nil, errors.New("engine requires a mapping configuration")
	case e.db == nil:
		return nil, errors.New("engine requires a job store")
	case e.reader == nil:
		return nil, errors.New("engine requires a source reader")
	case e.writer == nil:
		return nil, errors.New("engine requires a target writer")
	case e.dlq == nil:
		return nil, errors.New("engine requires a dead-letter store")
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mapping configuration: %w", err)
	}
	return e, nil
}

// Job returns the job record, nil before Run.
func (e *Engine) Job() *models.MigrationJob {
	return e.job
}

// Metrics returns the live metrics for this run.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Stop requests a cooperative stop. The run loop observes the flag at
// the next batch boundary; in-flight batches complete first.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

// Run executes the job to a terminal state. The returned error reports
// infrastructure failure; per-record failures are dead-lettered and
// counted, not returned.
func (e *Engine) Run(ctx context.Context) error {
	e.job = &models.MigrationJob{
		ConfigName:  e.cfg.Name,
		TargetIndex: e.cfg.TargetIndex,
		Strategy:    e.strategy,
		Status:      models.JobPending,
	}
	if err := e.job.Create(e.db); err != nil {
		return err
	}

	if err := e.run(ctx); err != nil {
		if errors.Is(err, errStopped) {
			e.log.Info("migration stopped", "job_id", e.job.ID,
				"processed", e.job.ProcessedRecords, "failed", e.job.FailedRecords)
			return e.job.Transition(e.db, models.JobStopped)
		}
		e.log.Error("migration failed", "job_id", e.job.ID, "error", err)
		if ferr := e.job.Fail(e.db, err); ferr != nil {
			e.log.Error("failed to record job failure", "job_id", e.job.ID, "error", ferr)
		}
		return err
	}

	e.log.Info("migration completed", "job_id", e.job.ID,
		"processed", e.job.ProcessedRecords, "failed", e.job.FailedRecords)
	return e.job.Transition(e.db, models.JobCompleted)
}

func (e *Engine) run(ctx context.Context) error {
	query, watermark, err := e.resolveQuery()
	if err != nil {
		return err
	}

	schema, err := e.cfg.BuildSchema()
	if err != nil {
		return fmt.Errorf("failed to build index schema: %w", err)
	}
	if err := e.writer.EnsureIndex(ctx, e.cfg.TargetIndex, schema); err != nil {
		return fmt.Errorf("failed to ensure target index: %w", err)
	}

	// An incremental run with a prior watermark streams without an
	// upfront total; the total stays zero and ETA is unreported.
	var total int64
	if e.strategy == models.StrategyIncremental && watermark != "" {
		e.log.Info("incremental run, skipping upfront count", "config", e.cfg.Name)
	} else {
		total, err = e.reader.Count(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to count source rows: %w", err)
		}
	}

	if err := e.job.Transition(e.db, models.JobRunning); err != nil {
		return err
	}
	if err := e.job.SetTotal(e.db, total); err != nil {
		return err
	}
	e.metrics.Start(total)
	e.log.Info("migration started", "job_id", e.job.ID, "strategy", e.strategy,
		"total", total, "batch_size", e.cfg.EffectiveBatchSize())

	tr := transform.New(e.cfg, e.job.ID, e.log)
	watermarkColumn, _ := e.cfg.EffectiveWatermarkColumn()
	var maxWatermark string

	err = e.reader.Stream(ctx, query, e.cfg.EffectiveBatchSize(), func(b source.Batch) error {
		if e.stopped.Load() || ctx.Err() != nil {
			return errStopped
		}

		processed, failed := e.processBatch(ctx, tr, b.Rows)
		e.metrics.RecordBatch(processed, failed)
		if err := e.job.AddProgress(e.db, processed, failed); err != nil {
			return err
		}

		if e.strategy != models.StrategyFull {
			if wm := maxColumnValue(b.Rows, watermarkColumn); wm > maxWatermark {
				maxWatermark = wm
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if maxWatermark != "" {
		if err := e.job.SetWatermark(e.db, maxWatermark); err != nil {
			return err
		}
	}
	return nil
}

// resolveQuery applies the strategy's watermark filter, warning when an
// incremental run falls back to the default watermark column. The
// resolved watermark is returned alongside the query.
func (e *Engine) resolveQuery() (string, string, error) {
	if e.strategy == models.StrategyFull {
		return e.cfg.SourceQuery, "", nil
	}

	column, explicit := e.cfg.EffectiveWatermarkColumn()
	if !explicit {
		e.log.Warn("no watermark column configured, assuming default",
			"config", e.cfg.Name, "column", column)
	}

	watermark, err := models.LatestWatermark(e.db, e.cfg.Name)
	if err != nil {
		return "", "", err
	}
	if watermark == "" {
		e.log.Info("no prior watermark, reading full source", "config", e.cfg.Name)
	}
	query, err := buildQuery(e.strategy, e.cfg.SourceQuery, column, watermark)
	return query, watermark, err
}

// processBatch transforms and loads one batch, dead-lettering every
// failure. The returned counts always sum to the number of documents
// attempted plus the rows that failed transformation.
func (e *Engine) processBatch(ctx context.Context, tr *transform.Transformer, rows []map[string]any) (processed, failed int64) {
	docs, transformFailures := tr.TransformBatch(rows)
	for _, f := range transformFailures {
		e.dlq.Record(e.job.ID, e.cfg.SourceTable, f.Row, f.Err)
	}
	failed = int64(len(transformFailures))

	if len(docs) == 0 {
		return 0, failed
	}

	loaded, loadFailed := e.loadBatch(ctx, docs)
	return loaded, failed + loadFailed
}

// maxColumnValue finds the greatest stringified value of a column in
// the batch. Time values compare correctly in RFC3339.
func maxColumnValue(rows []map[string]any, column string) string {
	var max string
	for _, row := range rows {
		v, ok := row[column]
		if !ok || v == nil {
			continue
		}
		s := fmt.Sprintf("%v", transform.Coerce(v, mapping.TypeDate))
		if s > max {
			max = s
		}
	}
	return max
}
