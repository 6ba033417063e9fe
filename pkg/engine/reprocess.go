package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/tablecast/tablecast/pkg/deadletter"
	"github.com/tablecast/tablecast/pkg/mapping"
	"github.com/tablecast/tablecast/pkg/target"
	"github.com/tablecast/tablecast/pkg/transform"
)

// ReprocessSummary reports one reprocessing pass.
type ReprocessSummary struct {
	// Processed is how many entries loaded successfully and were
	// removed from the store.
	Processed int

	// Remaining is how many entries stayed dead-lettered.
	Remaining int
}

// Reprocessor replays dead-lettered records through transformation and
// loading.
type Reprocessor struct {
	cfg    *mapping.Config
	writer target.Writer
	dlq    *deadletter.Store
	log    hclog.Logger
}

// NewReprocessor builds a reprocessor for one configuration.
func NewReprocessor(cfg *mapping.Config, writer target.Writer, dlq *deadletter.Store, log hclog.Logger) *Reprocessor {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Reprocessor{
		cfg:    cfg,
		writer: writer,
		dlq:    dlq,
		log:    log.Named("reprocess"),
	}
}

// Reprocess replays dead-lettered entries, optionally filtered to one
// table. Entries that load are removed; entries that fail again stay
// with an incremented retry count. Entry-level failures accumulate in
// the returned error without aborting the pass.
func (r *Reprocessor) Reprocess(ctx context.Context, table string) (*ReprocessSummary, error) {
	entries, err := r.dlq.List(table)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead-letter entries: %w", err)
	}

	summary := &ReprocessSummary{}
	var merr *multierror.Error

	for _, entry := range entries {
		if ctx.Err() != nil {
			summary.Remaining += len(entries) - summary.Processed - summary.Remaining
			return summary, ctx.Err()
		}

		if err := r.reprocessEntry(ctx, entry); err != nil {
			r.log.Warn("reprocessing failed", "table", entry.TableName,
				"retry_count", entry.RetryCount, "error", err)
			if rerr := r.dlq.MarkRetried(entry); rerr != nil {
				merr = multierror.Append(merr, rerr)
			}
			merr = multierror.Append(merr, err)
			summary.Remaining++
			continue
		}
		if err := r.dlq.Remove(entry); err != nil {
			merr = multierror.Append(merr, err)
		}
		summary.Processed++
	}

	r.log.Info("reprocessing pass finished", "table", table,
		"processed", summary.Processed, "remaining", summary.Remaining)
	return summary, merr.ErrorOrNil()
}

// reprocessEntry re-transforms and re-loads one dead-lettered row.
func (r *Reprocessor) reprocessEntry(ctx context.Context, entry deadletter.Entry) error {
	tr := transform.New(r.cfg, entry.JobID, r.log)
	docs, failures := tr.TransformBatch([]map[string]any{entry.RecordData})
	if len(failures) > 0 {
		return fmt.Errorf("transformation failed again: %w", failures[0].Err)
	}

	payload := make([]map[string]any, len(docs))
	for i, doc := range docs {
		ensureDocID(doc)
		payload[i] = doc
	}
	n, failedItems, err := r.writer.BulkWrite(ctx, r.cfg.TargetIndex, payload)
	if err != nil {
		return fmt.Errorf("failed to load reprocessed documents: %w", err)
	}
	if len(failedItems) > 0 {
		return errors.New(failedItems[0].Reason)
	}
	if n != len(payload) {
		return fmt.Errorf("target accepted %d of %d reprocessed documents", n, len(payload))
	}
	return nil
}
