package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/tablecast/tablecast/pkg/docid"
	"github.com/tablecast/tablecast/pkg/mapping"
	"github.com/tablecast/tablecast/pkg/transform"
)

// loadBatch writes documents to the target with bounded retries. When
// the whole submission keeps failing, every document is dead-lettered
// and the run continues with the next batch; a bad batch never kills
// the job.
func (e *Engine) loadBatch(ctx context.Context, docs []transform.Document) (processed, failed int64) {
	payload := make([]map[string]any, len(docs))
	for i, doc := range docs {
		ensureDocID(doc)
		payload[i] = doc
	}

	var succeeded int
	rejected := make(map[int]string)

	operation := func() error {
		n, failedItems, err := e.writer.BulkWrite(ctx, e.cfg.TargetIndex, payload)
		if err != nil {
			return err
		}
		succeeded = n
		rejected = make(map[int]string)
		for _, item := range failedItems {
			for i, doc := range payload {
				if fmt.Sprintf("%v", doc["id"]) == item.ID {
					rejected[i] = item.Reason
					break
				}
			}
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = e.maxInterval
	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, e.maxAttempts-1), ctx))
	if err != nil {
		e.log.Error("bulk write failed after retries, dead-lettering batch",
			"index", e.cfg.TargetIndex, "size", len(payload), "error", err)
		for _, doc := range payload {
			e.dlq.Record(e.job.ID, e.cfg.SourceTable, doc, err)
		}
		return 0, int64(len(payload))
	}

	for i, reason := range rejected {
		e.dlq.Record(e.job.ID, e.cfg.SourceTable, payload[i], errors.New(reason))
	}
	return int64(succeeded), int64(len(payload) - succeeded)
}

// ensureDocID guarantees every document carries an id so target writes
// stay idempotent. A document whose mapping produced no id gets a
// deterministic UUID derived from its content, so re-running the same
// config overwrites instead of duplicating.
func ensureDocID(doc transform.Document) {
	if v, ok := doc["id"]; ok && v != nil && fmt.Sprintf("%v", v) != "" {
		doc["id"] = docid.FromValue(v)
		return
	}

	// Audit fields change per run and must not influence the id.
	content := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == mapping.SystemFieldTimestamp || k == mapping.SystemFieldJobID {
			continue
		}
		content[k] = v
	}
	doc["id"] = docid.Derive(content)
}
