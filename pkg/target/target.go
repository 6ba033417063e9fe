// Package target defines the contract the migration engine uses to
// write documents into a search index.
package target

import (
	"context"

	"github.com/tablecast/tablecast/pkg/mapping"
)

// Health states reported by a target.
const (
	HealthGreen  = "green"
	HealthYellow = "yellow"
	HealthRed    = "red"
)

// FailedItem is one document rejected by a bulk write.
type FailedItem struct {
	// ID is the document id, empty when the document carried none.
	ID string

	// Document is the rejected payload.
	Document map[string]any

	// Reason is the target's rejection message.
	Reason string
}

// Writer loads documents into a target index. Writes are idempotent by
// document id: re-submitting a document overwrites the prior version.
type Writer interface {
	// EnsureIndex creates the index with the given schema if it does
	// not already exist.
	EnsureIndex(ctx context.Context, index string, schema *mapping.IndexSchema) error

	// BulkWrite submits documents and reports how many were accepted
	// plus the per-document failures. A returned error means the whole
	// submission failed and no per-item outcome is known.
	BulkWrite(ctx context.Context, index string, docs []map[string]any) (int, []FailedItem, error)

	// Count returns the number of documents in the index.
	Count(ctx context.Context, index string) (int64, error)

	// GetSchema returns the schema the index was created with.
	GetSchema(ctx context.Context, index string) (*mapping.IndexSchema, error)

	// Get fetches one document by id. A missing document returns
	// (nil, nil).
	Get(ctx context.Context, index string, id string) (map[string]any, error)

	// Health reports cluster health as green, yellow, or red.
	Health(ctx context.Context) (string, error)
}
