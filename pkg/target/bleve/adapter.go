// Package bleve provides an embedded target adapter backed by Bleve
// indexes on local disk, suitable for development and tests where no
// external search cluster is available.
package bleve

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	bmapping "github.com/blevesearch/bleve/v2/mapping"
	"github.com/hashicorp/go-hclog"

	"github.com/tablecast/tablecast/pkg/mapping"
	"github.com/tablecast/tablecast/pkg/target"
)

// schemaKey is the internal-store key holding the index schema.
var schemaKey = []byte("tablecast:schema")

// docKeyPrefix prefixes internal-store keys holding raw documents.
const docKeyPrefix = "tablecast:doc:"

// Adapter implements target.Writer over embedded Bleve indexes. Each
// index lives in its own directory under the base path; an empty base
// path keeps all indexes in memory.
type Adapter struct {
	basePath string
	log      hclog.Logger

	mu      sync.Mutex
	indexes map[string]bleve.Index
}

// New creates an adapter rooted at basePath. An empty basePath builds
// memory-only indexes.
func New(basePath string, log hclog.Logger) *Adapter {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Adapter{
		basePath: basePath,
		log:      log.Named("bleve"),
		indexes:  make(map[string]bleve.Index),
	}
}

// Close closes all open indexes.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for name, idx := range a.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close index %q: %w", name, err)
		}
		delete(a.indexes, name)
	}
	return firstErr
}

// EnsureIndex opens or creates the index and persists the schema in
// the index's internal store.
func (a *Adapter) EnsureIndex(ctx context.Context, index string, schema *mapping.IndexSchema) error {
	idx, created, err := a.open(index)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	if schema == nil {
		return nil
	}
	data, err := schema.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode schema for index %q: %w", index, err)
	}
	if err := idx.SetInternal(schemaKey, data); err != nil {
		return fmt.Errorf("failed to persist schema for index %q: %w", index, err)
	}
	return nil
}

// BulkWrite indexes the batch. A batch-level failure falls back to
// per-document indexing so individual failures can be enumerated.
func (a *Adapter) BulkWrite(ctx context.Context, index string, docs []map[string]any) (int, []target.FailedItem, error) {
	idx, _, err := a.open(index)
	if err != nil {
		return 0, nil, err
	}

	batch := idx.NewBatch()
	payloads := make(map[string][]byte, len(docs))
	for _, doc := range docs {
		id := docID(doc)
		if err := batch.Index(id, doc); err != nil {
			return a.writeOneByOne(idx, docs)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return a.writeOneByOne(idx, docs)
		}
		payloads[id] = data
	}
	if err := idx.Batch(batch); err != nil {
		a.log.Warn("batch write failed, retrying documents individually", "index", index, "error", err)
		return a.writeOneByOne(idx, docs)
	}
	for id, data := range payloads {
		if err := idx.SetInternal([]byte(docKeyPrefix+id), data); err != nil {
			return 0, nil, fmt.Errorf("failed to store document %q: %w", id, err)
		}
	}
	return len(docs), nil, nil
}

func (a *Adapter) writeOneByOne(idx bleve.Index, docs []map[string]any) (int, []target.FailedItem, error) {
	succeeded := 0
	var failed []target.FailedItem
	for _, doc := range docs {
		id := docID(doc)
		if err := indexOne(idx, id, doc); err != nil {
			failed = append(failed, target.FailedItem{ID: id, Document: doc, Reason: err.Error()})
			continue
		}
		succeeded++
	}
	return succeeded, failed, nil
}

func indexOne(idx bleve.Index, id string, doc map[string]any) error {
	if err := idx.Index(id, doc); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return idx.SetInternal([]byte(docKeyPrefix+id), data)
}

// Count returns the number of indexed documents.
func (a *Adapter) Count(ctx context.Context, index string) (int64, error) {
	idx, _, err := a.open(index)
	if err != nil {
		return 0, err
	}
	n, err := idx.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents in %q: %w", index, err)
	}
	return int64(n), nil
}

// GetSchema returns the schema recorded at index creation.
func (a *Adapter) GetSchema(ctx context.Context, index string) (*mapping.IndexSchema, error) {
	idx, _, err := a.open(index)
	if err != nil {
		return nil, err
	}
	data, err := idx.GetInternal(schemaKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema for %q: %w", index, err)
	}
	if data == nil {
		return nil, fmt.Errorf("index %q has no recorded schema", index)
	}
	return mapping.ParseIndexSchema(data)
}

// Get fetches one document by id; a missing id returns (nil, nil).
func (a *Adapter) Get(ctx context.Context, index string, id string) (map[string]any, error) {
	idx, _, err := a.open(index)
	if err != nil {
		return nil, err
	}
	data, err := idx.GetInternal([]byte(docKeyPrefix + id))
	if err != nil {
		return nil, fmt.Errorf("failed to read document %q: %w", id, err)
	}
	if data == nil {
		return nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %q: %w", id, err)
	}
	return doc, nil
}

// Health is green for an embedded store as long as the base path is
// usable.
func (a *Adapter) Health(ctx context.Context) (string, error) {
	if a.basePath == "" {
		return target.HealthGreen, nil
	}
	if err := os.MkdirAll(a.basePath, 0o755); err != nil {
		return target.HealthRed, fmt.Errorf("index path unusable: %w", err)
	}
	return target.HealthGreen, nil
}

// open returns the live index for name, opening or creating it as
// needed. The second return reports whether the index was created.
func (a *Adapter) open(name string) (bleve.Index, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if idx, ok := a.indexes[name]; ok {
		return idx, false, nil
	}

	if a.basePath == "" {
		idx, err := bleve.NewMemOnly(newIndexMapping())
		if err != nil {
			return nil, false, fmt.Errorf("failed to create in-memory index %q: %w", name, err)
		}
		a.indexes[name] = idx
		return idx, true, nil
	}

	path := filepath.Join(a.basePath, name)
	idx, err := bleve.Open(path)
	switch {
	case err == nil:
		a.indexes[name] = idx
		return idx, false, nil
	case err == bleve.ErrorIndexPathDoesNotExist:
		idx, err = bleve.New(path, newIndexMapping())
		if err != nil {
			return nil, false, fmt.Errorf("failed to create index %q: %w", name, err)
		}
		a.indexes[name] = idx
		return idx, true, nil
	default:
		return nil, false, fmt.Errorf("failed to open index %q: %w", name, err)
	}
}

func newIndexMapping() bmapping.IndexMapping {
	return bleve.NewIndexMapping()
}

// docID extracts the document id, falling back to a content-free
// placeholder only when the document carries none.
func docID(doc map[string]any) string {
	if v, ok := doc["id"]; ok {
		return fmt.Sprintf("%v", v)
	}
	if v, ok := doc["_id"]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}
