// Package meilisearch provides a target adapter backed by a Meilisearch
// instance.
package meilisearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/meilisearch/meilisearch-go"

	"github.com/tablecast/tablecast/pkg/mapping"
	"github.com/tablecast/tablecast/pkg/target"
)

// schemaIndex holds one schema document per data index so GetSchema
// can round-trip what EnsureIndex was given. Meilisearch has no
// user-defined schema of its own.
const schemaIndex = "tablecast_schemas"

// taskPollInterval is how often task completion is polled.
const taskPollInterval = 250 * time.Millisecond

// Adapter implements target.Writer over Meilisearch.
type Adapter struct {
	client meilisearch.ServiceManager
	log    hclog.Logger
}

// New connects to a Meilisearch instance.
func New(host, apiKey string, log hclog.Logger) *Adapter {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Adapter{
		client: meilisearch.New(host, meilisearch.WithAPIKey(apiKey)),
		log:    log.Named("meilisearch"),
	}
}

type schemaDoc struct {
	ID     string `json:"id"`
	Schema string `json:"schema"`
}

// EnsureIndex creates the index if missing, applies settings derived
// from the schema, and records the schema for later retrieval.
func (a *Adapter) EnsureIndex(ctx context.Context, index string, schema *mapping.IndexSchema) error {
	if _, err := a.client.GetIndex(index); err == nil {
		return nil
	}

	task, err := a.client.CreateIndex(&meilisearch.IndexConfig{Uid: index, PrimaryKey: "id"})
	if err != nil {
		return fmt.Errorf("failed to create index %q: %w", index, err)
	}
	if err := a.waitTask(task.TaskUID); err != nil {
		return fmt.Errorf("index creation for %q did not complete: %w", index, err)
	}

	if schema == nil {
		return nil
	}
	if err := a.applySettings(index, schema); err != nil {
		return err
	}
	return a.recordSchema(index, schema)
}

// applySettings derives filterable and sortable attributes from the
// schema: keywords filter, dates and numerics sort.
func (a *Adapter) applySettings(index string, schema *mapping.IndexSchema) error {
	filterable, sortable := deriveAttributes(schema)
	if len(filterable) == 0 && len(sortable) == 0 {
		return nil
	}

	task, err := a.client.Index(index).UpdateSettings(&meilisearch.Settings{
		FilterableAttributes: filterable,
		SortableAttributes:   sortable,
	})
	if err != nil {
		return fmt.Errorf("failed to apply settings to %q: %w", index, err)
	}
	if err := a.waitTask(task.TaskUID); err != nil {
		return fmt.Errorf("settings update for %q did not complete: %w", index, err)
	}
	return nil
}

func (a *Adapter) recordSchema(index string, schema *mapping.IndexSchema) error {
	data, err := schema.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode schema for %q: %w", index, err)
	}
	task, err := a.client.Index(schemaIndex).AddDocuments([]schemaDoc{{ID: index, Schema: string(data)}}, nil)
	if err != nil {
		return fmt.Errorf("failed to record schema for %q: %w", index, err)
	}
	if err := a.waitTask(task.TaskUID); err != nil {
		return fmt.Errorf("schema record for %q did not complete: %w", index, err)
	}
	return nil
}

// BulkWrite submits the batch as one document addition task. Meilisearch
// rejects a task as a whole, so a failed task reports every document as
// failed rather than enumerating individual offenders.
func (a *Adapter) BulkWrite(ctx context.Context, index string, docs []map[string]any) (int, []target.FailedItem, error) {
	if len(docs) == 0 {
		return 0, nil, nil
	}
	task, err := a.client.Index(index).AddDocuments(docs, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to submit documents to %q: %w", index, err)
	}
	done, err := a.client.WaitForTask(task.TaskUID, taskPollInterval)
	if err != nil {
		return 0, nil, fmt.Errorf("document task for %q did not complete: %w", index, err)
	}
	if done.Status != meilisearch.TaskStatusSucceeded {
		failed := make([]target.FailedItem, 0, len(docs))
		for _, doc := range docs {
			failed = append(failed, target.FailedItem{
				ID:       fmt.Sprintf("%v", doc["id"]),
				Document: doc,
				Reason:   done.Error.Message,
			})
		}
		return 0, failed, nil
	}
	return len(docs), nil, nil
}

// Count returns the number of documents in the index.
func (a *Adapter) Count(ctx context.Context, index string) (int64, error) {
	stats, err := a.client.Index(index).GetStats()
	if err != nil {
		return 0, fmt.Errorf("failed to read stats for %q: %w", index, err)
	}
	return stats.NumberOfDocuments, nil
}

// GetSchema returns the schema recorded at index creation.
func (a *Adapter) GetSchema(ctx context.Context, index string) (*mapping.IndexSchema, error) {
	var doc schemaDoc
	if err := a.client.Index(schemaIndex).GetDocument(index, nil, &doc); err != nil {
		return nil, fmt.Errorf("no recorded schema for %q: %w", index, err)
	}
	return mapping.ParseIndexSchema([]byte(doc.Schema))
}

// Get fetches one document by id; a missing id returns (nil, nil).
func (a *Adapter) Get(ctx context.Context, index string, id string) (map[string]any, error) {
	var doc map[string]any
	err := a.client.Index(index).GetDocument(id, nil, &doc)
	if err != nil {
		var mErr *meilisearch.Error
		if errors.As(err, &mErr) && mErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch document %q from %q: %w", id, index, err)
	}
	return doc, nil
}

// Health maps instance availability to green/red. Meilisearch has no
// intermediate state.
func (a *Adapter) Health(ctx context.Context) (string, error) {
	h, err := a.client.Health()
	if err != nil {
		return target.HealthRed, nil
	}
	if h.Status == "available" {
		return target.HealthGreen, nil
	}
	return target.HealthYellow, nil
}

func deriveAttributes(schema *mapping.IndexSchema) (filterable, sortable []string) {
	for name, def := range schema.Properties {
		switch def.Type {
		case mapping.TypeKeyword, mapping.TypeBoolean:
			filterable = append(filterable, name)
		case mapping.TypeDate, mapping.TypeLong, mapping.TypeInteger,
			mapping.TypeFloat, mapping.TypeDouble, mapping.TypeScaledFloat:
			sortable = append(sortable, name)
		}
	}
	sort.Strings(filterable)
	sort.Strings(sortable)
	return filterable, sortable
}

func (a *Adapter) waitTask(taskUID int64) error {
	done, err := a.client.WaitForTask(taskUID, taskPollInterval)
	if err != nil {
		return err
	}
	if done.Status != meilisearch.TaskStatusSucceeded {
		return fmt.Errorf("task %d failed: %s", taskUID, done.Error.Message)
	}
	return nil
}
