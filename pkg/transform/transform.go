// Package transform turns source rows into target documents according
// to a mapping configuration. Each row is transformed in isolation: a
// failure on one row never affects its batch peers.
package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/tablecast/tablecast/pkg/mapping"
)

// Document is one output document keyed by target field path.
type Document map[string]any

// Failure records one row that could not be transformed.
type Failure struct {
	Row   map[string]any
	Field string
	Err   error
}

func (f Failure) Error() string {
	if f.Field != "" {
		return fmt.Sprintf("transform failed on field %q: %v", f.Field, f.Err)
	}
	return fmt.Sprintf("transform failed: %v", f.Err)
}

// Transformer applies one mapping configuration to row batches.
type Transformer struct {
	cfg   *mapping.Config
	jobID string
	log   hclog.Logger
}

// New builds a transformer for one job run. A nil logger is replaced
// with a no-op logger.
func New(cfg *mapping.Config, jobID string, log hclog.Logger) *Transformer {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Transformer{
		cfg:   cfg,
		jobID: jobID,
		log:   log.Named("transform"),
	}
}

// TransformBatch transforms every row in the batch. Rows that fail are
// returned as failures; the rest become documents. When the
// configuration declares parent-child mappings, each row may yield a
// parent document plus child documents.
func (t *Transformer) TransformBatch(rows []map[string]any) ([]Document, []Failure) {
	docs := make([]Document, 0, len(rows))
	var failures []Failure

	for _, row := range rows {
		out, err := t.transformRow(row)
		if err != nil {
			var f Failure
			if fe, ok := err.(Failure); ok {
				f = fe
				f.Row = row
			} else {
				f = Failure{Row: row, Err: err}
			}
			t.log.Warn("row transformation failed", "error", f.Err, "field", f.Field)
			failures = append(failures, f)
			continue
		}
		docs = append(docs, out...)
	}

	return docs, failures
}

// transformRow builds the documents for one row.
func (t *Transformer) transformRow(row map[string]any) ([]Document, error) {
	doc := Document{}

	for _, f := range t.cfg.Fields {
		if err := t.applyField(doc, row, f); err != nil {
			return nil, err
		}
	}

	for _, n := range t.cfg.Nested {
		for _, f := range n.Fields {
			if err := t.applyField(doc, row, f); err != nil {
				return nil, err
			}
		}
	}

	t.stamp(doc)

	if len(t.cfg.ParentChild) == 0 {
		return []Document{doc}, nil
	}
	return t.splitParentChild(doc, row)
}

// applyField maps one source field into the document, running its
// transformation rules then coercing toward the target type.
func (t *Transformer) applyField(doc Document, row map[string]any, f mapping.FieldMapping) error {
	value, ok := lookupSourceField(row, f.SourceField)
	if !ok {
		return nil
	}

	value, err := ApplyRules(value, f.Rules)
	if err != nil {
		return Failure{Field: f.SourceField, Err: err}
	}

	value = Coerce(value, f.TargetType)
	if f.IsArray {
		value = asArray(value)
	}

	setPath(doc, f.TargetField, value)
	return nil
}

// splitParentChild emits a parent document and one child document per
// parent-child mapping, each carrying the join field. The parent keeps
// the full flat document; children carry only their declared fields
// plus the join relation and routing key.
func (t *Transformer) splitParentChild(doc Document, row map[string]any) ([]Document, error) {
	out := make([]Document, 0, 1+len(t.cfg.ParentChild))

	parent := Document{}
	for k, v := range doc {
		parent[k] = v
	}

	for _, pc := range t.cfg.ParentChild {
		parent[pc.JoinField] = pc.ParentType

		child := Document{}
		for _, f := range pc.ChildFields {
			if err := t.applyField(child, row, f); err != nil {
				return nil, err
			}
		}
		if len(child) == 0 {
			continue
		}
		t.stamp(child)

		join := map[string]any{"name": pc.ChildType}
		if pc.RelationshipKey != "" {
			if parentID, ok := lookupSourceField(row, pc.RelationshipKey); ok {
				join["parent"] = fmt.Sprintf("%v", parentID)
			}
		}
		child[pc.JoinField] = join
		out = append(out, child)
	}

	return append([]Document{parent}, out...), nil
}

// stamp adds the audit fields every migrated document carries.
func (t *Transformer) stamp(doc Document) {
	doc[mapping.SystemFieldTimestamp] = time.Now().UTC().Format(time.RFC3339)
	doc[mapping.SystemFieldJobID] = t.jobID
}

// lookupSourceField resolves a column name against a row, accepting
// table-qualified names ("orders.id") when the bare name is absent.
func lookupSourceField(row map[string]any, field string) (any, bool) {
	if v, ok := row[field]; ok {
		return v, true
	}
	if i := strings.LastIndex(field, "."); i >= 0 {
		if v, ok := row[field[i+1:]]; ok {
			return v, true
		}
	}
	return nil, false
}

// setPath assigns a value at a dot-delimited path, creating
// intermediate maps as needed. A non-map intermediate is overwritten.
func setPath(doc Document, path string, value any) {
	parts := strings.Split(path, ".")
	cur := map[string]any(doc)
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func asArray(v any) any {
	if _, ok := v.([]any); ok {
		return v
	}
	return []any{v}
}
