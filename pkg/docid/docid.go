// Package docid derives stable document identifiers for migrated
// records. Target writes are idempotent by document id, so the same
// source row must always map to the same id across runs and across
// reprocessing.
package docid

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// namespace scopes derived UUIDs to this system so ids never collide
// with UUIDs minted elsewhere.
var namespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// FromValue normalizes a primary-key value into a document id.
// Numeric keys lose driver-specific type variance: int64(7), "7", and
// float64(7) all yield "7".
func FromValue(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%v", n)
	case []byte:
		return string(n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Composite is a table-qualified document id for indexes that hold
// documents from more than one source table.
type Composite struct {
	Table string
	Key   string
}

// String renders "table:key"; a composite without a table is just the
// key.
func (c Composite) String() string {
	if c.Table == "" {
		return c.Key
	}
	return c.Table + ":" + c.Key
}

// Parse splits a rendered composite id.
func Parse(s string) Composite {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return Composite{Table: s[:i], Key: s[i+1:]}
	}
	return Composite{Key: s}
}

// Derive computes a deterministic UUID for a record with no usable
// primary key, from the canonical JSON of its content. Re-running a
// migration over the same row reproduces the same id, keeping writes
// idempotent even without a declared key.
func Derive(record map[string]any) string {
	return uuid.NewSHA1(namespace, canonicalJSON(record)).String()
}

// canonicalJSON renders the record with sorted keys so field order
// never changes the derived id. encoding/json sorts map keys, but
// nested non-map values are normalized through fmt first.
func canonicalJSON(record map[string]any) []byte {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		b.Write(kb)
		b.WriteByte(':')
		vb, err := json.Marshal(record[k])
		if err != nil {
			vb, _ = json.Marshal(fmt.Sprintf("%v", record[k]))
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return []byte(b.String())
}
