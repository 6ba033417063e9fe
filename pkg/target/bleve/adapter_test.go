package bleve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecast/tablecast/pkg/mapping"
	"github.com/tablecast/tablecast/pkg/target"
)

func testSchema(t *testing.T) *mapping.IndexSchema {
	t.Helper()
	schema, err := mapping.BuildIndexSchema([]mapping.FieldMapping{
		{SourceField: "ORDER_ID", TargetField: "id", TargetType: mapping.TypeKeyword},
		{SourceField: "CUSTOMER", TargetField: "customer", TargetType: mapping.TypeText},
	}, nil, nil)
	require.NoError(t, err)
	return schema
}

func TestEnsureIndexAndSchemaRoundTrip(t *testing.T) {
	a := New("", nil)
	defer a.Close()
	ctx := context.Background()

	schema := testSchema(t)
	require.NoError(t, a.EnsureIndex(ctx, "orders", schema))
	// Idempotent on an existing index.
	require.NoError(t, a.EnsureIndex(ctx, "orders", schema))

	got, err := a.GetSchema(ctx, "orders")
	require.NoError(t, err)

	want, err := schema.Marshal()
	require.NoError(t, err)
	gotBytes, err := got.Marshal()
	require.NoError(t, err)
	assert.Equal(t, want, gotBytes)
}

func TestBulkWriteCountAndGet(t *testing.T) {
	a := New("", nil)
	defer a.Close()
	ctx := context.Background()

	require.NoError(t, a.EnsureIndex(ctx, "orders", testSchema(t)))

	docs := []map[string]any{
		{"id": "1", "customer": "Alice"},
		{"id": "2", "customer": "Bob"},
	}
	n, failed, err := a.BulkWrite(ctx, "orders", docs)
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, 2, n)

	count, err := a.Count(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	doc, err := a.Get(ctx, "orders", "1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Alice", doc["customer"])

	missing, err := a.Get(ctx, "orders", "99")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBulkWriteOverwritesById(t *testing.T) {
	a := New("", nil)
	defer a.Close()
	ctx := context.Background()

	require.NoError(t, a.EnsureIndex(ctx, "orders", testSchema(t)))

	_, _, err := a.BulkWrite(ctx, "orders", []map[string]any{{"id": "1", "customer": "Alice"}})
	require.NoError(t, err)
	_, _, err = a.BulkWrite(ctx, "orders", []map[string]any{{"id": "1", "customer": "Alicia"}})
	require.NoError(t, err)

	count, err := a.Count(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	doc, err := a.Get(ctx, "orders", "1")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", doc["customer"])
}

func TestHealth(t *testing.T) {
	a := New("", nil)
	defer a.Close()
	status, err := a.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, target.HealthGreen, status)
}
