package meilisearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecast/tablecast/pkg/mapping"
)

// Integration tests against a live Meilisearch run separately; these
// cover construction and settings derivation only.

func TestNew(t *testing.T) {
	a := New("http://localhost:7700", "masterKey", nil)
	require.NotNil(t, a)
	require.NotNil(t, a.client)
}

func TestDeriveAttributes(t *testing.T) {
	schema, err := mapping.BuildIndexSchema([]mapping.FieldMapping{
		{SourceField: "STATUS", TargetField: "status", TargetType: mapping.TypeKeyword},
		{SourceField: "TITLE", TargetField: "title", TargetType: mapping.TypeText},
		{SourceField: "PRICE", TargetField: "price", TargetType: mapping.TypeScaledFloat},
		{SourceField: "CREATED", TargetField: "created_date", TargetType: mapping.TypeDate},
	}, nil, nil)
	require.NoError(t, err)

	filterable, sortable := deriveAttributes(schema)
	// System job id field is a keyword and filters too.
	assert.Equal(t, []string{mapping.SystemFieldJobID, "status"}, filterable)
	assert.Equal(t, []string{mapping.SystemFieldTimestamp, "created_date", "price"}, sortable)
}
