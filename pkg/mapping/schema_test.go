package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndexSchemaDeterministic(t *testing.T) {
	fields := []FieldMapping{
		{SourceField: "ORDER_ID", TargetField: "order_id", TargetType: TypeLong},
		{SourceField: "CUSTOMER_NAME", TargetField: "customer_name", TargetType: TypeText},
		{SourceField: "ORDER_DATE", TargetField: "order_date", TargetType: TypeDate},
	}
	nested := []NestedMapping{
		{
			Name: "items",
			Path: "items",
			Fields: []FieldMapping{
				{SourceField: "ITEM_SKU", TargetField: "items.sku", TargetType: TypeKeyword},
				{SourceField: "ITEM_QTY", TargetField: "items.quantity", TargetType: TypeLong},
			},
		},
	}

	a, err := BuildIndexSchema(fields, nested, nil)
	require.NoError(t, err)
	b, err := BuildIndexSchema(fields, nested, nil)
	require.NoError(t, err)

	ab, err := a.Marshal()
	require.NoError(t, err)
	bb, err := b.Marshal()
	require.NoError(t, err)
	assert.Equal(t, ab, bb)

	// Declaration order must not affect the output.
	reversed := []FieldMapping{fields[2], fields[1], fields[0]}
	c, err := BuildIndexSchema(reversed, nested, nil)
	require.NoError(t, err)
	cb, err := c.Marshal()
	require.NoError(t, err)
	assert.Equal(t, ab, cb)
}

func TestBuildIndexSchemaRoundTrip(t *testing.T) {
	fields := []FieldMapping{
		{SourceField: "TITLE", TargetField: "title", TargetType: TypeText},
	}
	schema, err := BuildIndexSchema(fields, nil, nil)
	require.NoError(t, err)

	data, err := schema.Marshal()
	require.NoError(t, err)

	parsed, err := ParseIndexSchema(data)
	require.NoError(t, err)
	again, err := parsed.Marshal()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestBuildIndexSchemaConflict(t *testing.T) {
	fields := []FieldMapping{
		{SourceField: "A", TargetField: "status", TargetType: TypeKeyword},
		{SourceField: "B", TargetField: "status", TargetType: TypeText},
	}
	_, err := BuildIndexSchema(fields, nil, nil)
	require.Error(t, err)
	var conflict *SchemaConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "status", conflict.Path)
}

func TestBuildIndexSchemaNestedConflict(t *testing.T) {
	fields := []FieldMapping{
		{SourceField: "A", TargetField: "items", TargetType: TypeKeyword},
	}
	nested := []NestedMapping{
		{Name: "items", Path: "items", Fields: []FieldMapping{
			{SourceField: "SKU", TargetField: "items.sku", TargetType: TypeKeyword},
		}},
	}
	_, err := BuildIndexSchema(fields, nested, nil)
	var conflict *SchemaConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "items", conflict.Path)
}

func TestBuildIndexSchemaTextKeywordSubfield(t *testing.T) {
	schema, err := BuildIndexSchema([]FieldMapping{
		{SourceField: "NAME", TargetField: "name", TargetType: TypeText},
	}, nil, nil)
	require.NoError(t, err)

	def := schema.Properties["name"]
	assert.Equal(t, TypeText, def.Type)
	require.Contains(t, def.Fields, "keyword")
	assert.Equal(t, TypeKeyword, def.Fields["keyword"].Type)
	assert.Equal(t, 256, def.Fields["keyword"].IgnoreAbove)
}

func TestBuildIndexSchemaDateFormat(t *testing.T) {
	schema, err := BuildIndexSchema([]FieldMapping{
		{SourceField: "CREATED", TargetField: "created_date", TargetType: TypeDate},
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DateFormats, schema.Properties["created_date"].Format)
}

func TestBuildIndexSchemaSystemFields(t *testing.T) {
	schema, err := BuildIndexSchema(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeDate, schema.Properties[SystemFieldTimestamp].Type)
	assert.Equal(t, TypeKeyword, schema.Properties[SystemFieldJobID].Type)
}

func TestBuildIndexSchemaNested(t *testing.T) {
	nested := []NestedMapping{
		{
			Name:            "addresses",
			Path:            "addresses",
			IncludeInParent: true,
			Fields: []FieldMapping{
				{SourceField: "CITY", TargetField: "addresses.city", TargetType: TypeKeyword},
			},
		},
	}
	schema, err := BuildIndexSchema(nil, nested, nil)
	require.NoError(t, err)

	def := schema.Properties["addresses"]
	assert.Equal(t, TypeNested, def.Type)
	assert.True(t, def.IncludeInParent)
	require.NotNil(t, def.Dynamic)
	assert.False(t, *def.Dynamic)
	require.Contains(t, def.Properties, "city")
	assert.Equal(t, TypeKeyword, def.Properties["city"].Type)
}

func TestBuildIndexSchemaParentChildJoin(t *testing.T) {
	pc := []ParentChildMapping{
		{ParentType: "department", ChildType: "employee", JoinField: "department_employee"},
	}
	schema, err := BuildIndexSchema(nil, nil, pc)
	require.NoError(t, err)

	def := schema.Properties["department_employee"]
	assert.Equal(t, TypeJoin, def.Type)
	assert.Equal(t, map[string]string{"department": "employee"}, def.Relations)
}

func TestBulkLoadSettings(t *testing.T) {
	s := BulkLoadSettings()
	assert.Equal(t, 3, s.Shards)
	assert.Equal(t, 0, s.Replicas)
	assert.Equal(t, "30s", s.RefreshInterval)
	assert.Equal(t, 2000, s.TotalFieldsLimit)
	assert.Equal(t, 100, s.NestedFieldLimit)
	assert.Equal(t, 50000, s.MaxResultWindow)
}
