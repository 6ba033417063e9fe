package mapping

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TargetType is a target index field type.
type TargetType string

const (
	TypeText        TargetType = "text"
	TypeKeyword     TargetType = "keyword"
	TypeLong        TargetType = "long"
	TypeInteger     TargetType = "integer"
	TypeFloat       TargetType = "float"
	TypeDouble      TargetType = "double"
	TypeScaledFloat TargetType = "scaled_float"
	TypeDate        TargetType = "date"
	TypeBinary      TargetType = "binary"
	TypeBoolean     TargetType = "boolean"
	TypeNested      TargetType = "nested"
	TypeJoin        TargetType = "join"
)

// DateFormats is the multi-format pattern applied to date fields.
// Formats are tried left to right.
const DateFormats = "yyyy-MM-dd HH:mm:ss||yyyy-MM-dd||epoch_millis"

// keywordIgnoreAbove is the length cap on the auxiliary exact-match
// sub-field added to text fields.
const keywordIgnoreAbove = 256

// FieldDef is one field declaration in an index schema. Maps marshal
// with sorted keys, so a schema built from the same inputs marshals
// byte-identically regardless of declaration order.
type FieldDef struct {
	Type            TargetType          `json:"type,omitempty"`
	Format          string              `json:"format,omitempty"`
	Fields          map[string]FieldDef `json:"fields,omitempty"`
	Properties      map[string]FieldDef `json:"properties,omitempty"`
	Dynamic         *bool               `json:"dynamic,omitempty"`
	IncludeInParent bool                `json:"include_in_parent,omitempty"`
	Relations       map[string]string   `json:"relations,omitempty"`
	IgnoreAbove     int                 `json:"ignore_above,omitempty"`
}

// DynamicTemplate declares a pattern-based field mapping applied to
// fields not covered by explicit declarations.
type DynamicTemplate struct {
	Match            string   `json:"match,omitempty"`
	MatchMappingType string   `json:"match_mapping_type,omitempty"`
	Mapping          FieldDef `json:"mapping"`
}

// IndexSettings carries bulk-load-oriented index settings.
type IndexSettings struct {
	Shards           int    `json:"number_of_shards"`
	Replicas         int    `json:"number_of_replicas"`
	RefreshInterval  string `json:"refresh_interval"`
	TotalFieldsLimit int    `json:"total_fields_limit"`
	NestedFieldLimit int    `json:"nested_fields_limit"`
	MaxResultWindow  int    `json:"max_result_window"`
}

// IndexSchema is the target schema generated from a mapping configuration.
type IndexSchema struct {
	Settings         IndexSettings              `json:"settings"`
	DynamicTemplates map[string]DynamicTemplate `json:"dynamic_templates,omitempty"`
	Properties       map[string]FieldDef        `json:"properties"`
}

// Marshal is the canonical serialization; identical inputs to
// BuildIndexSchema always produce identical bytes.
func (s *IndexSchema) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// ParseIndexSchema decodes a schema previously produced by Marshal.
func ParseIndexSchema(data []byte) (*IndexSchema, error) {
	var s IndexSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse index schema: %w", err)
	}
	return &s, nil
}

// SchemaConflictError reports a duplicate target field path across the
// union of mapping declarations.
type SchemaConflictError struct {
	Path string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("schema conflict: duplicate target field path %q", e.Path)
}

// BulkLoadSettings returns index settings tuned for bulk ingestion:
// no replicas, slow refresh, raised field and nesting limits.
func BulkLoadSettings() IndexSettings {
	return IndexSettings{
		Shards:           3,
		Replicas:         0,
		RefreshInterval:  "30s",
		TotalFieldsLimit: 2000,
		NestedFieldLimit: 100,
		MaxResultWindow:  50000,
	}
}

// BuildIndexSchema deterministically folds direct, nested, and
// parent-child mappings into one target index schema.
//
// Direct fields become leaf declarations; text leaves receive a keyword
// sub-field for exact matching. Each nested mapping becomes a nested
// object at its path containing only its own fields, keyed by the last
// path segment. Each parent-child mapping emits one join field relating
// parent type to child type. Target paths must be unique across the
// union; a duplicate fails with *SchemaConflictError.
func BuildIndexSchema(fields []FieldMapping, nested []NestedMapping, parentChild []ParentChildMapping) (*IndexSchema, error) {
	schema := &IndexSchema{
		Settings:         BulkLoadSettings(),
		DynamicTemplates: defaultDynamicTemplates(),
		Properties:       make(map[string]FieldDef),
	}

	// System fields present on every migrated document.
	schema.Properties[SystemFieldTimestamp] = FieldDef{Type: TypeDate}
	schema.Properties[SystemFieldJobID] = FieldDef{Type: TypeKeyword}

	for _, f := range fields {
		if f.EffectiveKind() != KindDirect {
			continue
		}
		if _, ok := schema.Properties[f.TargetField]; ok {
			return nil, &SchemaConflictError{Path: f.TargetField}
		}
		schema.Properties[f.TargetField] = leafDef(f.TargetType)
	}

	for _, n := range nested {
		if _, ok := schema.Properties[n.Path]; ok {
			return nil, &SchemaConflictError{Path: n.Path}
		}
		props := make(map[string]FieldDef, len(n.Fields))
		for _, f := range n.Fields {
			key := lastSegment(f.TargetField)
			if _, ok := props[key]; ok {
				return nil, &SchemaConflictError{Path: n.Path + "." + key}
			}
			props[key] = leafDef(f.TargetType)
		}
		dynamic := n.Dynamic
		schema.Properties[n.Path] = FieldDef{
			Type:            TypeNested,
			Dynamic:         &dynamic,
			IncludeInParent: n.IncludeInParent,
			Properties:      props,
		}
	}

	for _, pc := range parentChild {
		if _, ok := schema.Properties[pc.JoinField]; ok {
			return nil, &SchemaConflictError{Path: pc.JoinField}
		}
		schema.Properties[pc.JoinField] = FieldDef{
			Type:      TypeJoin,
			Relations: map[string]string{pc.ParentType: pc.ChildType},
		}
	}

	return schema, nil
}

// leafDef builds the declaration for one leaf field. Text fields carry
// an exact-match keyword sub-field.
func leafDef(t TargetType) FieldDef {
	def := FieldDef{Type: t}
	switch t {
	case TypeText:
		def.Fields = map[string]FieldDef{
			"keyword": {Type: TypeKeyword, IgnoreAbove: keywordIgnoreAbove},
		}
	case TypeDate:
		def.Format = DateFormats
	}
	return def
}

// defaultDynamicTemplates covers *_date-suffixed fields and generic
// strings not declared explicitly.
func defaultDynamicTemplates() map[string]DynamicTemplate {
	return map[string]DynamicTemplate{
		"dates": {
			Match: "*_date",
			Mapping: FieldDef{
				Type:   TypeDate,
				Format: DateFormats,
			},
		},
		"strings": {
			MatchMappingType: "string",
			Mapping: FieldDef{
				Type: TypeText,
				Fields: map[string]FieldDef{
					"keyword": {Type: TypeKeyword, IgnoreAbove: keywordIgnoreAbove},
				},
			},
		},
	}
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}
