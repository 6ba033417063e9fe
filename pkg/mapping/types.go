// Package mapping defines the declarative field-mapping model that drives
// document construction during a migration: direct field mappings, nested
// sub-document mappings, and parent-child join mappings, plus the target
// index schema generated from them.
package mapping

// System fields stamped onto every migrated document for auditing and
// reprocessing.
const (
	SystemFieldTimestamp = "_migration_timestamp"
	SystemFieldJobID     = "_migration_job_id"
)

// Kind classifies how a source field maps into the target document.
type Kind string

const (
	KindDirect    Kind = "direct"
	KindNested    Kind = "nested"
	KindObject    Kind = "object"
	KindFlattened Kind = "flattened"
)

// Valid reports whether the kind is one of the closed set.
func (k Kind) Valid() bool {
	switch k {
	case KindDirect, KindNested, KindObject, KindFlattened:
		return true
	}
	return false
}

// RelationshipKind classifies the cardinality of a join relationship.
type RelationshipKind string

const (
	OneToOne   RelationshipKind = "one_to_one"
	OneToMany  RelationshipKind = "one_to_many"
	ManyToOne  RelationshipKind = "many_to_one"
	ManyToMany RelationshipKind = "many_to_many"
)

// Valid reports whether the relationship kind is one of the closed set.
func (r RelationshipKind) Valid() bool {
	switch r {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		return true
	}
	return false
}

// Rule is a single transformation rule applied to a field value.
// Params are decoded per rule kind by the transformer; unknown kinds
// pass values through unchanged.
type Rule struct {
	Kind   string         `json:"kind" yaml:"kind"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// FieldMapping maps one source field to one target field.
type FieldMapping struct {
	// SourceField is the column (or table-qualified column) in the source row.
	SourceField string `json:"source_field" yaml:"source_field"`

	// TargetField is the dot-delimited path in the output document.
	TargetField string `json:"target_field" yaml:"target_field"`

	// SourceType is the declared source column type (e.g. "NUMBER(10,2)").
	SourceType string `json:"source_type" yaml:"source_type"`

	// TargetType is the target index field type (e.g. "keyword", "date").
	TargetType TargetType `json:"target_type" yaml:"target_type"`

	// Kind defaults to direct when empty.
	Kind Kind `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Rules are applied in order before type coercion.
	Rules []Rule `json:"rules,omitempty" yaml:"rules,omitempty"`

	// NestedPath is set for fields owned by a NestedMapping.
	NestedPath string `json:"nested_path,omitempty" yaml:"nested_path,omitempty"`

	// ParentField references the owning parent field for join mappings.
	ParentField string `json:"parent_field,omitempty" yaml:"parent_field,omitempty"`

	// Relationship is the cardinality of the relationship this field
	// participates in, when known.
	Relationship RelationshipKind `json:"relationship,omitempty" yaml:"relationship,omitempty"`

	// IsArray indicates the target field holds a list of values.
	IsArray bool `json:"is_array,omitempty" yaml:"is_array,omitempty"`

	// ValidationRules are advisory checks evaluated by configuration tooling.
	ValidationRules []Rule `json:"validation_rules,omitempty" yaml:"validation_rules,omitempty"`
}

// EffectiveKind returns the mapping kind, defaulting to direct.
func (f FieldMapping) EffectiveKind() Kind {
	if f.Kind == "" {
		return KindDirect
	}
	return f.Kind
}

// NestedMapping declares a named sub-document at a dot-delimited path.
// Nested mappings are authored once and never mutated mid-migration.
type NestedMapping struct {
	Name            string         `json:"name" yaml:"name"`
	Path            string         `json:"path" yaml:"path"`
	Fields          []FieldMapping `json:"fields" yaml:"fields"`
	IncludeInParent bool           `json:"include_in_parent,omitempty" yaml:"include_in_parent,omitempty"`
	Dynamic         bool           `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
}

// ParentChildMapping declares a join relationship between two document
// types sharing one index.
type ParentChildMapping struct {
	ParentType      string         `json:"parent_type" yaml:"parent_type"`
	ChildType       string         `json:"child_type" yaml:"child_type"`
	JoinField       string         `json:"join_field" yaml:"join_field"`
	ParentFields    []FieldMapping `json:"parent_fields" yaml:"parent_fields"`
	ChildFields     []FieldMapping `json:"child_fields" yaml:"child_fields"`
	RelationshipKey string         `json:"relationship_key" yaml:"relationship_key"`
}

// Column describes one source column as reported by the schema inspector.
type Column struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Table string `json:"table,omitempty"`
}

// JoinEdge describes one join between two source tables as reported by
// the schema inspector.
type JoinEdge struct {
	Type       string `json:"type"` // INNER, LEFT, ...
	LeftTable  string `json:"left_table"`
	RightTable string `json:"right_table"`
	LeftField  string `json:"left_field"`
	RightField string `json:"right_field"`
}
