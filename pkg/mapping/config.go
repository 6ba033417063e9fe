package mapping

import (
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// DefaultBatchSize is used when a configuration does not set one.
const DefaultBatchSize = 1000

// DefaultWatermarkColumn is assumed for incremental runs when the
// configuration does not name a watermark column. Callers should warn
// when falling back to it.
const DefaultWatermarkColumn = "updated_date"

// Config is one complete mapping configuration: what to read, where to
// write it, and how rows become documents.
type Config struct {
	// Name identifies the configuration in job records and logs.
	Name string `json:"name" yaml:"name"`

	// SourceQuery is the SQL statement producing source rows.
	SourceQuery string `json:"source_query" yaml:"source_query"`

	// SourceTable labels dead-letter entries and suggestions.
	SourceTable string `json:"source_table,omitempty" yaml:"source_table,omitempty"`

	// TargetIndex is the destination index name.
	TargetIndex string `json:"target_index" yaml:"target_index"`

	// IDField names the source field used as the document id.
	// Defaults to "id".
	IDField string `json:"id_field,omitempty" yaml:"id_field,omitempty"`

	// WatermarkColumn drives incremental filtering. Empty means the
	// default updated_date convention.
	WatermarkColumn string `json:"watermark_column,omitempty" yaml:"watermark_column,omitempty"`

	// BatchSize is the number of rows per batch. Zero means the default.
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`

	Fields      []FieldMapping       `json:"fields" yaml:"fields"`
	Nested      []NestedMapping      `json:"nested,omitempty" yaml:"nested,omitempty"`
	ParentChild []ParentChildMapping `json:"parent_child,omitempty" yaml:"parent_child,omitempty"`
}

// EffectiveBatchSize returns the configured batch size or the default.
func (c *Config) EffectiveBatchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// EffectiveIDField returns the configured id field or "id".
func (c *Config) EffectiveIDField() string {
	if c.IDField == "" {
		return "id"
	}
	return c.IDField
}

// EffectiveWatermarkColumn returns the configured watermark column and
// whether it was explicitly set.
func (c *Config) EffectiveWatermarkColumn() (string, bool) {
	if c.WatermarkColumn == "" {
		return DefaultWatermarkColumn, false
	}
	return c.WatermarkColumn, true
}

// LoadConfig reads and validates a YAML mapping configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse mapping config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mapping config %q: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mapping config: %w", err)
	}
	return nil
}

// Validate checks structural validity of the configuration.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.SourceQuery, validation.Required),
		validation.Field(&c.TargetIndex, validation.Required),
		validation.Field(&c.BatchSize, validation.Min(0)),
	)
	if err != nil {
		return err
	}

	for i, f := range c.Fields {
		if err := validateFieldMapping(f); err != nil {
			return fmt.Errorf("fields[%d]: %w", i, err)
		}
	}

	for i, n := range c.Nested {
		if err := validation.ValidateStruct(&n,
			validation.Field(&n.Name, validation.Required),
			validation.Field(&n.Path, validation.Required),
			validation.Field(&n.Fields, validation.Required),
		); err != nil {
			return fmt.Errorf("nested[%d]: %w", i, err)
		}
		// Every field of a nested mapping must live under its path.
		for j, f := range n.Fields {
			if err := validateFieldMapping(f); err != nil {
				return fmt.Errorf("nested[%d].fields[%d]: %w", i, j, err)
			}
			if f.TargetField != n.Path && !strings.HasPrefix(f.TargetField, n.Path+".") {
				return fmt.Errorf("nested[%d].fields[%d]: target field %q is outside nested path %q", i, j, f.TargetField, n.Path)
			}
		}
	}

	joinFields := make(map[string]bool)
	for i, pc := range c.ParentChild {
		if err := validation.ValidateStruct(&pc,
			validation.Field(&pc.ParentType, validation.Required),
			validation.Field(&pc.ChildType, validation.Required),
			validation.Field(&pc.JoinField, validation.Required),
		); err != nil {
			return fmt.Errorf("parent_child[%d]: %w", i, err)
		}
		if pc.ParentType == pc.ChildType {
			return fmt.Errorf("parent_child[%d]: parent type and child type must differ (%q)", i, pc.ParentType)
		}
		if joinFields[pc.JoinField] {
			return fmt.Errorf("parent_child[%d]: duplicate join field %q", i, pc.JoinField)
		}
		joinFields[pc.JoinField] = true
	}

	return nil
}

func validateFieldMapping(f FieldMapping) error {
	if err := validation.ValidateStruct(&f,
		validation.Field(&f.SourceField, validation.Required),
		validation.Field(&f.TargetField, validation.Required),
	); err != nil {
		return err
	}
	if !f.EffectiveKind().Valid() {
		return fmt.Errorf("unknown mapping kind %q", f.Kind)
	}
	if f.Relationship != "" && !f.Relationship.Valid() {
		return fmt.Errorf("unknown relationship kind %q", f.Relationship)
	}
	return nil
}

// BuildSchema generates the target index schema for this configuration.
func (c *Config) BuildSchema() (*IndexSchema, error) {
	return BuildIndexSchema(c.Fields, c.Nested, c.ParentChild)
}
