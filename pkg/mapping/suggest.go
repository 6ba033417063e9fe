package mapping

import (
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// DefaultKeywordThreshold is the string length at or below which a
// bounded string column is suggested as an exact-match keyword field.
const DefaultKeywordThreshold = 256

// SuggestOption adjusts type suggestion behavior.
type SuggestOption func(*suggestOptions)

type suggestOptions struct {
	keywordThreshold int
}

// WithKeywordThreshold overrides the keyword/text length cutoff.
func WithKeywordThreshold(n int) SuggestOption {
	return func(o *suggestOptions) { o.keywordThreshold = n }
}

// SuggestTargetType maps a declared source column type to a target index
// field type. It is a pure function of its inputs.
//
// Bounded strings at or under the threshold become keyword; longer or
// unbounded text becomes text. Numerics with a declared decimal scale
// become scaled_float, otherwise long (integer for INTEGER columns).
// Temporal types become date; large-object text becomes text and
// large-object binary becomes binary (base64 convention at load time).
func SuggestTargetType(sourceType string, opts ...SuggestOption) TargetType {
	o := suggestOptions{keywordThreshold: DefaultKeywordThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	st := strings.ToUpper(strings.TrimSpace(sourceType))

	switch {
	case strings.HasPrefix(st, "NUMBER"), strings.HasPrefix(st, "NUMERIC"), strings.HasPrefix(st, "DECIMAL"):
		if hasDecimalScale(st) {
			return TypeScaledFloat
		}
		return TypeLong
	case strings.HasPrefix(st, "VARCHAR"), strings.HasPrefix(st, "NVARCHAR"):
		if n, ok := declaredLength(st); ok && n <= o.keywordThreshold {
			return TypeKeyword
		}
		return TypeText
	case strings.HasPrefix(st, "CHAR"), strings.HasPrefix(st, "NCHAR"):
		return TypeKeyword
	case strings.HasPrefix(st, "DATE"), strings.HasPrefix(st, "TIMESTAMP"):
		return TypeDate
	case st == "CLOB", st == "NCLOB", st == "LONG", st == "TEXT":
		return TypeText
	case st == "BLOB", st == "RAW", st == "LONG RAW", st == "BYTEA":
		return TypeBinary
	case st == "INTEGER", st == "INT", st == "SMALLINT", st == "BIGINT":
		return TypeLong
	case st == "FLOAT", st == "REAL":
		return TypeFloat
	case st == "DOUBLE", st == "DOUBLE PRECISION", st == "BINARY_DOUBLE":
		return TypeDouble
	case st == "BOOLEAN", st == "BOOL":
		return TypeBoolean
	}
	return TypeText
}

// hasDecimalScale reports whether a numeric type declaration carries a
// nonzero scale, e.g. NUMBER(10,2).
func hasDecimalScale(st string) bool {
	open := strings.IndexByte(st, '(')
	close := strings.IndexByte(st, ')')
	if open < 0 || close < open {
		return false
	}
	parts := strings.Split(st[open+1:close], ",")
	if len(parts) != 2 {
		return false
	}
	scale, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	return err == nil && scale > 0
}

// declaredLength extracts the length from a bounded string declaration,
// e.g. VARCHAR2(100) -> 100.
func declaredLength(st string) (int, bool) {
	open := strings.IndexByte(st, '(')
	close := strings.IndexByte(st, ')')
	if open < 0 || close < open {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(st[open+1 : close]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// suffix normalizations applied when deriving target field names from
// abbreviated source column names.
var fieldSuffixes = []struct{ from, to string }{
	{"_qty", "_quantity"},
	{"_desc", "_description"},
	{"_addr", "_address"},
	{"_amt", "_amount"},
}

// SuggestTargetField derives a target field name from a source column
// name: snake-cased, lowered, with common abbreviations expanded.
func SuggestTargetField(sourceField string) string {
	name := strcase.ToSnake(strings.ToLower(sourceField))
	for _, s := range fieldSuffixes {
		if strings.HasSuffix(name, s.from) {
			name = strings.TrimSuffix(name, s.from) + s.to
			break
		}
	}
	return name
}

// FieldSuggestion is one advisory direct-mapping suggestion.
type FieldSuggestion struct {
	SourceField string     `json:"source_field"`
	SourceType  string     `json:"source_type"`
	TargetField string     `json:"target_field"`
	TargetType  TargetType `json:"target_type"`
	Confidence  int        `json:"confidence"`
	Rules       []Rule     `json:"rules,omitempty"`
}

// OneToManyCandidate is a join edge classified as one-to-many.
type OneToManyCandidate struct {
	ParentTable      string `json:"parent_table"`
	ChildTable       string `json:"child_table"`
	ParentKey        string `json:"parent_key"`
	ForeignKey       string `json:"foreign_key"`
	SuggestedMapping Kind   `json:"suggested_mapping"`
}

// OneToOneCandidate is a join edge classified as one-to-one.
type OneToOneCandidate struct {
	LeftTable  string `json:"left_table"`
	RightTable string `json:"right_table"`
	LeftKey    string `json:"left_key"`
	RightKey   string `json:"right_key"`
}

// NestedCandidate is a detail table suited to nested-object mapping
// under its master table.
type NestedCandidate struct {
	ParentTable   string `json:"parent_table"`
	NestedTable   string `json:"nested_table"`
	SuggestedPath string `json:"suggested_path"`
}

// ParentChildCandidate is a table with a self-referencing hierarchy
// column, suited to parent-child mapping.
type ParentChildCandidate struct {
	Table          string `json:"table"`
	HierarchyField string `json:"hierarchy_field"`
	JoinField      string `json:"join_field"`
}

// RelationshipAnalysis is the advisory output of SuggestRelationships.
// Heuristic and best-effort; never authoritative.
type RelationshipAnalysis struct {
	OneToMany            []OneToManyCandidate   `json:"one_to_many"`
	OneToOne             []OneToOneCandidate    `json:"one_to_one"`
	NestedCandidates     []NestedCandidate      `json:"nested_candidates"`
	ParentChildCandidate []ParentChildCandidate `json:"parent_child_candidates"`
	FieldSuggestions     []FieldSuggestion      `json:"field_suggestions"`
}

// SuggestRelationships classifies join edges and flags candidate tables
// for nesting or parent-child mapping using naming heuristics: key-like
// column suffixes, detail-like table names, and self-referencing
// hierarchy columns.
func SuggestRelationships(columns []Column, joins []JoinEdge) *RelationshipAnalysis {
	analysis := &RelationshipAnalysis{}

	for _, j := range joins {
		if looksLikePrimaryKey(j.LeftField) && looksLikeForeignKey(j.RightField) && looksLikeDetailTable(j.RightTable) {
			suggested := KindObject
			if suitableForNesting(j.RightTable) {
				suggested = KindNested
			}
			analysis.OneToMany = append(analysis.OneToMany, OneToManyCandidate{
				ParentTable:      j.LeftTable,
				ChildTable:       j.RightTable,
				ParentKey:        j.LeftField,
				ForeignKey:       j.RightField,
				SuggestedMapping: suggested,
			})
			continue
		}
		if looksLikePrimaryKey(j.LeftField) && looksLikeForeignKey(j.RightField) {
			analysis.OneToOne = append(analysis.OneToOne, OneToOneCandidate{
				LeftTable:  j.LeftTable,
				RightTable: j.RightTable,
				LeftKey:    j.LeftField,
				RightKey:   j.RightField,
			})
		}
	}

	tables := tableSet(columns)
	for _, table := range tables {
		if looksLikeDetailTable(table) {
			if master := findMasterTable(table, tables); master != "" {
				analysis.NestedCandidates = append(analysis.NestedCandidates, NestedCandidate{
					ParentTable:   master,
					NestedTable:   table,
					SuggestedPath: nestedPathFor(table),
				})
			}
		}
		if field := hierarchyField(table, columns); field != "" {
			analysis.ParentChildCandidate = append(analysis.ParentChildCandidate, ParentChildCandidate{
				Table:          table,
				HierarchyField: field,
				JoinField:      "document_relationship",
			})
		}
	}

	for _, c := range columns {
		analysis.FieldSuggestions = append(analysis.FieldSuggestions, FieldSuggestion{
			SourceField: c.Name,
			SourceType:  c.Type,
			TargetField: SuggestTargetField(c.Name),
			TargetType:  SuggestTargetType(c.Type),
			Confidence:  suggestionConfidence(c.Name, c.Type),
			Rules:       SuggestTransformations(c.Name, c.Type),
		})
	}

	return analysis
}

// SuggestTransformations proposes transformation rules appropriate to a
// column's name and type.
func SuggestTransformations(fieldName, sourceType string) []Rule {
	st := strings.ToUpper(sourceType)
	var rules []Rule

	if strings.HasPrefix(st, "DATE") || strings.HasPrefix(st, "TIMESTAMP") {
		rules = append(rules, Rule{
			Kind: "date_format",
			Params: map[string]any{
				"from_format": "2006-01-02 15:04:05",
				"to_format":   "2006-01-02T15:04:05Z07:00",
			},
		})
	}
	if strings.HasPrefix(st, "VARCHAR") || strings.HasPrefix(st, "CHAR") {
		rules = append(rules, Rule{
			Kind:   "string_manipulation",
			Params: map[string]any{"operation": "trim"},
		})
	}
	if hasDecimalScale(st) {
		rules = append(rules, Rule{
			Kind:   "numeric_scaling",
			Params: map[string]any{"factor": 1.0},
		})
	}
	return rules
}

func suggestionConfidence(fieldName, sourceType string) int {
	name := strings.ToLower(fieldName)
	st := strings.ToUpper(sourceType)
	confidence := 70

	if strings.Contains(name, "_id") && strings.Contains(st, "NUMBER") {
		confidence += 20
	}
	if strings.Contains(name, "_date") && strings.Contains(st, "DATE") {
		confidence += 25
	}
	if strings.Contains(st, "CLOB") || strings.Contains(st, "BLOB") {
		confidence -= 10
	}
	if confidence > 95 {
		confidence = 95
	}
	return confidence
}

func looksLikePrimaryKey(field string) bool {
	f := strings.ToLower(field)
	for _, p := range []string{"_id", "_key", "_pk"} {
		if strings.Contains(f, p) {
			return true
		}
	}
	return f == "id" || f == "key"
}

func looksLikeForeignKey(field string) bool {
	f := strings.ToLower(field)
	for _, p := range []string{"_id", "_ref", "_fk"} {
		if strings.Contains(f, p) {
			return true
		}
	}
	return strings.HasPrefix(f, "ref_")
}

func looksLikeDetailTable(table string) bool {
	t := strings.ToLower(table)
	for _, p := range []string{"detail", "item", "line", "entry", "attr"} {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

// suitableForNesting favors small, detail-like tables for embedding.
func suitableForNesting(table string) bool {
	t := strings.ToLower(table)
	for _, p := range []string{"detail", "item", "attribute", "property"} {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

func findMasterTable(detail string, tables []string) string {
	base := strings.ToLower(detail)
	for _, suffix := range []string{"_details", "_detail", "_items", "_item", "_lines", "_line"} {
		base = strings.TrimSuffix(base, suffix)
	}
	for _, t := range tables {
		lt := strings.ToLower(t)
		if lt == detail || lt == strings.ToLower(detail) {
			continue
		}
		if lt == base || strings.Contains(lt, base) || strings.Contains(base, lt) {
			return t
		}
	}
	return ""
}

// nestedPathFor derives the sub-document path from a detail table name,
// e.g. ORDER_ITEMS -> items.
func nestedPathFor(table string) string {
	t := strings.ToLower(table)
	if i := strings.LastIndex(t, "_"); i >= 0 {
		return t[i+1:]
	}
	return t
}

func hierarchyField(table string, columns []Column) string {
	for _, c := range columns {
		if !strings.EqualFold(c.Table, table) {
			continue
		}
		name := strings.ToLower(c.Name)
		if strings.Contains(name, "parent_id") || strings.Contains(name, "manager_id") || strings.Contains(name, "superior_id") {
			return c.Name
		}
	}
	return ""
}

func tableSet(columns []Column) []string {
	seen := make(map[string]bool)
	var tables []string
	for _, c := range columns {
		if c.Table == "" || seen[c.Table] {
			continue
		}
		seen[c.Table] = true
		tables = append(tables, c.Table)
	}
	return tables
}
