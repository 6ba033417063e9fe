package validate

import (
	"strings"

	"github.com/tablecast/tablecast/pkg/mapping"
)

// typeCompat maps a normalized source type family to the target field
// types that can faithfully hold it.
var typeCompat = map[string][]mapping.TargetType{
	"NUMBER":  {mapping.TypeLong, mapping.TypeInteger, mapping.TypeDouble, mapping.TypeFloat, mapping.TypeScaledFloat},
	"INTEGER": {mapping.TypeLong, mapping.TypeInteger},
	"FLOAT":   {mapping.TypeFloat, mapping.TypeDouble, mapping.TypeScaledFloat},
	"VARCHAR": {mapping.TypeText, mapping.TypeKeyword},
	"CHAR":    {mapping.TypeText, mapping.TypeKeyword},
	"DATE":    {mapping.TypeDate},
	"CLOB":    {mapping.TypeText},
	"BLOB":    {mapping.TypeBinary},
	"BOOLEAN": {mapping.TypeBoolean},
}

// Compatible reports whether a declared source type can live in the
// given target type. Unknown source families are treated as compatible
// so exotic driver type names do not fail validation.
func Compatible(sourceType string, targetType mapping.TargetType) bool {
	family := typeFamily(sourceType)
	allowed, ok := typeCompat[family]
	if !ok {
		return true
	}
	for _, t := range allowed {
		if t == targetType {
			return true
		}
	}
	return false
}

// typeFamily normalizes a declared type to its compatibility family,
// e.g. "VARCHAR2(100)" -> "VARCHAR", "TIMESTAMP(6)" -> "DATE".
func typeFamily(sourceType string) string {
	st := strings.ToUpper(strings.TrimSpace(sourceType))
	if i := strings.IndexByte(st, '('); i >= 0 {
		st = st[:i]
	}

	switch {
	case strings.HasPrefix(st, "NUMBER"), strings.HasPrefix(st, "NUMERIC"), strings.HasPrefix(st, "DECIMAL"):
		return "NUMBER"
	case st == "INT", st == "INTEGER", st == "SMALLINT", st == "BIGINT":
		return "INTEGER"
	case st == "FLOAT", st == "REAL", st == "DOUBLE", st == "DOUBLE PRECISION", st == "BINARY_DOUBLE":
		return "FLOAT"
	case strings.HasPrefix(st, "VARCHAR"), strings.HasPrefix(st, "NVARCHAR"):
		return "VARCHAR"
	case strings.HasPrefix(st, "CHAR"), strings.HasPrefix(st, "NCHAR"):
		return "CHAR"
	case strings.HasPrefix(st, "DATE"), strings.HasPrefix(st, "TIMESTAMP"):
		return "DATE"
	case st == "CLOB", st == "NCLOB", st == "TEXT", st == "LONG":
		return "CLOB"
	case st == "BLOB", st == "RAW", st == "LONG RAW", st == "BYTEA":
		return "BLOB"
	case st == "BOOLEAN", st == "BOOL":
		return "BOOLEAN"
	}
	return st
}
