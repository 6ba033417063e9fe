package transform

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/araddon/dateparse"

	"github.com/tablecast/tablecast/pkg/mapping"
)

// Coerce nudges a value toward its declared target type. Coercion is
// best-effort: a value that cannot be converted is passed through for
// the target to reject, keeping transformation failures distinct from
// load failures.
func Coerce(value any, target mapping.TargetType) any {
	if value == nil {
		return nil
	}

	switch target {
	case mapping.TypeDate:
		return coerceDate(value)
	case mapping.TypeBinary:
		if b, ok := value.([]byte); ok {
			return base64.StdEncoding.EncodeToString(b)
		}
	case mapping.TypeText, mapping.TypeKeyword:
		switch v := value.(type) {
		case string:
			return v
		case []byte:
			return string(v)
		case time.Time:
			return v.UTC().Format(time.RFC3339)
		default:
			return fmt.Sprintf("%v", v)
		}
	}

	// Driver-native times still serialize as ISO-8601.
	if ts, ok := value.(time.Time); ok {
		return ts.UTC().Format(time.RFC3339)
	}
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

func coerceDate(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case string:
		if v == "" {
			return v
		}
		if ts, err := dateparse.ParseAny(v); err == nil {
			return ts.UTC().Format(time.RFC3339)
		}
		return v
	default:
		return value
	}
}
