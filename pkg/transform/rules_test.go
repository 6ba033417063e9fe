package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecast/tablecast/pkg/mapping"
)

func TestApplyRulesUnknownKindPassThrough(t *testing.T) {
	out, err := ApplyRules("hello", []mapping.Rule{{Kind: "regex_extract"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestDateFormatRule(t *testing.T) {
	rule := mapping.Rule{
		Kind: RuleDateFormat,
		Params: map[string]any{
			"from_format": "2006-01-02 15:04:05",
			"to_format":   "2006-01-02T15:04:05Z07:00",
		},
	}

	out, err := ApplyRules("2024-03-10 14:30:00", []mapping.Rule{rule})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10T14:30:00Z", out)

	// Values the declared layout cannot parse fall back to lenient parsing.
	out, err = ApplyRules("Mar 10, 2024", []mapping.Rule{rule})
	require.NoError(t, err)
	assert.Contains(t, out, "2024-03-10")

	_, err = ApplyRules("definitely not a date ###", []mapping.Rule{rule})
	require.Error(t, err)
}

func TestDateFormatRuleTimeValue(t *testing.T) {
	rule := mapping.Rule{
		Kind:   RuleDateFormat,
		Params: map[string]any{"to_format": "2006-01-02"},
	}
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	out, err := ApplyRules(ts, []mapping.Rule{rule})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", out)
}

func TestStringManipulationRule(t *testing.T) {
	for _, tt := range []struct {
		op   string
		in   string
		want string
	}{
		{"uppercase", "hello", "HELLO"},
		{"lowercase", "HELLO", "hello"},
		{"trim", "  padded  ", "padded"},
	} {
		rule := mapping.Rule{Kind: RuleStringManipulation, Params: map[string]any{"operation": tt.op}}
		out, err := ApplyRules(tt.in, []mapping.Rule{rule})
		require.NoError(t, err, tt.op)
		assert.Equal(t, tt.want, out)
	}

	rule := mapping.Rule{Kind: RuleStringManipulation, Params: map[string]any{"operation": "reverse"}}
	_, err := ApplyRules("x", []mapping.Rule{rule})
	require.Error(t, err)
}

func TestNumericScalingRule(t *testing.T) {
	rule := mapping.Rule{Kind: RuleNumericScaling, Params: map[string]any{"factor": 0.01}}

	out, err := ApplyRules(int64(2599), []mapping.Rule{rule})
	require.NoError(t, err)
	assert.InDelta(t, 25.99, out.(float64), 0.0001)

	_, err = ApplyRules("abc", []mapping.Rule{rule})
	require.Error(t, err)
}

func TestConditionalRule(t *testing.T) {
	rule := mapping.Rule{
		Kind: RuleConditional,
		Params: map[string]any{
			"operator": "equals",
			"operand":  "A",
			"then":     "active",
			"else":     "inactive",
		},
	}

	out, err := ApplyRules("A", []mapping.Rule{rule})
	require.NoError(t, err)
	assert.Equal(t, "active", out)

	out, err = ApplyRules("X", []mapping.Rule{rule})
	require.NoError(t, err)
	assert.Equal(t, "inactive", out)
}

func TestConditionalRuleNoElseKeepsValue(t *testing.T) {
	rule := mapping.Rule{
		Kind: RuleConditional,
		Params: map[string]any{
			"operand": "A",
			"then":    "active",
		},
	}
	out, err := ApplyRules("B", []mapping.Rule{rule})
	require.NoError(t, err)
	assert.Equal(t, "B", out)
}

func TestRuleChainOrder(t *testing.T) {
	rules := []mapping.Rule{
		{Kind: RuleStringManipulation, Params: map[string]any{"operation": "trim"}},
		{Kind: RuleStringManipulation, Params: map[string]any{"operation": "uppercase"}},
	}
	out, err := ApplyRules("  ok  ", rules)
	require.NoError(t, err)
	assert.Equal(t, "OK", out)
}

func TestCoerce(t *testing.T) {
	ts := time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-07-04T12:00:00Z", Coerce(ts, mapping.TypeDate))
	assert.Equal(t, "aGVsbG8=", Coerce([]byte("hello"), mapping.TypeBinary))
	assert.Equal(t, "42", Coerce(42, mapping.TypeKeyword))
	assert.Equal(t, int64(42), Coerce(int64(42), mapping.TypeLong))
	assert.Nil(t, Coerce(nil, mapping.TypeText))

	// String dates normalize to ISO-8601.
	assert.Equal(t, "2024-01-15T00:00:00Z", Coerce("2024-01-15", mapping.TypeDate))
}
