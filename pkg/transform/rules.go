package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mitchellh/mapstructure"

	"github.com/tablecast/tablecast/pkg/mapping"
)

// Rule kinds understood by ApplyRules. Unknown kinds pass values
// through unchanged so configurations stay forward-compatible.
const (
	RuleDateFormat         = "date_format"
	RuleStringManipulation = "string_manipulation"
	RuleNumericScaling     = "numeric_scaling"
	RuleConditional        = "conditional"
)

// ApplyRules runs the rules in order over a value. The first rule
// error aborts the chain.
func ApplyRules(value any, rules []mapping.Rule) (any, error) {
	var err error
	for _, r := range rules {
		value, err = applyRule(value, r)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Kind, err)
		}
	}
	return value, nil
}

func applyRule(value any, r mapping.Rule) (any, error) {
	switch r.Kind {
	case RuleDateFormat:
		return applyDateFormat(value, r.Params)
	case RuleStringManipulation:
		return applyStringManipulation(value, r.Params)
	case RuleNumericScaling:
		return applyNumericScaling(value, r.Params)
	case RuleConditional:
		return applyConditional(value, r.Params)
	default:
		return value, nil
	}
}

type dateFormatParams struct {
	FromFormat string `mapstructure:"from_format"`
	ToFormat   string `mapstructure:"to_format"`
}

// applyDateFormat reparses a date value from one layout to another.
// When the declared from-layout does not match, the value is parsed
// leniently before formatting. time.Time values skip parsing entirely.
func applyDateFormat(value any, params map[string]any) (any, error) {
	var p dateFormatParams
	if err := mapstructure.Decode(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if p.ToFormat == "" {
		p.ToFormat = time.RFC3339
	}

	switch v := value.(type) {
	case time.Time:
		return v.Format(p.ToFormat), nil
	case string:
		if v == "" {
			return v, nil
		}
		if p.FromFormat != "" {
			if ts, err := time.Parse(p.FromFormat, v); err == nil {
				return ts.Format(p.ToFormat), nil
			}
		}
		ts, err := dateparse.ParseAny(v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date %q: %w", v, err)
		}
		return ts.Format(p.ToFormat), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("cannot reformat %T as a date", value)
	}
}

type stringManipulationParams struct {
	Operation string `mapstructure:"operation"`
}

func applyStringManipulation(value any, params map[string]any) (any, error) {
	var p stringManipulationParams
	if err := mapstructure.Decode(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	s, ok := value.(string)
	if !ok {
		if value == nil {
			return nil, nil
		}
		s = fmt.Sprintf("%v", value)
	}

	switch p.Operation {
	case "uppercase":
		return strings.ToUpper(s), nil
	case "lowercase":
		return strings.ToLower(s), nil
	case "trim":
		return strings.TrimSpace(s), nil
	default:
		return nil, fmt.Errorf("unknown string operation %q", p.Operation)
	}
}

type numericScalingParams struct {
	Factor float64 `mapstructure:"factor"`
}

func applyNumericScaling(value any, params map[string]any) (any, error) {
	var p numericScalingParams
	if err := mapstructure.Decode(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	f, ok := toFloat(value)
	if !ok {
		if value == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot scale non-numeric %T", value)
	}
	return f * p.Factor, nil
}

type conditionalParams struct {
	Operator string `mapstructure:"operator"`
	Operand  any    `mapstructure:"operand"`
	Then     any    `mapstructure:"then"`
	Else     any    `mapstructure:"else"`
}

// applyConditional replaces the value when a comparison holds. Only
// the equals operator is supported; comparisons are stringly so that
// database driver variance in numeric types does not matter.
func applyConditional(value any, params map[string]any) (any, error) {
	var p conditionalParams
	if err := mapstructure.Decode(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if p.Operator != "" && p.Operator != "equals" {
		return nil, fmt.Errorf("unknown conditional operator %q", p.Operator)
	}

	if fmt.Sprintf("%v", value) == fmt.Sprintf("%v", p.Operand) {
		return p.Then, nil
	}
	if p.Else != nil {
		return p.Else, nil
	}
	return value, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
