package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tablecast/tablecast/pkg/models"
)

// whereClause matches a top-level WHERE so incremental filters can be
// appended with AND instead of a second WHERE.
var whereClause = regexp.MustCompile(`(?i)\bWHERE\b`)

// buildQuery produces the source query for the chosen strategy. Full
// runs use the configured query as-is. Incremental runs append a
// watermark filter; a run with no prior watermark reads everything.
// Hybrid runs fall back to full when no watermark exists yet.
func buildQuery(strategy models.MigrationStrategy, query, watermarkColumn, watermark string) (string, error) {
	switch strategy {
	case models.StrategyFull:
		return query, nil
	case models.StrategyIncremental, models.StrategyHybrid:
		if watermark == "" {
			return query, nil
		}
		return appendWatermarkFilter(query, watermarkColumn, watermark), nil
	default:
		return "", fmt.Errorf("unknown migration strategy %q", strategy)
	}
}

// appendWatermarkFilter adds "<col> > '<watermark>'" to the query,
// joining with AND when the query already filters.
func appendWatermarkFilter(query, column, watermark string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(query), ";")
	connector := "WHERE"
	if whereClause.MatchString(trimmed) {
		connector = "AND"
	}
	return fmt.Sprintf("%s %s %s > '%s'", trimmed, connector, column, watermark)
}
