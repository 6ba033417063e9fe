// Package validate scores a completed migration by comparing the
// target index against the source: row counts, sampled documents,
// schema compatibility, and target health.
package validate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/tablecast/tablecast/pkg/docid"
	"github.com/tablecast/tablecast/pkg/mapping"
	"github.com/tablecast/tablecast/pkg/source"
	"github.com/tablecast/tablecast/pkg/target"
	"github.com/tablecast/tablecast/pkg/transform"
)

// CheckStatus classifies one check's outcome.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusFail CheckStatus = "FAIL"

	// StatusError means the check could not run; it scores zero.
	StatusError CheckStatus = "ERROR"
)

// Per-check pass thresholds. A check passes when its score meets its
// threshold.
const (
	countThreshold  = 95
	sampleThreshold = 90
	schemaThreshold = 80
	healthThreshold = 50
)

// DefaultSampleSize is how many source rows the sample check inspects.
const DefaultSampleSize = 10

// Check is one validation sub-result.
type Check struct {
	Name   string      `json:"name"`
	Score  int         `json:"score"`
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Report is the full validation outcome.
type Report struct {
	ConfigName   string    `json:"config_name"`
	TargetIndex  string    `json:"target_index"`
	OverallScore int       `json:"overall_score"`
	Passed       bool      `json:"passed"`
	Checks       []Check   `json:"checks"`
	ValidatedAt  time.Time `json:"validated_at"`
}

// Validator runs the four-part post-migration validation.
type Validator struct {
	cfg        *mapping.Config
	reader     source.Reader
	writer     target.Writer
	sampleSize int
	log        hclog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithSampleSize overrides how many source rows the sample check
// inspects.
func WithSampleSize(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.sampleSize = n
		}
	}
}

// New builds a validator. A nil logger is replaced with a no-op logger.
func New(cfg *mapping.Config, reader source.Reader, writer target.Writer, log hclog.Logger, opts ...Option) *Validator {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	v := &Validator{
		cfg:        cfg,
		reader:     reader,
		writer:     writer,
		sampleSize: DefaultSampleSize,
		log:        log.Named("validate"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every check. Infrastructure failures degrade the
// affected check to ERROR with score zero instead of aborting; the
// overall score is the unweighted average of the four checks.
func (v *Validator) Validate(ctx context.Context) *Report {
	report := &Report{
		ConfigName:  v.cfg.Name,
		TargetIndex: v.cfg.TargetIndex,
		ValidatedAt: time.Now().UTC(),
	}

	checks := []Check{
		v.checkCounts(ctx),
		v.checkSamples(ctx),
		v.checkSchema(ctx),
		v.checkHealth(ctx),
	}
	report.Checks = checks

	sum := 0
	passed := true
	for _, c := range checks {
		sum += c.Score
		if c.Status != StatusPass {
			passed = false
		}
	}
	report.OverallScore = sum / len(checks)
	report.Passed = passed

	v.log.Info("validation finished", "config", v.cfg.Name,
		"score", report.OverallScore, "passed", report.Passed)
	return report
}

// checkCounts scores count parity as min/max of the two counts.
func (v *Validator) checkCounts(ctx context.Context) Check {
	c := Check{Name: "count_parity"}

	sourceCount, err := v.reader.Count(ctx, v.cfg.SourceQuery)
	if err != nil {
		return errored(c, fmt.Errorf("failed to count source rows: %w", err))
	}
	targetCount, err := v.writer.Count(ctx, v.cfg.TargetIndex)
	if err != nil {
		return errored(c, fmt.Errorf("failed to count target documents: %w", err))
	}

	c.Detail = fmt.Sprintf("source=%d target=%d", sourceCount, targetCount)
	if sourceCount == 0 && targetCount == 0 {
		c.Score = 100
	} else {
		min, max := sourceCount, targetCount
		if min > max {
			min, max = max, min
		}
		if max > 0 {
			c.Score = int(min * 100 / max)
		}
	}
	c.Status = statusFor(c.Score, countThreshold)
	return c
}

// checkSamples looks up sampled source rows by id in the target and
// compares the stored documents field by field against what the
// mapping produces for each row. Only rows carrying a usable id count
// toward the denominator.
func (v *Validator) checkSamples(ctx context.Context) Check {
	c := Check{Name: "sample_lookup"}

	rows, err := v.reader.Sample(ctx, v.cfg.SourceQuery, v.sampleSize)
	if err != nil {
		return errored(c, fmt.Errorf("failed to sample source rows: %w", err))
	}
	if len(rows) == 0 {
		c.Score = 100
		c.Status = StatusPass
		c.Detail = "no rows to sample"
		return c
	}

	idField := v.cfg.EffectiveIDField()
	tr := transform.New(v.cfg, "", v.log)
	checked, matched := 0, 0
	for _, row := range rows {
		id, ok := rowID(row, idField)
		if !ok {
			continue
		}
		checked++
		doc, err := v.writer.Get(ctx, v.cfg.TargetIndex, id)
		if err != nil {
			return errored(c, fmt.Errorf("failed to fetch document %q: %w", id, err))
		}
		if doc == nil {
			continue
		}
		if v.rowMatches(tr, row, doc) {
			matched++
		}
	}

	if checked == 0 {
		c.Detail = "no sampled rows carried an id"
	} else {
		c.Score = matched * 100 / checked
		c.Detail = fmt.Sprintf("%d of %d sampled documents match", matched, checked)
	}
	c.Status = statusFor(c.Score, sampleThreshold)
	return c
}

// rowMatches re-runs the mapping over one sampled row and compares
// every direct field against the stored document. Values are compared
// in normalized string form so the JSON round-trip through the target
// never produces false mismatches.
func (v *Validator) rowMatches(tr *transform.Transformer, row map[string]any, doc map[string]any) bool {
	expected, failures := tr.TransformBatch([]map[string]any{row})
	if len(failures) > 0 || len(expected) == 0 {
		return false
	}
	want := expected[0]

	for _, f := range v.cfg.Fields {
		if f.EffectiveKind() != mapping.KindDirect {
			continue
		}
		wantVal, ok := lookupPath(want, f.TargetField)
		if !ok {
			continue
		}
		gotVal, ok := lookupPath(doc, f.TargetField)
		if !ok {
			return false
		}
		if normalizeValue(wantVal) != normalizeValue(gotVal) {
			return false
		}
	}
	return true
}

// lookupPath walks a dot-delimited field path through nested maps.
func lookupPath(doc map[string]any, path string) (any, bool) {
	cur := any(doc)
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// normalizeValue renders a value for comparison: temporal values as
// RFC3339 strings, integral floats as integers.
func normalizeValue(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return docid.FromValue(v)
}

// checkSchema verifies every mapped field's declared source type is
// compatible with the type the target index actually carries.
func (v *Validator) checkSchema(ctx context.Context) Check {
	c := Check{Name: "schema_compatibility"}

	schema, err := v.writer.GetSchema(ctx, v.cfg.TargetIndex)
	if err != nil {
		return errored(c, fmt.Errorf("failed to read target schema: %w", err))
	}

	checked, compatible := 0, 0
	for _, f := range v.cfg.Fields {
		if f.SourceType == "" || f.EffectiveKind() != mapping.KindDirect {
			continue
		}
		def, ok := schema.Properties[f.TargetField]
		if !ok {
			checked++
			continue
		}
		checked++
		if Compatible(f.SourceType, def.Type) {
			compatible++
		} else {
			v.log.Warn("incompatible field type", "field", f.TargetField,
				"source_type", f.SourceType, "target_type", def.Type)
		}
	}

	if checked == 0 {
		c.Score = 100
	} else {
		c.Score = compatible * 100 / checked
	}
	c.Detail = fmt.Sprintf("%d of %d fields compatible", compatible, checked)
	c.Status = statusFor(c.Score, schemaThreshold)
	return c
}

// checkHealth maps target health to a score: green 100, yellow 50,
// red 0.
func (v *Validator) checkHealth(ctx context.Context) Check {
	c := Check{Name: "target_health"}

	health, err := v.writer.Health(ctx)
	if err != nil {
		return errored(c, fmt.Errorf("failed to read target health: %w", err))
	}

	switch health {
	case target.HealthGreen:
		c.Score = 100
	case target.HealthYellow:
		c.Score = 50
	default:
		c.Score = 0
	}
	c.Detail = health
	c.Status = statusFor(c.Score, healthThreshold)
	return c
}

func statusFor(score, threshold int) CheckStatus {
	if score >= threshold {
		return StatusPass
	}
	return StatusFail
}

func errored(c Check, err error) Check {
	c.Status = StatusError
	c.Score = 0
	c.Error = err.Error()
	return c
}

// rowID extracts the sample row's document id, accepting upper-cased
// column names from sources that fold identifiers.
func rowID(row map[string]any, idField string) (string, bool) {
	for _, key := range []string{idField, "ID", "id"} {
		if v, ok := row[key]; ok && v != nil {
			return fmt.Sprintf("%v", v), true
		}
	}
	return "", false
}
