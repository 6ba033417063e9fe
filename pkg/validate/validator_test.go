package validate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecast/tablecast/pkg/mapping"
	"github.com/tablecast/tablecast/pkg/source"
	"github.com/tablecast/tablecast/pkg/target"
)

// stubReader serves fixed counts and samples.
type stubReader struct {
	count    int64
	countErr error
	rows     []map[string]any

	// sampledN records the size requested by the last Sample call.
	sampledN int
}

func (s *stubReader) Count(ctx context.Context, query string) (int64, error) {
	return s.count, s.countErr
}

func (s *stubReader) Stream(ctx context.Context, query string, batchSize int, fn func(source.Batch) error) error {
	return errors.New("not implemented")
}

func (s *stubReader) ColumnTypes(ctx context.Context, query string) ([]source.ColumnType, error) {
	return nil, nil
}

func (s *stubReader) Sample(ctx context.Context, query string, n int) ([]map[string]any, error) {
	s.sampledN = n
	if n > len(s.rows) {
		n = len(s.rows)
	}
	return s.rows[:n], nil
}

// stubWriter serves fixed documents, schema, and health.
type stubWriter struct {
	count     int64
	countErr  error
	docs      map[string]map[string]any
	schema    *mapping.IndexSchema
	schemaErr error
	health    string
	healthErr error
}

func (s *stubWriter) EnsureIndex(ctx context.Context, index string, schema *mapping.IndexSchema) error {
	return nil
}

func (s *stubWriter) BulkWrite(ctx context.Context, index string, docs []map[string]any) (int, []target.FailedItem, error) {
	return 0, nil, errors.New("not implemented")
}

func (s *stubWriter) Count(ctx context.Context, index string) (int64, error) {
	return s.count, s.countErr
}

func (s *stubWriter) GetSchema(ctx context.Context, index string) (*mapping.IndexSchema, error) {
	return s.schema, s.schemaErr
}

func (s *stubWriter) Get(ctx context.Context, index string, id string) (map[string]any, error) {
	return s.docs[id], nil
}

func (s *stubWriter) Health(ctx context.Context) (string, error) {
	return s.health, s.healthErr
}

func validatorConfig() *mapping.Config {
	return &mapping.Config{
		Name:        "orders",
		SourceQuery: "SELECT * FROM orders",
		TargetIndex: "orders",
		IDField:     "ORDER_ID",
		Fields: []mapping.FieldMapping{
			{SourceField: "ORDER_ID", TargetField: "order_id", SourceType: "NUMBER(10)", TargetType: mapping.TypeLong},
			{SourceField: "CUSTOMER", TargetField: "customer", SourceType: "VARCHAR2(100)", TargetType: mapping.TypeText},
		},
	}
}

func healthyTarget(t *testing.T, cfg *mapping.Config, docCount int64) *stubWriter {
	t.Helper()
	schema, err := cfg.BuildSchema()
	require.NoError(t, err)

	docs := make(map[string]map[string]any)
	for i := int64(1); i <= docCount; i++ {
		id := fmt.Sprintf("%d", i)
		docs[id] = map[string]any{"order_id": i}
	}
	return &stubWriter{count: docCount, docs: docs, schema: schema, health: target.HealthGreen}
}

func sourceRows(n int) []map[string]any {
	rows := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, map[string]any{"ORDER_ID": fmt.Sprintf("%d", i)})
	}
	return rows
}

func TestValidateAllPass(t *testing.T) {
	cfg := validatorConfig()
	v := New(cfg, &stubReader{count: 100, rows: sourceRows(10)}, healthyTarget(t, cfg, 100), nil)

	report := v.Validate(context.Background())
	assert.Equal(t, 100, report.OverallScore)
	assert.True(t, report.Passed)
	require.Len(t, report.Checks, 4)
	for _, c := range report.Checks {
		assert.Equal(t, StatusPass, c.Status, c.Name)
		assert.Equal(t, 100, c.Score, c.Name)
	}
	assert.False(t, report.ValidatedAt.IsZero())
}

func TestValidateCountParity(t *testing.T) {
	cfg := validatorConfig()

	// 100 source rows, 50 target documents: score 50, FAIL.
	v := New(cfg, &stubReader{count: 100, rows: sourceRows(10)}, healthyTarget(t, cfg, 50), nil)
	report := v.Validate(context.Background())

	count := report.Checks[0]
	assert.Equal(t, "count_parity", count.Name)
	assert.Equal(t, 50, count.Score)
	assert.Equal(t, StatusFail, count.Status)
	assert.False(t, report.Passed)
}

func TestValidateCountErrorScoresZero(t *testing.T) {
	cfg := validatorConfig()
	v := New(cfg, &stubReader{countErr: errors.New("source down"), rows: sourceRows(10)},
		healthyTarget(t, cfg, 100), nil)
	report := v.Validate(context.Background())

	count := report.Checks[0]
	assert.Equal(t, StatusError, count.Status)
	assert.Zero(t, count.Score)
	assert.Contains(t, count.Error, "source down")
	assert.False(t, report.Passed)
}

func TestValidateSampleLookupMisses(t *testing.T) {
	cfg := validatorConfig()
	w := healthyTarget(t, cfg, 10)
	// Half the sampled ids are missing from the target.
	for i := 1; i <= 5; i++ {
		delete(w.docs, fmt.Sprintf("%d", i))
	}

	v := New(cfg, &stubReader{count: 10, rows: sourceRows(10)}, w, nil)
	report := v.Validate(context.Background())

	sample := report.Checks[1]
	assert.Equal(t, "sample_lookup", sample.Name)
	assert.Equal(t, 50, sample.Score)
	assert.Equal(t, StatusFail, sample.Status)
}

func TestValidateSampleDetectsFieldMismatches(t *testing.T) {
	cfg := validatorConfig()
	w := healthyTarget(t, cfg, 10)
	// Every document exists under the right id but carries the wrong
	// field values.
	for i := 1; i <= 10; i++ {
		w.docs[fmt.Sprintf("%d", i)] = map[string]any{
			"order_id": 999, "customer": "completely wrong",
		}
	}

	rows := make([]map[string]any, 0, 10)
	for i := 1; i <= 10; i++ {
		rows = append(rows, map[string]any{"ORDER_ID": fmt.Sprintf("%d", i), "CUSTOMER": "alice"})
	}

	v := New(cfg, &stubReader{count: 10, rows: rows}, w, nil)
	report := v.Validate(context.Background())

	sample := report.Checks[1]
	assert.Equal(t, "sample_lookup", sample.Name)
	assert.Zero(t, sample.Score)
	assert.Equal(t, StatusFail, sample.Status)
	assert.False(t, report.Passed)
}

func TestValidateSampleComparesAcrossTypeRoundTrips(t *testing.T) {
	cfg := validatorConfig()
	w := healthyTarget(t, cfg, 0)
	w.count = 2
	// Stored values come back from a JSON round trip: numerics as
	// float64, everything else as strings.
	w.docs["1"] = map[string]any{"order_id": float64(1), "customer": "alice"}
	w.docs["2"] = map[string]any{"order_id": float64(2), "customer": "mallory"}

	rows := []map[string]any{
		{"ORDER_ID": int64(1), "CUSTOMER": "alice"},
		{"ORDER_ID": int64(2), "CUSTOMER": "bob"},
	}

	v := New(cfg, &stubReader{count: 2, rows: rows}, w, nil)
	report := v.Validate(context.Background())

	sample := report.Checks[1]
	assert.Equal(t, 50, sample.Score)
	assert.Equal(t, "1 of 2 sampled documents match", sample.Detail)
	assert.Equal(t, StatusFail, sample.Status)
}

func TestValidateSampleDividesByCheckedRows(t *testing.T) {
	cfg := validatorConfig()
	w := healthyTarget(t, cfg, 4)

	// A row without a usable id is excluded from the denominator.
	rows := append(sourceRows(4), map[string]any{"CUSTOMER": "no id"})
	v := New(cfg, &stubReader{count: 5, rows: rows}, w, nil)
	report := v.Validate(context.Background())

	sample := report.Checks[1]
	assert.Equal(t, 100, sample.Score)
	assert.Equal(t, "4 of 4 sampled documents match", sample.Detail)
	assert.Equal(t, StatusPass, sample.Status)
}

func TestWithSampleSize(t *testing.T) {
	cfg := validatorConfig()
	r := &stubReader{count: 30, rows: sourceRows(30)}
	v := New(cfg, r, healthyTarget(t, cfg, 30), nil, WithSampleSize(25))
	report := v.Validate(context.Background())

	assert.Equal(t, 25, r.sampledN)
	sample := report.Checks[1]
	assert.Equal(t, "25 of 25 sampled documents match", sample.Detail)
	assert.Equal(t, StatusPass, sample.Status)
}

func TestValidateSchemaIncompatibility(t *testing.T) {
	cfg := validatorConfig()
	// A date column mapped into a long field is incompatible.
	cfg.Fields = append(cfg.Fields, mapping.FieldMapping{
		SourceField: "CREATED", TargetField: "created", SourceType: "DATE", TargetType: mapping.TypeLong,
	})

	v := New(cfg, &stubReader{count: 10, rows: sourceRows(10)}, healthyTarget(t, cfg, 10), nil)
	report := v.Validate(context.Background())

	schema := report.Checks[2]
	assert.Equal(t, "schema_compatibility", schema.Name)
	assert.Equal(t, 66, schema.Score)
	assert.Equal(t, StatusFail, schema.Status)
}

func TestValidateHealthScores(t *testing.T) {
	cfg := validatorConfig()
	for _, tt := range []struct {
		health string
		score  int
		status CheckStatus
	}{
		{target.HealthGreen, 100, StatusPass},
		{target.HealthYellow, 50, StatusPass},
		{target.HealthRed, 0, StatusFail},
	} {
		w := healthyTarget(t, cfg, 10)
		w.health = tt.health
		v := New(cfg, &stubReader{count: 10, rows: sourceRows(10)}, w, nil)
		report := v.Validate(context.Background())

		health := report.Checks[3]
		assert.Equal(t, tt.score, health.Score, tt.health)
		assert.Equal(t, tt.status, health.Status, tt.health)
	}
}

func TestValidateOverallIsUnweightedAverage(t *testing.T) {
	cfg := validatorConfig()
	w := healthyTarget(t, cfg, 50)
	v := New(cfg, &stubReader{count: 100, rows: sourceRows(10)}, w, nil)
	report := v.Validate(context.Background())

	// counts 50, samples 100 (ids 1..10 present), schema 100, health 100.
	assert.Equal(t, (50+100+100+100)/4, report.OverallScore)
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible("NUMBER(10)", mapping.TypeLong))
	assert.True(t, Compatible("NUMBER(10,2)", mapping.TypeScaledFloat))
	assert.True(t, Compatible("VARCHAR2(100)", mapping.TypeKeyword))
	assert.True(t, Compatible("TIMESTAMP(6)", mapping.TypeDate))
	assert.True(t, Compatible("CLOB", mapping.TypeText))
	assert.True(t, Compatible("BLOB", mapping.TypeBinary))
	assert.False(t, Compatible("DATE", mapping.TypeLong))
	assert.False(t, Compatible("NUMBER", mapping.TypeText))
	assert.False(t, Compatible("CLOB", mapping.TypeKeyword))

	// Unknown families never fail validation.
	assert.True(t, Compatible("SDO_GEOMETRY", mapping.TypeText))
}
