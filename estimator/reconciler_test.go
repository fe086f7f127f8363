package estimator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// scriptedEstimator fails with the scripted errors in order, then
// succeeds with total. It records every feature record it was called
// with.
type scriptedEstimator struct {
	failures []error
	total    float64
	records  []Features
}

func (s *scriptedEstimator) Estimate(ctx context.Context, features Features) (float64, error) {
	s.records = append(s.records, features.Clone())
	if len(s.records) <= len(s.failures) {
		return 0, s.failures[len(s.records)-1]
	}
	return s.total, nil
}

func TestReconcilerFillsMissingColumnsSetShape(t *testing.T) {
	est := &scriptedEstimator{
		failures: []error{
			fmt.Errorf("The feature names should match those that were passed during fit. columns are missing: {'x', 'y'}"),
		},
		total: 42.0,
	}

	features := Features{"quantity_tons": 10.0, "waste_type": "Sludge"}

	total, err := NewReconciler(est).Estimate(t.Context(), features)
	assert.NoError(t, err)
	assert.Equal(t, 42.0, total)
	assert.Len(t, est.records, 2)

	final := est.records[1]
	assert.Equal(t, 0.0, final["x"])
	assert.Equal(t, 0.0, final["y"])
	assert.Equal(t, 10.0, final["quantity_tons"])
	assert.Equal(t, "Sludge", final["waste_type"])
	assert.Len(t, final, 4)

	// caller's record is never mutated
	assert.Len(t, features, 2)
}

func TestReconcilerFillsMissingColumnsListShape(t *testing.T) {
	est := &scriptedEstimator{
		failures: []error{
			errors.New(`input is now missing: ['a', 'b']`),
		},
		total: 7.5,
	}

	total, err := NewReconciler(est).Estimate(t.Context(), Features{})
	assert.NoError(t, err)
	assert.Equal(t, 7.5, total)
	assert.Equal(t, Features{"a": 0.0, "b": 0.0}, est.records[1])
}

func TestReconcilerUnionsBothShapes(t *testing.T) {
	err := fmt.Errorf("columns are missing: {'a', 'b'} and input is now missing: ['b', 'c']")
	assert.Equal(t, []string{"a", "b", "c"}, missingColumns(err))
}

func TestReconcilerPropagatesUnknownFailures(t *testing.T) {
	boom := errors.New("connection reset by peer")
	est := &scriptedEstimator{failures: []error{boom, boom, boom}}

	_, err := NewReconciler(est).Estimate(t.Context(), Features{})
	assert.Equal(t, boom, err)
	// no retry: the failure is not a schema problem this layer can fix
	assert.Len(t, est.records, 1)
}

// persistentEstimator always fails citing a missing column that the
// reconciler already filled, simulating a schema that keeps drifting.
type persistentEstimator struct {
	calls int
}

func (p *persistentEstimator) Estimate(ctx context.Context, features Features) (float64, error) {
	p.calls++
	return 0, fmt.Errorf("columns are missing: {'col_%d'}", p.calls)
}

func TestReconcilerTerminatesAfterBoundedAttempts(t *testing.T) {
	est := new(persistentEstimator)

	_, err := NewReconciler(est).Estimate(t.Context(), Features{})
	assert.Error(t, err)
	// 4 guarded attempts plus the final unguarded call
	assert.Equal(t, 5, est.calls)
	// the final failure surfaces as is, no synthesized "gave up" error
	assert.EqualError(t, err, "columns are missing: {'col_5'}")
}

// reportingEstimator exposes its schema and only succeeds when the
// record covers it entirely.
type reportingEstimator struct {
	schema []string
	calls  int
}

func (r *reportingEstimator) Estimate(ctx context.Context, features Features) (float64, error) {
	r.calls++
	for _, column := range r.schema {
		if _, found := features[column]; !found {
			return 0, fmt.Errorf("columns are missing: {'%s'}", column)
		}
	}
	return 99.0, nil
}

func (r *reportingEstimator) RequiredFeatures(ctx context.Context) ([]string, error) {
	return r.schema, nil
}

func TestReconcilerUsesSchemaReporter(t *testing.T) {
	est := &reportingEstimator{schema: []string{"quantity_tons", "seasonal_index"}}

	total, err := NewReconciler(est).Estimate(t.Context(), Features{"quantity_tons": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 99.0, total)
	// schema diffed up front, no failed attempt consumed
	assert.Equal(t, 1, est.calls)
}

func TestMissingColumnsIgnoresEmptyNames(t *testing.T) {
	assert.Empty(t, missingColumns(errors.New("columns are missing: {}")))
	assert.Empty(t, missingColumns(errors.New("something unrelated went wrong")))
	assert.Equal(t, []string{"a"}, missingColumns(errors.New(`columns are missing: {'a', ''}`)))
}
