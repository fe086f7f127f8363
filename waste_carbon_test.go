package wastecarbonpredictor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	wastecarbonpredictor "github.com/superdango/waste-carbon-predictor"
	"github.com/superdango/waste-carbon-predictor/estimator"
	"github.com/superdango/waste-carbon-predictor/internal/demo"
	"github.com/superdango/waste-carbon-predictor/model/breakdown"
	"github.com/superdango/waste-carbon-predictor/model/factors"
)

func newTestPredictor(opts ...wastecarbonpredictor.PredictorOption) *wastecarbonpredictor.Predictor {
	opts = append([]wastecarbonpredictor.PredictorOption{
		wastecarbonpredictor.WithEstimator(demo.NewEstimator()),
		wastecarbonpredictor.WithCalculator(breakdown.NewCalculator(factors.NewTable())),
	}, opts...)
	return wastecarbonpredictor.NewPredictor(opts...)
}

func TestPredictorPredict(t *testing.T) {
	predictor := newTestPredictor()

	result, err := predictor.Predict(t.Context(), wastecarbonpredictor.Request{
		WasteType:               "Sludge",
		TreatmentMethod:         "Biological",
		QuantityTons:            10,
		TransportDistanceKm:     20,
		TreatmentEmissionKgCO2e: 2,
	})
	assert.NoError(t, err)

	// demo estimator total 48*10 + 0.9*20 = 498, plus the manual
	// adjustment of 2
	assert.Equal(t, 500.0, result.Prediction)
	assert.Equal(t, "kg CO₂e", result.Unit)
	assert.Equal(t, 500.0, result.Breakdown.TotalKgCO2eq)

	sum := result.Breakdown.CO2.KgCO2eq + result.Breakdown.CH4.KgCO2eq + result.Breakdown.N2O.KgCO2eq
	assert.InDelta(t, result.Prediction, sum, 0.01)
}

func TestPredictorWithoutEstimator(t *testing.T) {
	predictor := wastecarbonpredictor.NewPredictor(
		wastecarbonpredictor.WithCalculator(breakdown.NewCalculator(factors.NewTable())),
	)

	_, err := predictor.Predict(t.Context(), wastecarbonpredictor.Request{
		WasteType:       "Sludge",
		TreatmentMethod: "Biological",
		QuantityTons:    10,
	})
	assert.ErrorIs(t, err, wastecarbonpredictor.ErrEstimatorUnavailable)
}

// countingEstimator counts how often the model is actually invoked.
type countingEstimator struct {
	calls int
}

func (c *countingEstimator) Estimate(ctx context.Context, features estimator.Features) (float64, error) {
	c.calls++
	return 100.0, nil
}

func TestPredictorCachesEstimatorTotals(t *testing.T) {
	counting := new(countingEstimator)
	predictor := wastecarbonpredictor.NewPredictor(
		wastecarbonpredictor.WithEstimator(counting),
		wastecarbonpredictor.WithCalculator(breakdown.NewCalculator(factors.NewTable())),
		wastecarbonpredictor.WithTotalsCache(t.Context(), time.Minute),
	)

	request := wastecarbonpredictor.Request{
		WasteType:       "Sludge",
		TreatmentMethod: "Biological",
		QuantityTons:    10,
	}

	for range 3 {
		result, err := predictor.Predict(t.Context(), request)
		assert.NoError(t, err)
		assert.Equal(t, 100.0, result.Prediction)
	}

	assert.Equal(t, 1, counting.calls)

	// a different event is a different cache entry
	request.QuantityTons = 11
	_, err := predictor.Predict(t.Context(), request)
	assert.NoError(t, err)
	assert.Equal(t, 2, counting.calls)
}

func TestRequestValidate(t *testing.T) {
	valid := wastecarbonpredictor.Request{
		WasteType:       "Sludge",
		TreatmentMethod: "Biological",
		QuantityTons:    10,
	}
	assert.NoError(t, valid.Validate())

	missingMaterial := valid
	missingMaterial.WasteType = "  "
	assert.EqualError(t, missingMaterial.Validate(), "waste type is required")

	missingProcess := valid
	missingProcess.TreatmentMethod = ""
	assert.EqualError(t, missingProcess.Validate(), "treatment method is required")

	negativeQuantity := valid
	negativeQuantity.QuantityTons = -1
	assert.EqualError(t, negativeQuantity.Validate(), "quantity must be non-negative")

	negativeDistance := valid
	negativeDistance.TransportDistanceKm = -5
	assert.EqualError(t, negativeDistance.Validate(), "transport distance must be non-negative")

	negativeAdjustment := valid
	negativeAdjustment.TreatmentEmissionKgCO2e = -50
	assert.EqualError(t, negativeAdjustment.Validate(), "treatment emission must be non-negative")
}
