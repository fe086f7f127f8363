// Package demo implements a fictive in-process estimator so the
// predictor can run without a model serving endpoint.
package demo

import (
	"context"

	"github.com/superdango/waste-carbon-predictor/estimator"
)

// Totals roughly proportional to the treatment factor table, kgCO2eq
// per ton of material. Fictive data for demonstration purpose.
var materialBaselines = map[string]float64{
	"Sludge":      48.0,
	"Waste Oil":   61.5,
	"Water Waste": 22.4,
}

const (
	defaultBaseline = 35.0
	// kgCO2eq per transport kilometer
	transportRate = 0.9
)

// Estimator produces deterministic demo totals from the feature
// record.
type Estimator struct{}

func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) Estimate(ctx context.Context, features estimator.Features) (float64, error) {
	baseline := defaultBaseline
	if material, ok := features["waste_type"].(string); ok {
		if b, found := materialBaselines[material]; found {
			baseline = b
		}
	}

	return baseline*floatFeature(features, "quantity_tons") +
		transportRate*floatFeature(features, "transport_distance_km"), nil
}

// RequiredFeatures reports the demo model schema so the reconciler
// never has to parse failure messages in demo mode.
func (e *Estimator) RequiredFeatures(ctx context.Context) ([]string, error) {
	return []string{
		"waste_type",
		"treatment_method",
		"vehicle_type",
		"quantity_tons",
		"transport_distance_km",
	}, nil
}

func floatFeature(features estimator.Features, name string) float64 {
	switch v := features[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
