package wastecarbonpredictor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/superdango/waste-carbon-predictor/estimator"
	"github.com/superdango/waste-carbon-predictor/internal/cache"
	"github.com/superdango/waste-carbon-predictor/internal/must"
)

// Unit of every emission value this module reports.
const Unit = "kg CO₂e"

// ErrEstimatorUnavailable is returned when no estimator handle was
// configured. Fatal for any prediction attempt, never retried.
var ErrEstimatorUnavailable = errors.New("estimator is not available")

// Request describes one waste treatment event to predict emissions
// for. Value object, built per incoming call, never persisted.
type Request struct {
	// WasteType is the material category (Sludge, Waste Oil, ...)
	WasteType string `mapstructure:"waste_type" json:"waste_type"`
	// TreatmentMethod is the process category (Biological, Chemical, ...)
	TreatmentMethod string `mapstructure:"treatment_method" json:"treatment_method"`
	// VehicleType hauling the material, estimator feature. Optional.
	VehicleType string `mapstructure:"vehicle_type" json:"vehicle_type"`
	// QuantityTons of material processed
	QuantityTons float64 `mapstructure:"quantity_tons" json:"quantity_tons"`
	// TransportDistanceKm to the treatment site, estimator feature
	TransportDistanceKm float64 `mapstructure:"transport_distance_km" json:"transport_distance_km"`
	// TreatmentEmissionKgCO2e is an optional manual adjustment added
	// on top of the estimator's total
	TreatmentEmissionKgCO2e float64 `mapstructure:"treatment_emission_kgco2e" json:"treatment_emission_kgco2e"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.WasteType) == "" {
		return errors.New("waste type is required")
	}
	if strings.TrimSpace(r.TreatmentMethod) == "" {
		return errors.New("treatment method is required")
	}
	if r.QuantityTons < 0 {
		return errors.New("quantity must be non-negative")
	}
	if r.TransportDistanceKm < 0 {
		return errors.New("transport distance must be non-negative")
	}
	if r.TreatmentEmissionKgCO2e < 0 {
		return errors.New("treatment emission must be non-negative")
	}
	return nil
}

// features builds the estimator input record. Field names are the
// columns the model was trained on.
func (r Request) features() estimator.Features {
	vehicle := r.VehicleType
	if vehicle == "" {
		vehicle = "Unknown"
	}
	return estimator.Features{
		"waste_type":            r.WasteType,
		"treatment_method":      r.TreatmentMethod,
		"vehicle_type":          vehicle,
		"quantity_tons":         r.QuantityTons,
		"transport_distance_km": r.TransportDistanceKm,
	}
}

// Contribution is one gas share of a breakdown, derived only as part
// of a Breakdown.
type Contribution struct {
	KgCO2eq float64
	Percent float64
}

// Breakdown decomposes a total emission across the three reported
// gases. Contributions sum to TotalKgCO2eq and percentages to 100, up
// to reporting precision.
type Breakdown struct {
	CO2          Contribution
	CH4          Contribution
	N2O          Contribution
	TotalKgCO2eq float64
}

// Result is the externally visible outcome of one prediction.
type Result struct {
	// Prediction is the final authoritative total in kgCO2eq,
	// estimator total plus manual adjustment
	Prediction float64
	Unit       string
	Breakdown  Breakdown
}

// Calculator apportions an authoritative total across gases.
// Implemented by model/breakdown.
type Calculator interface {
	Breakdown(req Request, totalKgCO2eq float64) Breakdown
}

type PredictorOption func(*Predictor)

// WithEstimator sets the opaque model producing authoritative totals.
func WithEstimator(est estimator.Estimator) PredictorOption {
	return func(p *Predictor) {
		p.reconciler = estimator.NewReconciler(est)
	}
}

// WithCalculator sets the gas breakdown pipeline.
func WithCalculator(calculator Calculator) PredictorOption {
	return func(p *Predictor) {
		p.calculator = calculator
	}
}

// WithTotalsCache memoizes estimator totals per feature record for the
// given duration. The breakdown is always recomputed, it is pure.
func WithTotalsCache(ctx context.Context, ttl time.Duration) PredictorOption {
	return func(p *Predictor) {
		p.totals = cache.NewMemory(ctx, ttl)
	}
}

// Predictor orchestrates the reconciled estimator call and the gas
// breakdown. Shared state (factor table, estimator handle) is
// initialized once and read only, safe for concurrent use.
type Predictor struct {
	reconciler *estimator.Reconciler
	calculator Calculator
	totals     *cache.Memory
}

func NewPredictor(opts ...PredictorOption) *Predictor {
	predictor := new(Predictor)

	for _, opt := range opts {
		opt(predictor)
	}

	return predictor
}

// Predict returns the predicted total emission for the event and its
// per gas breakdown. Estimator failures that are not recoverable
// schema mismatches propagate to the caller.
func (p *Predictor) Predict(ctx context.Context, req Request) (*Result, error) {
	if p.reconciler == nil {
		return nil, ErrEstimatorUnavailable
	}
	must.Assert(p.calculator != nil, "predictor has no breakdown calculator")

	total, err := p.estimateTotal(ctx, req.features())
	if err != nil {
		return nil, fmt.Errorf("estimation failed: %w", err)
	}

	finalTotal := total + max(req.TreatmentEmissionKgCO2e, 0)

	return &Result{
		Prediction: Emissions(finalTotal).Rounded(),
		Unit:       Unit,
		Breakdown:  p.calculator.Breakdown(req, finalTotal),
	}, nil
}

func (p *Predictor) estimateTotal(ctx context.Context, features estimator.Features) (float64, error) {
	if p.totals == nil {
		return p.reconciler.Estimate(ctx, features)
	}

	v, err := p.totals.GetOrSet(ctx, features.Fingerprint(), func(ctx context.Context) (any, error) {
		return p.reconciler.Estimate(ctx, features)
	})
	if err != nil {
		return 0, err
	}

	total, ok := v.(float64)
	must.Assert(ok, "cached estimator total is not a float64")

	return total, nil
}
