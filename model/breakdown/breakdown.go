// Package breakdown decomposes an authoritative total emission into
// per gas contributions. Contribution sources (treatment, transport,
// manual adjustment) each produce a raw per gas CO2e vector; the
// summed vectors are rescaled so their sum matches the total while
// preserving the relative proportions the factor model implies.
package breakdown

import (
	"log/slog"

	wastecarbonpredictor "github.com/superdango/waste-carbon-predictor"
	"github.com/superdango/waste-carbon-predictor/model/factors"
	"gonum.org/v1/gonum/floats"
)

// Gas vector indexes. Every source emits its contributions in this
// order, in kgCO2eq.
const (
	co2 = iota
	ch4
	n2o
	gases
)

// Source produces one raw per gas CO2e vector for a request.
type Source interface {
	CO2eqVector(req wastecarbonpredictor.Request) []float64
}

type CalculatorOption func(*Calculator)

// WithTransport includes transport emissions as a contribution source.
func WithTransport() CalculatorOption {
	return func(c *Calculator) {
		c.sources = append(c.sources, new(TransportSource))
	}
}

// WithSource appends an extra contribution source.
func WithSource(source Source) CalculatorOption {
	return func(c *Calculator) {
		c.sources = append(c.sources, source)
	}
}

// Calculator runs the decomposition pipeline. Pure computation, no
// side effects, safe for concurrent use.
type Calculator struct {
	sources []Source
}

func NewCalculator(table *factors.Table, opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		sources: []Source{
			&TreatmentSource{table: table},
			new(AdjustmentSource),
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Breakdown apportions totalKgCO2eq across CO2, CH4 and N2O. The
// returned contributions sum to the total up to reporting precision,
// except in the degenerate all-zero-sources case documented below.
func (c *Calculator) Breakdown(req wastecarbonpredictor.Request, totalKgCO2eq float64) wastecarbonpredictor.Breakdown {
	raw := make([]float64, gases)
	for _, source := range c.sources {
		floats.Add(raw, source.CO2eqVector(req))
	}

	rawTotal := floats.Sum(raw)
	scale := 1.0
	if rawTotal > 0 {
		scale = totalKgCO2eq / rawTotal
	} else if totalKgCO2eq > 0 {
		// Zero quantity with no adjustment leaves every raw
		// contribution at zero. The original pipeline reported an all
		// zero breakdown against a nonzero total here; kept as is
		// pending clarification of the intended policy.
		slog.Warn("all raw gas contributions are zero, breakdown cannot be reconciled with the predicted total",
			"material", req.WasteType, "process", req.TreatmentMethod, "total_kg_co2eq", totalKgCO2eq)
	}
	floats.Scale(scale, raw)

	return wastecarbonpredictor.Breakdown{
		CO2:          contribution(raw[co2], totalKgCO2eq),
		CH4:          contribution(raw[ch4], totalKgCO2eq),
		N2O:          contribution(raw[n2o], totalKgCO2eq),
		TotalKgCO2eq: wastecarbonpredictor.Emissions(totalKgCO2eq).Rounded(),
	}
}

func contribution(kgCO2eq, totalKgCO2eq float64) wastecarbonpredictor.Contribution {
	percent := 0.0
	if totalKgCO2eq > 0 {
		percent = kgCO2eq / totalKgCO2eq * 100
	}
	return wastecarbonpredictor.Contribution{
		KgCO2eq: wastecarbonpredictor.Emissions(kgCO2eq).Rounded(),
		Percent: wastecarbonpredictor.Emissions(percent).Rounded(),
	}
}

// TreatmentSource derives gas masses from the treatment emission
// factor table and converts them to CO2e with the gas GWPs.
type TreatmentSource struct {
	table *factors.Table
}

func (s *TreatmentSource) CO2eqVector(req wastecarbonpredictor.Request) []float64 {
	f := s.table.Lookup(req.WasteType, req.TreatmentMethod)
	kg := wastecarbonpredictor.MassFromTons(req.QuantityTons).Kg()

	vector := make([]float64, gases)
	vector[co2] = f.CO2 * kg * wastecarbonpredictor.GWPCO2
	vector[ch4] = f.CH4 * kg * wastecarbonpredictor.GWPCH4
	vector[n2o] = f.N2O * kg * wastecarbonpredictor.GWPN2O
	return vector
}

// AdjustmentSource attributes the caller supplied manual adjustment to
// the CO2 share. Negative adjustments are clamped to zero so the
// breakdown can never pull a reported total below the estimator's
// figure; request validation upstream rejects them first.
type AdjustmentSource struct{}

func (s *AdjustmentSource) CO2eqVector(req wastecarbonpredictor.Request) []float64 {
	vector := make([]float64, gases)
	vector[co2] = max(req.TreatmentEmissionKgCO2e, 0)
	return vector
}
