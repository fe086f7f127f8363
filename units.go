package wastecarbonpredictor

import "math"

// Mass in kilograms
type Mass float64

// MassFromTons converts a quantity expressed in metric tons to the
// kilogram basis used by the emission factor tables.
func MassFromTons(tons float64) Mass {
	return Mass(tons * 1000)
}

func (m Mass) Kg() float64 {
	return float64(m)
}

// Emissions in kgCO2eq
type Emissions float64

func (e Emissions) KgCO2eq() float64 {
	return float64(e)
}

func (e Emissions) TCO2eq() float64 {
	return float64(e) / 1000
}

// Rounded returns the emission value at reporting precision (2 decimal
// digits). Intermediate calculations keep full precision, rounding
// happens only at the output boundary.
func (e Emissions) Rounded() float64 {
	return math.Round(float64(e)*100) / 100
}

// Global warming potentials, 100 year horizon. CO2 is the baseline.
const (
	GWPCO2 = 1.0
	GWPCH4 = 28.0
	GWPN2O = 298.0
)
