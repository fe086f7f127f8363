package breakdown

import (
	wastecarbonpredictor "github.com/superdango/waste-carbon-predictor"
	"github.com/superdango/waste-carbon-predictor/model/factors"
	"gonum.org/v1/gonum/interp"
)

// Per kilometer gas emissions by vehicle type, kg of gas per km at
// reference load. Estimated placeholder values, same caveat as the
// treatment factor table.
var vehicleFactors = map[string]factors.Factors{
	"Small Truck":  {CO2: 0.28, CH4: 0.000015, N2O: 0.000012},
	"Medium Truck": {CO2: 0.52, CH4: 0.000025, N2O: 0.000020},
	"Heavy Truck":  {CO2: 0.92, CH4: 0.000040, N2O: 0.000031},
	"Rail":         {CO2: 0.06, CH4: 0.000004, N2O: 0.000002},
}

var defaultVehicleFactors = vehicleFactors["Medium Truck"]

// maxPayloadTons caps the load correction curve input.
const maxPayloadTons = 28.0

// loadCorrection adjusts per kilometer emissions for the carried
// payload. Fuel burn does not grow linearly with load: an empty truck
// still burns most of its fuel. Curve points follow HBEFA style load
// correction tables.
func loadCorrection(payloadTons float64) float64 {
	var curve interp.FritschButland
	curve.Fit(
		[]float64{0.0, 5.0, 15.0, maxPayloadTons},
		[]float64{0.62, 0.78, 0.94, 1.08},
	)

	return curve.Predict(min(payloadTons, maxPayloadTons))
}

// TransportSource contributes the emissions of hauling the material to
// the treatment site. Enabled with WithTransport; the treatment only
// pipeline simply omits it.
type TransportSource struct{}

func (s *TransportSource) CO2eqVector(req wastecarbonpredictor.Request) []float64 {
	f, found := vehicleFactors[req.VehicleType]
	if !found {
		f = defaultVehicleFactors
	}

	km := max(req.TransportDistanceKm, 0)
	correction := loadCorrection(req.QuantityTons)

	vector := make([]float64, gases)
	vector[co2] = f.CO2 * km * correction * wastecarbonpredictor.GWPCO2
	vector[ch4] = f.CH4 * km * correction * wastecarbonpredictor.GWPCH4
	vector[n2o] = f.N2O * km * correction * wastecarbonpredictor.GWPN2O
	return vector
}
