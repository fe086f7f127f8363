package wastecarbonpredictor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mitchellh/mapstructure"
)

// Canonicalizer normalizes free text category names to the factor
// table's canonical spelling. Implemented by model/factors.
type Canonicalizer interface {
	CanonicalMaterial(material string) string
	CanonicalProcess(process string) string
}

// PredictHandler is the HTTP boundary: it parses and validates one
// prediction request, runs the predictor and renders the result
// payload.
type PredictHandler struct {
	predictor     *Predictor
	canonicalizer Canonicalizer
}

func NewPredictHandler(predictor *Predictor, canonicalizer Canonicalizer) *PredictHandler {
	return &PredictHandler{
		predictor:     predictor,
		canonicalizer: canonicalizer,
	}
}

type gasPayload struct {
	CO2eKg     float64 `json:"co2e_kg"`
	Percentage float64 `json:"percentage"`
}

type breakdownPayload struct {
	CO2       gasPayload `json:"co2"`
	CH4       gasPayload `json:"ch4"`
	N2O       gasPayload `json:"n2o"`
	TotalCO2e float64    `json:"total_co2e"`
}

type predictionPayload struct {
	Success      bool             `json:"success"`
	Prediction   float64          `json:"prediction"`
	Unit         string           `json:"unit"`
	GasBreakdown breakdownPayload `json:"gas_breakdown"`
}

type errorPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *PredictHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := make(map[string]any)
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid json")
		return
	}

	req, err := decodeRequest(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.canonicalizer != nil {
		req.WasteType = h.canonicalizer.CanonicalMaterial(req.WasteType)
		req.TreatmentMethod = h.canonicalizer.CanonicalProcess(req.TreatmentMethod)
	}

	result, err := h.predictor.Predict(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrEstimatorUnavailable) {
			status = http.StatusServiceUnavailable
		}
		slog.Error("prediction failed", "material", req.WasteType, "process", req.TreatmentMethod, "err", err)
		writeError(w, status, err.Error())
		return
	}

	slog.Info("prediction served",
		"material", req.WasteType,
		"process", req.TreatmentMethod,
		"quantity_tons", req.QuantityTons,
		"total_kg_co2eq", result.Prediction)

	writeJSON(w, http.StatusOK, predictionPayload{
		Success:    true,
		Prediction: result.Prediction,
		Unit:       result.Unit,
		GasBreakdown: breakdownPayload{
			CO2:       gasPayload{CO2eKg: result.Breakdown.CO2.KgCO2eq, Percentage: result.Breakdown.CO2.Percent},
			CH4:       gasPayload{CO2eKg: result.Breakdown.CH4.KgCO2eq, Percentage: result.Breakdown.CH4.Percent},
			N2O:       gasPayload{CO2eKg: result.Breakdown.N2O.KgCO2eq, Percentage: result.Breakdown.N2O.Percent},
			TotalCO2e: result.Breakdown.TotalKgCO2eq,
		},
	})
}

// decodeRequest accepts the payload weakly typed: numeric fields may
// arrive as json numbers or as strings, form style.
func decodeRequest(raw map[string]any) (Request, error) {
	req := Request{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &req,
	})
	if err != nil {
		return req, err
	}

	if err := decoder.Decode(raw); err != nil {
		return req, errors.New("quantity, distance and emission fields must be valid numbers")
	}

	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write response payload", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Success: false, Error: message})
}
