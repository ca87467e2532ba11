package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"roadtrip-server/middleware"
	"roadtrip-server/models"
	"roadtrip-server/utils/errors"
)

type LocationHandler struct {
	*DiscoveryHandler
}

func NewLocationHandler(d *DiscoveryHandler) *LocationHandler {
	return &LocationHandler{DiscoveryHandler: d}
}

type PingRequest struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	SpeedMps  float64 `json:"speed"`
	Category  string  `json:"category,omitempty"`
}

type PingResponse struct {
	Triggered bool                    `json:"triggered"`
	Result    *models.DiscoveryResult `json:"result,omitempty"`
}

// PingLocation feeds one position/speed sample to the driver's engine.
func (h *LocationHandler) PingLocation(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	var input PingRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	category := input.Category
	if category == "" {
		category = defaultCategory
	}

	sample := models.LocationSample{
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		SpeedMps:  input.SpeedMps,
		Timestamp: time.Now(),
	}
	result, triggered, err := engine.OnLocation(r.Context(), sample, category)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PingResponse{Triggered: triggered, Result: result})
}
