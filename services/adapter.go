package services

import (
	"context"
	"time"

	"roadtrip-server/models"
)

// AdapterRequest is what the engine hands to either backend. RadiusKm is
// chosen by the engine, never by an adapter.
type AdapterRequest struct {
	Latitude   float64
	Longitude  float64
	Category   string
	RadiusKm   float64
	MaxResults int
	Budget     time.Duration
}

// Adapter produces POI candidates for a request within req.Budget. Timeouts
// surface as errors.ErrAdapterTimeout and backend failures as
// errors.ErrProviderUnavailable; the engine treats both as soft failures.
type Adapter interface {
	Name() string
	Query(ctx context.Context, req AdapterRequest) ([]models.POI, error)
}

// clampDistance keeps computed distances strictly positive; a place at the
// user's exact position is reported 10 m away.
func clampDistance(km float64) float64 {
	if km < 0.01 {
		return 0.01
	}
	return km
}
