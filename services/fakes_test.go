package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roadtrip-server/models"
)

// stubAdapter answers with fixed POIs after delay, or fails with err.
type stubAdapter struct {
	name  string
	pois  []models.POI
	err   error
	delay time.Duration
	calls atomic.Int32
	last  atomic.Pointer[AdapterRequest]
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Query(ctx context.Context, req AdapterRequest) ([]models.POI, error) {
	s.calls.Add(1)
	s.last.Store(&req)
	if s.delay > 0 {
		budget := req.Budget
		if budget <= 0 {
			budget = time.Hour
		}
		qctx, cancel := context.WithTimeout(ctx, budget)
		defer cancel()
		select {
		case <-time.After(s.delay):
		case <-qctx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, qctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.POI, len(s.pois))
	copy(out, s.pois)
	return out, nil
}

func mustPOI(t *testing.T, name string, lat, lon float64) models.POI {
	t.Helper()
	poi, err := models.NewPOI(models.POIParams{
		Name:        name,
		Category:    "attraction",
		Latitude:    lat,
		Longitude:   lon,
		Rating:      4.2,
		DistanceKm:  1.5,
		Description: name + " description",
	})
	require.NoError(t, err)
	return poi
}

// spread returns n distinct POIs laid out roughly 100 m apart.
func spread(t *testing.T, prefix string, n int) []models.POI {
	t.Helper()
	pois := make([]models.POI, 0, n)
	for i := 0; i < n; i++ {
		pois = append(pois, mustPOI(t, prefix+" "+string(rune('A'+i)), 45.49+float64(i)*0.001, -121.82))
	}
	return pois
}

func names(pois []models.POI) []string {
	out := make([]string, len(pois))
	for i, p := range pois {
		out[i] = p.Name
	}
	return out
}
