package services

import (
	"time"

	"roadtrip-server/models"
	"roadtrip-server/utils/geo"
)

type DebounceConfig struct {
	Cooldown      time.Duration
	MinSpeedMps   float64 // below this (but above zero) the vehicle counts as idling
	MinDistanceKm float64
}

func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Cooldown:      60 * time.Second,
		MinSpeedMps:   2.2,
		MinDistanceKm: 1.0,
	}
}

// Debouncer decides whether a location sample warrants a new discovery
// cycle. ShouldTrigger is a pure function of its arguments.
type Debouncer struct {
	cfg DebounceConfig
}

func NewDebouncer(cfg DebounceConfig) *Debouncer {
	return &Debouncer{cfg: cfg}
}

func (d *Debouncer) Config() DebounceConfig {
	return d.cfg
}

// ShouldTrigger applies, in order: cooldown, idling, minimum movement. A nil
// last trigger means no cycle has run yet this session.
func (d *Debouncer) ShouldTrigger(now time.Time, sample models.LocationSample, last *models.Trigger) bool {
	if last != nil && now.Sub(last.At) < d.cfg.Cooldown {
		return false
	}
	if sample.SpeedMps > 0 && sample.SpeedMps < d.cfg.MinSpeedMps {
		return false
	}
	if last != nil {
		moved := geo.DistanceKm(last.Latitude, last.Longitude, sample.Latitude, sample.Longitude)
		if moved < d.cfg.MinDistanceKm {
			return false
		}
	}
	return true
}
