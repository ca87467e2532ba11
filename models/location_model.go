package models

import "time"

// LocationSample is one reading from the location-tracking collaborator.
type LocationSample struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	SpeedMps  float64   `json:"speed"`
	Timestamp time.Time `json:"timestamp"`
}

// Trigger records when and where the last discovery cycle was started.
type Trigger struct {
	At        time.Time `json:"at"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
}
