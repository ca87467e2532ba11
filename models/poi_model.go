package models

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"roadtrip-server/utils/errors"
	"roadtrip-server/utils/geo"
)

// DefaultSamePlaceMeters is the proximity under which two equally named POIs
// are treated as one place.
const DefaultSamePlaceMeters = 50.0

// POI is a discovered place. Values are built by NewPOI and never mutated
// afterwards; the With* helpers return modified copies.
type POI struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Location         GeoPoint `json:"location"`
	Rating           float64  `json:"rating"`
	DistanceKm       float64  `json:"distance_km"`
	Description      string   `json:"description"`
	ImageURL         string   `json:"image_url,omitempty"`
	ReviewSummary    string   `json:"review_summary,omitempty"`
	Address          string   `json:"address,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	CouldEarnRevenue bool     `json:"could_earn_revenue"`
}

// GeoPoint is a GeoJSON point; Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lon, lat}}
}

func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

func (p GeoPoint) Lon() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

// POIParams carries the raw fields a POI is built from.
type POIParams struct {
	ID            string
	Name          string
	Category      string
	Latitude      float64
	Longitude     float64
	Rating        float64
	DistanceKm    float64
	Description   string
	ImageURL      string
	ReviewSummary string
	Address       string
	Tags          []string
}

// NewPOI validates p and builds a POI. A missing ID gets a fresh UUID.
func NewPOI(p POIParams) (POI, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return POI{}, errors.Validation("name", "must not be empty")
	}
	category := NormalizeCategory(p.Category)
	if category == "" {
		return POI{}, errors.Validation("category", "must not be empty")
	}
	if !geo.ValidCoordinates(p.Latitude, p.Longitude) {
		return POI{}, errors.Validation("location", "latitude or longitude out of range")
	}
	if math.IsNaN(p.Rating) || p.Rating < 0 || p.Rating > 5 {
		return POI{}, errors.Validation("rating", "must be within [0, 5]")
	}
	if math.IsNaN(p.DistanceKm) || p.DistanceKm <= 0 {
		return POI{}, errors.Validation("distance_km", "must be positive")
	}

	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	var tags []string
	if len(p.Tags) > 0 {
		tags = append(tags, p.Tags...)
	}
	return POI{
		ID:            id,
		Name:          name,
		Category:      category,
		Location:      NewGeoPoint(p.Latitude, p.Longitude),
		Rating:        p.Rating,
		DistanceKm:    p.DistanceKm,
		Description:   p.Description,
		ImageURL:      p.ImageURL,
		ReviewSummary: p.ReviewSummary,
		Address:       p.Address,
		Tags:          tags,
	}, nil
}

// SameAs reports whether p and other name the same real place under the
// default proximity threshold.
func (p POI) SameAs(other POI) bool {
	return p.SamePlace(other, DefaultSamePlaceMeters)
}

// SamePlace matches names case-insensitively and positions within
// thresholdMeters. Ids are ignored: backends mint different ids for one place.
func (p POI) SamePlace(other POI, thresholdMeters float64) bool {
	if !strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(other.Name)) {
		return false
	}
	d := geo.DistanceMeters(p.Location.Lat(), p.Location.Lon(), other.Location.Lat(), other.Location.Lon())
	return d <= thresholdMeters
}

// NameKey is the case-folded name used to index places by identity.
func (p POI) NameKey() string {
	return strings.ToLower(strings.TrimSpace(p.Name))
}

func (p POI) WithRevenueFlag(couldEarn bool) POI {
	p.CouldEarnRevenue = couldEarn
	return p
}

func (p POI) WithReviewSummary(summary string) POI {
	p.ReviewSummary = summary
	return p
}

// NormalizeCategory lower-cases and trims a category label.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
