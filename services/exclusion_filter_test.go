package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"roadtrip-server/models"
)

func TestExclusionFilter_Denylist(t *testing.T) {
	f := NewExclusionFilter([]string{"Starbucks", " McDonald's ", ""}, nil)

	in := []models.POI{
		mustPOI(t, "Lost Lake", 45.4979, -121.8209),
		mustPOI(t, "STARBUCKS Reserve Roastery", 45.5, -121.8),
		mustPOI(t, "Hood River McDonald's", 45.6, -121.5),
		mustPOI(t, "Panorama Point", 45.68, -121.5),
	}
	out := f.Filter(in)

	assert.Equal(t, []string{"Lost Lake", "Panorama Point"}, names(out))
	assert.Len(t, in, 4, "input untouched")
}

func TestExclusionFilter_Categories(t *testing.T) {
	f := NewExclusionFilter(nil, []string{"Casino"})

	casino := mustPOI(t, "Lucky Star", 45.5, -121.8)
	casino.Category = "casino"
	park := mustPOI(t, "Old Growth Trail", 45.5, -121.8)

	assert.True(t, f.Excluded(casino))
	assert.False(t, f.Excluded(park))
}

func TestExclusionFilter_EmptyKeepsAll(t *testing.T) {
	f := NewExclusionFilter(nil, nil)
	in := spread(t, "Stop", 3)
	assert.Equal(t, names(in), names(f.Filter(in)))
	assert.NotNil(t, f.Filter(nil))
}
