package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip-server/models"
)

func catalogue() []models.CatalogPOI {
	return []models.CatalogPOI{
		{ID: "lost-lake", Name: "Lost Lake", Type: "attraction", Rating: 4.8,
			Location: models.NewGeoPoint(45.4979, -121.8209)},
		{ID: "old-growth", Name: "Old Growth Trail", Type: "park", Rating: 4.7,
			Location: models.NewGeoPoint(45.5035, -121.8168)},
		{ID: "butte", Name: "Lost Lake Butte Trail", Type: "attraction", Rating: 4.6,
			Location: models.NewGeoPoint(45.4886, -121.8165)},
		{ID: "timberline", Name: "Timberline Lodge", Type: "lodging", Rating: 4.8,
			Location: models.NewGeoPoint(45.3311, -121.7113)},
		{ID: "", Name: "No id", Type: "attraction",
			Location: models.NewGeoPoint(45.4979, -121.8209)},
	}
}

func TestGeoIndex_LoadAndInfer(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	index := NewGeoIndex(client)

	n, err := index.Load(ctx, catalogue())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	out, err := index.Infer(ctx, LocalQuery{AdapterRequest: AdapterRequest{
		Latitude: 45.4975, Longitude: -121.8205, Category: "attraction", RadiusKm: 5,
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lost Lake", "Lost Lake Butte Trail"}, names(out.Candidates), "nearest first, type filtered")
	for _, poi := range out.Candidates {
		assert.Greater(t, poi.DistanceKm, 0.0)
		assert.Equal(t, "attraction", poi.Category)
	}
}

func TestGeoIndex_AnyCategoryAndLimit(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	index := NewGeoIndex(client)
	_, err := index.Load(ctx, catalogue())
	require.NoError(t, err)

	out, err := index.Infer(ctx, LocalQuery{AdapterRequest: AdapterRequest{
		Latitude: 45.4979, Longitude: -121.8209, RadiusKm: 50, MaxResults: 2,
	}})
	require.NoError(t, err)
	assert.Len(t, out.Candidates, 2)
}

func TestGeoIndex_ReloadReplaces(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	index := NewGeoIndex(client)
	_, err := index.Load(ctx, catalogue())
	require.NoError(t, err)

	_, err = index.Load(ctx, catalogue()[3:4])
	require.NoError(t, err)

	out, err := index.Infer(ctx, LocalQuery{AdapterRequest: AdapterRequest{
		Latitude: 45.4979, Longitude: -121.8209, RadiusKm: 5,
	}})
	require.NoError(t, err)
	assert.Empty(t, out.Candidates)
}

func TestGeoIndex_AsLocalAdapter(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	index := NewGeoIndex(client)
	_, err := index.Load(ctx, catalogue())
	require.NoError(t, err)

	pois, err := NewLocalAdapter(index, 0).Query(ctx, lakeRequest)
	require.NoError(t, err)
	require.NotEmpty(t, pois)
	assert.Equal(t, "Lost Lake", pois[0].Name)
}

func TestReadCatalogueFile(t *testing.T) {
	entries, err := ReadCatalogueFile(filepath.Join("..", "data", "pois.json"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "lost-lake", entries[0].ID)
	assert.Equal(t, 45.4979, entries[0].Location.Lat())

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = ReadCatalogueFile(bad)
	assert.Error(t, err)

	_, err = ReadCatalogueFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
