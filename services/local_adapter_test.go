package services

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip-server/utils/errors"
	"roadtrip-server/utils/geo"
)

type providerFunc func(ctx context.Context, q LocalQuery) (LocalOutput, error)

func (f providerFunc) Infer(ctx context.Context, q LocalQuery) (LocalOutput, error) {
	return f(ctx, q)
}

const sampleInference = `NAME: Lost Lake
DESCRIPTION: Glacial lake below Mount Hood
RATING: 4.8 stars
DISTANCE: 0.5 km
WHY: Classic reflection photo of the mountain
---
NAME: Old Growth Trail
DESCRIPTION: Boardwalk loop through big cedars
---
DESCRIPTION: block without a name is ignored
---
NAME: Impossible Diner
RATING: 9
---
`

var lakeRequest = AdapterRequest{
	Latitude:   45.4979,
	Longitude:  -121.8209,
	Category:   "attraction",
	RadiusKm:   2,
	MaxResults: 10,
}

func TestParseInferenceText(t *testing.T) {
	pois := ParseInferenceText(sampleInference, lakeRequest)
	require.Len(t, pois, 2)

	lake := pois[0]
	assert.Equal(t, "Lost Lake", lake.Name)
	assert.Equal(t, 4.8, lake.Rating)
	assert.Equal(t, 0.5, lake.DistanceKm)
	assert.Equal(t, "Classic reflection photo of the mountain", lake.ReviewSummary)
	assert.Equal(t, "attraction", lake.Category)
	assert.InDelta(t, 0.5, geo.DistanceKm(45.4979, -121.8209, lake.Location.Lat(), lake.Location.Lon()), 1e-3)

	trail := pois[1]
	assert.Equal(t, defaultTextRating, trail.Rating)
	assert.Equal(t, defaultTextDistanceKm, trail.DistanceKm)
}

func TestParseInferenceText_DropsCandidatesOutsideRadius(t *testing.T) {
	text := `NAME: Multnomah Falls
DISTANCE: 60 km
---
NAME: Lost Lake
DISTANCE: 1.9 km
---`
	pois := ParseInferenceText(text, lakeRequest)
	require.Len(t, pois, 1)
	assert.Equal(t, "Lost Lake", pois[0].Name)

	unbounded := lakeRequest
	unbounded.RadiusKm = 0
	assert.Len(t, ParseInferenceText(text, unbounded), 2)
}

func TestParseInferenceText_StablePositions(t *testing.T) {
	a := ParseInferenceText(sampleInference, lakeRequest)
	b := ParseInferenceText(sampleInference, lakeRequest)
	require.Len(t, b, len(a))
	for i := range a {
		assert.True(t, a[i].SameAs(b[i]), "re-parsing %q lands on the same place", a[i].Name)
	}
}

func TestBuildDiscoveryPrompt(t *testing.T) {
	prompt := BuildDiscoveryPrompt(lakeRequest)
	assert.Contains(t, prompt, "45.4979, -121.8209")
	assert.Contains(t, prompt, "attraction")
	assert.Contains(t, prompt, "NAME: [exact name]")
}

func TestLocalAdapter_TextProvider(t *testing.T) {
	var seen LocalQuery
	a := NewLocalAdapter(providerFunc(func(ctx context.Context, q LocalQuery) (LocalOutput, error) {
		seen = q
		return LocalOutput{Text: sampleInference}, nil
	}), 0)

	req := lakeRequest
	req.MaxResults = 1
	pois, err := a.Query(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, pois, 1)
	assert.NotEmpty(t, seen.Prompt)
	assert.Equal(t, "local", a.Name())
}

func TestLocalAdapter_StructuredCandidates(t *testing.T) {
	want := spread(t, "Catalogue", 3)
	a := NewLocalAdapter(providerFunc(func(ctx context.Context, q LocalQuery) (LocalOutput, error) {
		return LocalOutput{Candidates: want, Text: "ignored"}, nil
	}), time.Second)

	pois, err := a.Query(context.Background(), lakeRequest)
	require.NoError(t, err)
	assert.Equal(t, names(want), names(pois))
}

func TestLocalAdapter_BudgetElapses(t *testing.T) {
	// The provider ignores ctx entirely; the adapter must still give up.
	release := make(chan struct{})
	defer close(release)
	a := NewLocalAdapter(providerFunc(func(ctx context.Context, q LocalQuery) (LocalOutput, error) {
		<-release
		return LocalOutput{}, nil
	}), 50*time.Millisecond)

	start := time.Now()
	_, err := a.Query(context.Background(), lakeRequest)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, stderrors.Is(err, errors.ErrAdapterTimeout), "got %v", err)
}

func TestLocalAdapter_ProviderFailure(t *testing.T) {
	a := NewLocalAdapter(providerFunc(func(ctx context.Context, q LocalQuery) (LocalOutput, error) {
		return LocalOutput{}, stderrors.New("model not loaded")
	}), time.Second)

	_, err := a.Query(context.Background(), lakeRequest)
	assert.True(t, stderrors.Is(err, errors.ErrProviderUnavailable))
}

func TestLocalAdapter_CallerCancels(t *testing.T) {
	a := NewLocalAdapter(providerFunc(func(ctx context.Context, q LocalQuery) (LocalOutput, error) {
		<-ctx.Done()
		return LocalOutput{}, ctx.Err()
	}), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := a.Query(ctx, lakeRequest)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLeadingNumber(t *testing.T) {
	for in, want := range map[string]float64{
		"4.5 stars": 4.5,
		"2.3km":     2.3,
		"3":         3,
		"4*":        4,
	} {
		got, ok := leadingNumber(in)
		if assert.True(t, ok, in) {
			assert.Equal(t, want, got, in)
		}
	}
	_, ok := leadingNumber("about five")
	assert.False(t, ok)
}
