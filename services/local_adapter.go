package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"hash/fnv"
	"log"
	"strconv"
	"strings"
	"time"

	"roadtrip-server/models"
	"roadtrip-server/utils/errors"
	"roadtrip-server/utils/geo"
)

const (
	DefaultLocalBudget = 350 * time.Millisecond

	defaultTextRating     = 4.0
	defaultTextDistanceKm = 2.0
)

// LocalQuery is passed to the on-device provider. Prompt is filled for
// text-generating providers; structured providers may ignore it.
type LocalQuery struct {
	AdapterRequest
	Prompt string
}

// LocalOutput carries either free text in the block format produced by the
// discovery prompt, or ready-made candidates.
type LocalOutput struct {
	Text       string
	Candidates []models.POI
}

// LocalProvider is the opaque on-device inference runtime.
type LocalProvider interface {
	Infer(ctx context.Context, q LocalQuery) (LocalOutput, error)
}

type LocalAdapter struct {
	provider LocalProvider
	budget   time.Duration
}

func NewLocalAdapter(provider LocalProvider, budget time.Duration) *LocalAdapter {
	if budget <= 0 {
		budget = DefaultLocalBudget
	}
	return &LocalAdapter{provider: provider, budget: budget}
}

func (a *LocalAdapter) Name() string { return "local" }

// Query runs the provider under the request budget (or the adapter default).
// The provider call is abandoned once the budget elapses, even if the
// provider itself ignores ctx.
func (a *LocalAdapter) Query(ctx context.Context, req AdapterRequest) ([]models.POI, error) {
	budget := req.Budget
	if budget <= 0 {
		budget = a.budget
	}
	qctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	q := LocalQuery{AdapterRequest: req, Prompt: BuildDiscoveryPrompt(req)}

	type reply struct {
		out LocalOutput
		err error
	}
	done := make(chan reply, 1)
	go func() {
		out, err := a.provider.Infer(qctx, q)
		done <- reply{out, err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-qctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.WithCause(errors.ErrAdapterTimeout, fmt.Errorf("local inference exceeded %v", budget))
	}

	if r.err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if stderrors.Is(r.err, context.DeadlineExceeded) {
			return nil, errors.WithCause(errors.ErrAdapterTimeout, r.err)
		}
		return nil, errors.WithCause(errors.ErrProviderUnavailable, r.err)
	}

	var pois []models.POI
	if len(r.out.Candidates) > 0 {
		pois = r.out.Candidates
	} else {
		pois = ParseInferenceText(r.out.Text, req)
	}
	if req.MaxResults > 0 && len(pois) > req.MaxResults {
		pois = pois[:req.MaxResults]
	}
	log.Printf("Local inference produced %d candidates", len(pois))
	return pois, nil
}

// BuildDiscoveryPrompt asks a text model for POIs in the block format that
// ParseInferenceText understands.
func BuildDiscoveryPrompt(req AdapterRequest) string {
	n := req.MaxResults
	if n <= 0 {
		n = AutomotiveSafetyCap
	}
	return fmt.Sprintf(`Discover %d real points of interest within %.0f km of coordinates %.4f, %.4f in the %s category.

For each POI, provide:
- Exact name
- Brief description
- Why it's worth visiting
- Estimated rating (1-5 stars)
- Distance from center (in km)

Focus on authentic local places, hidden gems, and well-known attractions.

Format each POI as:
NAME: [exact name]
DESCRIPTION: [brief description]
RATING: [1-5 stars]
DISTANCE: [distance in km]
WHY: [reason to visit]
---`, n, req.RadiusKm, req.Latitude, req.Longitude, req.Category)
}

// ParseInferenceText turns "---" separated NAME/DESCRIPTION/RATING/DISTANCE
// blocks into POIs placed around the request position. Blocks without a name,
// with out-of-range values or lying beyond req.RadiusKm are skipped.
func ParseInferenceText(text string, req AdapterRequest) []models.POI {
	var pois []models.POI
	for _, block := range strings.Split(text, "---") {
		poi, ok := parseInferenceBlock(block, req)
		if ok {
			pois = append(pois, poi)
		}
	}
	return pois
}

func parseInferenceBlock(block string, req AdapterRequest) (models.POI, bool) {
	var name, description, why string
	rating := defaultTextRating
	distance := defaultTextDistanceKm

	for _, line := range strings.Split(block, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "NAME":
			name = value
		case "DESCRIPTION":
			description = value
		case "WHY":
			why = value
		case "RATING":
			if f, ok := leadingNumber(value); ok {
				rating = f
			}
		case "DISTANCE":
			if f, ok := leadingNumber(value); ok {
				distance = f
			}
		}
	}
	if name == "" {
		return models.POI{}, false
	}
	if description == "" {
		description = "A point of interest near your location"
	}
	if req.RadiusKm > 0 && distance > req.RadiusKm {
		log.Printf("Skipping local candidate %q: %.1f km is outside the %.1f km radius", name, distance, req.RadiusKm)
		return models.POI{}, false
	}

	distance = clampDistance(distance)
	lat, lon := geo.Destination(req.Latitude, req.Longitude, distance, nameBearing(name))
	poi, err := models.NewPOI(models.POIParams{
		Name:          name,
		Category:      req.Category,
		Latitude:      lat,
		Longitude:     lon,
		Rating:        rating,
		DistanceKm:    distance,
		Description:   description,
		ReviewSummary: why,
	})
	if err != nil {
		log.Printf("Skipping local candidate %q: %v", name, err)
		return models.POI{}, false
	}
	return poi, true
}

// nameBearing derives a stable bearing from the name so that re-parsing the
// same text places a POI at the same spot.
func nameBearing(name string) float64 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(name)))
	return float64(h.Sum32() % 360)
}

func leadingNumber(s string) (float64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimRight(fields[0], "km*/"), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
