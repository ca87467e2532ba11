package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"roadtrip-server/models"
	"roadtrip-server/utils/errors"
	"roadtrip-server/utils/geo"
)

const (
	DefaultRemoteBudget = time.Second

	maxRemoteRadiusMeters = 50000
	maxRemoteResults      = 20
)

// placesNamespace scopes the deterministic UUIDs minted from place ids.
var placesNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("roadtrip-server/places"))

// RemoteAdapter queries a Places-style nearby search API. Requests are plain
// GETs, so retrying an identical request is safe.
type RemoteAdapter struct {
	baseURL string
	apiKey  string
	budget  time.Duration
	client  *http.Client
	limiter *rate.Limiter
}

type RemoteConfig struct {
	BaseURL     string
	APIKey      string
	Budget      time.Duration
	MinInterval time.Duration
	Client      *http.Client
}

func NewRemoteAdapter(cfg RemoteConfig) *RemoteAdapter {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultRemoteBudget
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &RemoteAdapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		budget:  cfg.Budget,
		client:  cfg.Client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (a *RemoteAdapter) Name() string { return "remote" }

type placesResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID  string  `json:"place_id"`
	Name     string  `json:"name"`
	Rating   float64 `json:"rating"`
	Vicinity string  `json:"vicinity"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	Photos []struct {
		PhotoReference string `json:"photo_reference"`
	} `json:"photos"`
	Reviews []struct {
		Text string `json:"text"`
	} `json:"reviews"`
}

// Query fails with errors.ErrProviderUnavailable on any network, status or
// decode failure, including running out of budget.
func (a *RemoteAdapter) Query(ctx context.Context, req AdapterRequest) ([]models.POI, error) {
	budget := req.Budget
	if budget <= 0 {
		budget = a.budget
	}
	qctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	if err := a.limiter.Wait(qctx); err != nil {
		return nil, a.failure(ctx, err)
	}

	httpReq, err := http.NewRequestWithContext(qctx, http.MethodGet, a.searchURL(req), nil)
	if err != nil {
		return nil, a.failure(ctx, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, a.failure(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, a.failure(ctx, fmt.Errorf("http %d", resp.StatusCode))
	}
	var body placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, a.failure(ctx, fmt.Errorf("decoding response: %w", err))
	}
	if body.Status != "OK" && body.Status != "ZERO_RESULTS" {
		return nil, a.failure(ctx, fmt.Errorf("places api error (%s): %s", body.Status, body.ErrorMessage))
	}

	limit := maxRemoteResults
	if req.MaxResults > 0 && req.MaxResults < limit {
		limit = req.MaxResults
	}
	pois := make([]models.POI, 0, limit)
	for _, place := range body.Results {
		if len(pois) >= limit {
			break
		}
		poi, ok := a.convertPlace(place, req)
		if ok {
			pois = append(pois, poi)
		}
	}

	elapsed := time.Since(start)
	if elapsed > budget {
		log.Printf("Slow places request: %v (target: %v)", elapsed, budget)
	}
	log.Printf("Places API returned %d POIs for category '%s'", len(pois), req.Category)
	return pois, nil
}

// failure maps err onto the adapter's error contract. Cancellation by the
// caller is passed through untouched.
func (a *RemoteAdapter) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.WithCause(errors.ErrProviderUnavailable, err)
}

func (a *RemoteAdapter) searchURL(req AdapterRequest) string {
	radius := math.Min(req.RadiusKm*1000, maxRemoteRadiusMeters)
	q := url.Values{}
	q.Set("location", fmt.Sprintf("%f,%f", req.Latitude, req.Longitude))
	q.Set("radius", strconv.Itoa(int(radius)))
	q.Set("type", PlacesType(req.Category))
	q.Set("key", a.apiKey)
	return a.baseURL + "/nearbysearch/json?" + q.Encode()
}

func (a *RemoteAdapter) convertPlace(place placeResult, req AdapterRequest) (models.POI, bool) {
	lat := place.Geometry.Location.Lat
	lng := place.Geometry.Location.Lng
	if lat == 0 && lng == 0 {
		return models.POI{}, false
	}

	var id string
	if place.PlaceID != "" {
		id = uuid.NewSHA1(placesNamespace, []byte(place.PlaceID)).String()
	}
	var imageURL string
	if len(place.Photos) > 0 && place.Photos[0].PhotoReference != "" {
		imageURL = fmt.Sprintf("%s/photo?maxwidth=400&photoreference=%s",
			a.baseURL, url.QueryEscape(place.Photos[0].PhotoReference))
	}
	var review string
	if len(place.Reviews) > 0 {
		review = place.Reviews[0].Text
	}
	description := place.Vicinity
	if description == "" {
		description = "A point of interest near your location"
	}

	poi, err := models.NewPOI(models.POIParams{
		ID:            id,
		Name:          place.Name,
		Category:      req.Category,
		Latitude:      lat,
		Longitude:     lng,
		Rating:        place.Rating,
		DistanceKm:    clampDistance(geo.DistanceKm(req.Latitude, req.Longitude, lat, lng)),
		Description:   description,
		ImageURL:      imageURL,
		ReviewSummary: review,
		Address:       place.Vicinity,
	})
	if err != nil {
		log.Printf("Skipping place %q: %v", place.Name, err)
		return models.POI{}, false
	}
	return poi, true
}

// PlacesType maps a category onto the provider's place type vocabulary.
func PlacesType(category string) string {
	switch models.NormalizeCategory(category) {
	case "restaurant", "food":
		return "restaurant"
	case "gas_station":
		return "gas_station"
	case "lodging", "hotel":
		return "lodging"
	case "attraction", "tourist_attraction":
		return "tourist_attraction"
	case "park":
		return "park"
	case "museum":
		return "museum"
	case "shopping":
		return "shopping_mall"
	case "hospital":
		return "hospital"
	case "pharmacy":
		return "pharmacy"
	case "bank":
		return "bank"
	case "atm":
		return "atm"
	case "church":
		return "church"
	case "school":
		return "school"
	default:
		return "point_of_interest"
	}
}
