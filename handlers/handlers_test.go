package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip-server/middleware"
	"roadtrip-server/models"
	"roadtrip-server/services"
)

const testSecret = "test-secret"

type fixedAdapter struct {
	pois []models.POI
}

func (a fixedAdapter) Name() string { return "fixed" }

func (a fixedAdapter) Query(ctx context.Context, req services.AdapterRequest) ([]models.POI, error) {
	return a.pois, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	lake, err := models.NewPOI(models.POIParams{
		Name: "Lost Lake", Category: "attraction", Latitude: 45.4979, Longitude: -121.8209,
		Rating: 4.8, DistanceKm: 0.2, Description: "Glacial lake",
	})
	require.NoError(t, err)
	factory := func(string) *services.Engine {
		return services.NewEngine(fixedAdapter{pois: []models.POI{lake}}, nil, nil, nil, services.DefaultEngineConfig())
	}
	srv := httptest.NewServer(NewRouter(services.NewSessionRegistry(factory), testSecret, []string{"http://localhost:3000"}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, driver string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if driver != "" {
		token, err := middleware.IssueToken(testSecret, driver, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRoutes_RequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/session", "/pois/discover?lat=1&lon=1", "/pois/diagnostic"} {
		resp := do(t, srv, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/session", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/health", "", nil).StatusCode)
}

func TestDiscover_NeedsSession(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/pois/discover?lat=45.4979&lon=-121.8209", "driver-1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "NO_SESSION", body["code"])
}

func TestDiscover_Flow(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/session/start", "driver-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[SessionResponse](t, resp)
	assert.True(t, session.Active)

	resp = do(t, srv, http.MethodGet, "/pois/discover?lat=45.4979&lon=-121.8209&category=attraction&strategy=LOCAL_ONLY&max=20", "driver-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[models.DiscoveryResult](t, resp)
	require.Len(t, result.POIs, 1)
	assert.Equal(t, "Lost Lake", result.POIs[0].Name)
	assert.Equal(t, models.StrategyLocalOnly, result.StrategyUsed)

	resp = do(t, srv, http.MethodGet, "/session", "driver-1", nil)
	session = decode[SessionResponse](t, resp)
	assert.Equal(t, 1, session.Surfaced)
	assert.Equal(t, models.StateCompleted, session.State)

	// Another driver has its own session.
	resp = do(t, srv, http.MethodGet, "/session", "driver-2", nil)
	assert.False(t, decode[SessionResponse](t, resp).Active)

	resp = do(t, srv, http.MethodPost, "/session/end", "driver-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, srv, http.MethodGet, "/session", "driver-1", nil)
	assert.False(t, decode[SessionResponse](t, resp).Active)
}

func TestDiscover_BadInput(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/session/start", "driver-1", nil)

	for _, q := range []string{
		"lat=abc&lon=1",
		"lat=1",
		"lat=95&lon=1",
		"lat=1&lon=1&strategy=SOMETIMES",
		"lat=1&lon=1&max=lots",
	} {
		resp := do(t, srv, http.MethodGet, "/pois/discover?"+q, "driver-1", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		assert.Equal(t, "VALIDATION_ERROR", decode[map[string]any](t, resp)["code"], q)
	}
}

func TestDiscoverMoreAndDiagnostic(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/session/start", "driver-1", nil)

	resp := do(t, srv, http.MethodGet, "/pois/diagnostic", "driver-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	diag := decode[models.DiscoveryResult](t, resp)
	assert.Equal(t, models.StrategyHybrid, diag.RequestedStrategy)
	assert.Equal(t, 2.0, diag.RadiusKm)

	resp = do(t, srv, http.MethodGet, "/pois/discover-more?lat=45.4979&lon=-121.8209", "driver-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	more := decode[models.DiscoveryResult](t, resp)
	assert.Equal(t, 4.0, more.RadiusKm)
	assert.Empty(t, more.POIs, "Lost Lake was already surfaced")
}

func TestDislike(t *testing.T) {
	srv := newTestServer(t)

	lake := map[string]any{
		"name":     "Lost Lake",
		"location": models.NewGeoPoint(45.4979, -121.8209),
	}
	resp := do(t, srv, http.MethodPost, "/pois/dislike", "driver-1", lake)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no session yet")

	do(t, srv, http.MethodPost, "/session/start", "driver-1", nil)
	resp = do(t, srv, http.MethodPost, "/pois/dislike", "driver-1", lake)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[DislikeResponse](t, resp).Disliked)

	resp = do(t, srv, http.MethodGet, "/pois/discover?lat=45.4979&lon=-121.8209&strategy=LOCAL_ONLY", "driver-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[models.DiscoveryResult](t, resp).POIs, "disliked places are not surfaced")

	resp = do(t, srv, http.MethodPost, "/pois/dislike", "driver-1", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decode[map[string]any](t, resp)["code"])
}

func TestPingLocation(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/session/start", "driver-1", nil)

	resp := do(t, srv, http.MethodPost, "/location/ping", "driver-1", PingRequest{Latitude: 45.4979, Longitude: -121.8209, SpeedMps: 27})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ping := decode[PingResponse](t, resp)
	assert.True(t, ping.Triggered)
	require.NotNil(t, ping.Result)
	assert.Equal(t, 10.0, ping.Result.RadiusKm)

	resp = do(t, srv, http.MethodPost, "/location/ping", "driver-1", PingRequest{Latitude: 45.51, Longitude: -121.8209, SpeedMps: 27})
	ping = decode[PingResponse](t, resp)
	assert.False(t, ping.Triggered, "within cooldown")
	assert.Nil(t, ping.Result)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/location/ping", bytes.NewBufferString("{"))
	token, _ := middleware.IssueToken(testSecret, "driver-1", time.Hour)
	req.Header.Set("Authorization", "Bearer "+token)
	bad, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/pois/discover", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
