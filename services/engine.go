package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"roadtrip-server/models"
	"roadtrip-server/utils/errors"
	"roadtrip-server/utils/geo"
)

const (
	// AutomotiveSafetyCap bounds every result shown to a driver.
	AutomotiveSafetyCap = 10
	DefaultMaxResults   = 8

	HighwaySpeedMps = 25.0
	CitySpeedMps    = 10.0

	LostLakeLatitude  = 45.4979
	LostLakeLongitude = -121.8209
)

var fallbackNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("roadtrip-server/fallback"))

type EngineConfig struct {
	LocalBudget          time.Duration
	RemoteBudget         time.Duration
	CacheTTL             time.Duration
	SamePlaceMeters      float64
	LocalFirstMinResults int
	Debounce             DebounceConfig
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LocalBudget:          DefaultLocalBudget,
		RemoteBudget:         DefaultRemoteBudget,
		CacheTTL:             time.Minute,
		SamePlaceMeters:      models.DefaultSamePlaceMeters,
		LocalFirstMinResults: 1,
		Debounce:             DefaultDebounceConfig(),
	}
}

// Engine runs discovery cycles for one trip session. It owns the session
// discovery set; nothing else mutates it. At most one cycle runs at a time.
//
// Every session start or end bumps gen and cancels the cycle in flight, so a
// cycle only commits into the session it started in. sessionMu serializes
// session resets against a cycle's commit and cache write.
type Engine struct {
	local     Adapter
	remote    Adapter
	filter    *ExclusionFilter
	cache     DiscoveryCache
	debouncer *Debouncer
	cfg       EngineConfig
	now       func() time.Time

	busy      atomic.Bool
	sessionMu sync.Mutex

	mu          sync.Mutex
	active      bool
	gen         uint64
	cancelCycle context.CancelFunc
	state       models.CycleState
	seen        map[string][]models.GeoPoint
	seenCount   int
	disliked    map[string][]models.GeoPoint
	lastTrigger *models.Trigger
	lastSpeed   float64
}

// NewEngine wires the adapters and stores. A nil adapter behaves as a
// provider that is always unavailable; a nil filter excludes nothing and a
// nil cache selects an in-memory one.
func NewEngine(local, remote Adapter, filter *ExclusionFilter, cache DiscoveryCache, cfg EngineConfig) *Engine {
	if local == nil {
		local = unavailableAdapter{name: "local"}
	}
	if remote == nil {
		remote = unavailableAdapter{name: "remote"}
	}
	if filter == nil {
		filter = NewExclusionFilter(nil, nil)
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if cfg.SamePlaceMeters <= 0 {
		cfg.SamePlaceMeters = models.DefaultSamePlaceMeters
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &Engine{
		local:     local,
		remote:    remote,
		filter:    filter,
		cache:     cache,
		debouncer: NewDebouncer(cfg.Debounce),
		cfg:       cfg,
		now:       time.Now,
		state:     models.StateIdle,
		seen:      make(map[string][]models.GeoPoint),
		disliked:  make(map[string][]models.GeoPoint),
	}
}

// StartSession begins a trip with an empty discovery set and cache. Starting
// an already active session resets it and abandons any cycle in flight.
func (e *Engine) StartSession(ctx context.Context) error {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()

	e.mu.Lock()
	e.resetLocked()
	e.mu.Unlock()
	if err := e.cache.Clear(ctx); err != nil {
		return errors.WithCause(errors.ErrInternal, err)
	}
	e.mu.Lock()
	e.active = true
	e.mu.Unlock()
	log.Println("Discovery session started")
	return nil
}

// EndSession forgets everything surfaced or disliked during the trip and
// abandons any cycle in flight.
func (e *Engine) EndSession(ctx context.Context) error {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()

	e.mu.Lock()
	e.active = false
	e.resetLocked()
	e.mu.Unlock()
	if err := e.cache.Clear(ctx); err != nil {
		log.Printf("Failed to clear discovery cache on session end: %v", err)
	}
	log.Println("Discovery session ended")
	return nil
}

func (e *Engine) resetLocked() {
	e.gen++
	if e.cancelCycle != nil {
		e.cancelCycle()
		e.cancelCycle = nil
	}
	e.seen = make(map[string][]models.GeoPoint)
	e.seenCount = 0
	e.disliked = make(map[string][]models.GeoPoint)
	e.lastTrigger = nil
	e.lastSpeed = 0
	e.state = models.StateIdle
}

func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) State() models.CycleState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SessionSize counts the places surfaced so far this session.
func (e *Engine) SessionSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seenCount
}

// Dislike keeps poi, and any equally named place within the same-place
// threshold, out of every later result this session. The cooldown is lifted
// so the next location sample searches again.
func (e *Engine) Dislike(poi models.POI) error {
	if strings.TrimSpace(poi.Name) == "" {
		return errors.Validation("name", "must not be empty")
	}
	if len(poi.Location.Coordinates) < 2 || !geo.ValidCoordinates(poi.Location.Lat(), poi.Location.Lon()) {
		return errors.Validation("location", "latitude or longitude out of range")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return errors.ErrNoSession
	}
	if !e.inPlaceSetLocked(e.disliked, poi) {
		key := poi.NameKey()
		e.disliked[key] = append(e.disliked[key], poi.Location)
	}
	e.lastTrigger = nil
	log.Printf("Disliked POI %q for the rest of the session", poi.Name)
	return nil
}

// DislikedCount counts the distinct places disliked this session.
func (e *Engine) DislikedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, locs := range e.disliked {
		n += len(locs)
	}
	return n
}

func (e *Engine) LastTrigger() *models.Trigger {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastTrigger == nil {
		return nil
	}
	t := *e.lastTrigger
	return &t
}

// DiscoverPOIs runs one cycle for req. Adapter failures never surface here;
// the error is non-nil only for invalid input, a missing session, a cycle
// already in flight or cancellation of ctx.
func (e *Engine) DiscoverPOIs(ctx context.Context, req models.DiscoveryRequest) (models.DiscoveryResult, error) {
	return e.discover(ctx, req, 1, true)
}

// DiscoverMore runs one cycle at twice the speed-derived radius. It bypasses
// the cache in both directions so that the wider answer is never served for
// a normal request.
func (e *Engine) DiscoverMore(ctx context.Context, req models.DiscoveryRequest) (models.DiscoveryResult, error) {
	return e.discover(ctx, req, 2, false)
}

// DiscoverLostLake is the fixed-location diagnostic cycle.
func (e *Engine) DiscoverLostLake(ctx context.Context) (models.DiscoveryResult, error) {
	return e.DiscoverPOIs(ctx, models.DiscoveryRequest{
		Latitude:   LostLakeLatitude,
		Longitude:  LostLakeLongitude,
		Category:   "attraction",
		Strategy:   models.StrategyHybrid,
		MaxResults: AutomotiveSafetyCap,
	})
}

func (e *Engine) discover(ctx context.Context, req models.DiscoveryRequest, radiusFactor float64, useCache bool) (models.DiscoveryResult, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return models.DiscoveryResult{}, err
	}
	if !e.Active() {
		return models.DiscoveryResult{}, errors.ErrNoSession
	}
	if !e.busy.CompareAndSwap(false, true) {
		return models.DiscoveryResult{}, errors.ErrCycleInFlight
	}
	defer e.busy.Store(false)

	cctx, gen, done, err := e.beginCycle(ctx)
	if err != nil {
		return models.DiscoveryResult{}, err
	}
	defer done()
	return e.runCycle(cctx, gen, req, radiusFactor, useCache)
}

// beginCycle ties a cycle to the current session. The returned context is
// cancelled when the session ends or restarts.
func (e *Engine) beginCycle(ctx context.Context) (context.Context, uint64, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return nil, 0, nil, errors.ErrNoSession
	}
	cctx, cancel := context.WithCancel(ctx)
	e.cancelCycle = cancel
	gen := e.gen
	done := func() {
		e.mu.Lock()
		if e.gen == gen {
			e.cancelCycle = nil
		}
		e.mu.Unlock()
		cancel()
	}
	return cctx, gen, done, nil
}

// OnLocation feeds one sample to the debouncer. When it fires, a HYBRID
// cycle runs for category and its result is returned with triggered set.
// Samples arriving while a cycle is in flight are dropped.
func (e *Engine) OnLocation(ctx context.Context, sample models.LocationSample, category string) (*models.DiscoveryResult, bool, error) {
	req, err := normalizeRequest(models.DiscoveryRequest{
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Category:  category,
		Strategy:  models.StrategyHybrid,
	})
	if err != nil {
		return nil, false, err
	}
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return nil, false, errors.ErrNoSession
	}
	e.lastSpeed = sample.SpeedMps
	last := e.lastTrigger
	e.mu.Unlock()

	if !e.busy.CompareAndSwap(false, true) {
		log.Println("Location update dropped: discovery cycle in flight")
		return nil, false, nil
	}
	defer e.busy.Store(false)

	now := e.now()
	if !e.debouncer.ShouldTrigger(now, sample, last) {
		return nil, false, nil
	}

	cctx, gen, done, err := e.beginCycle(ctx)
	if err != nil {
		return nil, false, err
	}
	defer done()

	e.mu.Lock()
	if e.gen == gen {
		e.lastTrigger = &models.Trigger{At: now, Latitude: sample.Latitude, Longitude: sample.Longitude}
	}
	e.mu.Unlock()

	result, err := e.runCycle(cctx, gen, req, 1, true)
	if err != nil {
		return nil, true, err
	}
	return &result, true, nil
}

// Consume processes samples one at a time until the channel closes or ctx is
// cancelled. onResult is called for every triggered cycle.
func (e *Engine) Consume(ctx context.Context, samples <-chan models.LocationSample, category string, onResult func(models.DiscoveryResult)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-samples:
			if !ok {
				return nil
			}
			result, triggered, err := e.OnLocation(ctx, sample, category)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("Location update rejected: %v", err)
				continue
			}
			if triggered && onResult != nil {
				onResult(*result)
			}
		}
	}
}

// RadiusForSpeed picks the search radius in km for a vehicle speed in m/s.
func RadiusForSpeed(speedMps float64) float64 {
	switch {
	case speedMps >= HighwaySpeedMps:
		return 10
	case speedMps >= CitySpeedMps:
		return 5
	default:
		return 2
	}
}

func normalizeRequest(req models.DiscoveryRequest) (models.DiscoveryRequest, error) {
	if !geo.ValidCoordinates(req.Latitude, req.Longitude) {
		return req, errors.Validation("location", "latitude or longitude out of range")
	}
	req.Category = models.NormalizeCategory(req.Category)
	if !models.ValidCategory(req.Category) {
		return req, errors.Validation("category", "must be a lower-case identifier")
	}
	if req.Strategy == 0 {
		req.Strategy = models.StrategyHybrid
	}
	if !req.Strategy.Requestable() {
		return req, errors.Validation("strategy", fmt.Sprintf("%s cannot be requested", req.Strategy))
	}
	if req.MaxResults <= 0 {
		req.MaxResults = DefaultMaxResults
	}
	if req.MaxResults > AutomotiveSafetyCap {
		req.MaxResults = AutomotiveSafetyCap
	}
	return req, nil
}

type adapterOutcome struct {
	pois    []models.POI
	err     error
	latency time.Duration
}

func (e *Engine) runCycle(ctx context.Context, gen uint64, req models.DiscoveryRequest, radiusFactor float64, useCache bool) (models.DiscoveryResult, error) {
	start := time.Now()
	e.setState(gen, models.StateDeciding)

	key := NewCacheKey(req.Latitude, req.Longitude, req.Category, req.Strategy)
	if useCache {
		cached, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			log.Printf("Discovery cache read failed: %v", err)
		} else if ok {
			return e.serveCached(ctx, gen, key, cached, req.MaxResults, start)
		}
	}

	e.mu.Lock()
	speed := e.lastSpeed
	e.mu.Unlock()
	areq := AdapterRequest{
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Category:   req.Category,
		RadiusKm:   RadiusForSpeed(speed) * radiusFactor,
		MaxResults: 2 * AutomotiveSafetyCap,
	}

	result := models.DiscoveryResult{
		RequestedStrategy: req.Strategy,
		StrategyUsed:      req.Strategy,
		RadiusKm:          areq.RadiusKm,
	}
	var candidates [][]models.POI

	switch req.Strategy {
	case models.StrategyLocalOnly:
		e.setState(gen, models.StateRunningLocal)
		local := e.query(ctx, e.local, areq, e.cfg.LocalBudget)
		result.LocalLatency = local.latency
		candidates = append(candidates, local.pois)

	case models.StrategyRemoteOnly:
		e.setState(gen, models.StateRunningRemote)
		remote := e.query(ctx, e.remote, areq, e.cfg.RemoteBudget)
		result.RemoteLatency = remote.latency
		candidates = append(candidates, remote.pois)

	case models.StrategyLocalFirst:
		e.setState(gen, models.StateRunningLocal)
		local := e.query(ctx, e.local, areq, e.cfg.LocalBudget)
		result.LocalLatency = local.latency
		if ctx.Err() != nil {
			return e.abandon(ctx, gen)
		}
		candidates = append(candidates, local.pois)
		if len(e.filter.Filter(local.pois)) < e.cfg.LocalFirstMinResults || local.err != nil {
			e.setState(gen, models.StateRunningRemote)
			remote := e.query(ctx, e.remote, areq, e.cfg.RemoteBudget)
			result.RemoteLatency = remote.latency
			candidates = append(candidates, remote.pois)
			result.StrategyUsed = models.StrategyRemoteOnly
			result.FallbackUsed = true
		}

	case models.StrategyHybrid:
		e.setState(gen, models.StateRunningBoth)
		var local, remote adapterOutcome
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			local = e.query(gctx, e.local, areq, e.cfg.LocalBudget)
			return nil
		})
		g.Go(func() error {
			remote = e.query(gctx, e.remote, areq, e.cfg.RemoteBudget)
			return nil
		})
		_ = g.Wait()
		result.LocalLatency = local.latency
		result.RemoteLatency = remote.latency
		if ctx.Err() != nil {
			return e.abandon(ctx, gen)
		}
		if len(local.pois) == 0 && len(remote.pois) == 0 {
			return e.softFail(gen, req, result, start), nil
		}
		candidates = append(candidates, local.pois, remote.pois)
	}

	if ctx.Err() != nil {
		return e.abandon(ctx, gen)
	}

	e.setState(gen, models.StateMerging)
	merged := e.merge(candidates, AutomotiveSafetyCap)
	result.POIs = merged[:min(len(merged), req.MaxResults)]
	result.Outcome = models.StateCompleted
	result.ResponseTime = time.Since(start)

	if ctx.Err() != nil {
		return e.abandon(ctx, gen)
	}

	e.sessionMu.Lock()
	if !e.commit(gen, result.POIs) {
		e.sessionMu.Unlock()
		return e.abandon(ctx, gen)
	}
	if useCache {
		// The full merge is stored so a later, larger request can be served.
		stored := result
		stored.POIs = merged
		if err := e.cache.Put(ctx, key, stored, e.cfg.CacheTTL); err != nil {
			log.Printf("Discovery cache write failed: %v", err)
		}
	}
	e.sessionMu.Unlock()

	e.setState(gen, models.StateCompleted)
	e.logCycle(result)
	return result, nil
}

// serveCached answers from a stored result. Disliked places are dropped and
// the revenue flag is kept only for places new to the session, which are
// then recorded as surfaced.
func (e *Engine) serveCached(ctx context.Context, gen uint64, key CacheKey, cached models.DiscoveryResult, limit int, start time.Time) (models.DiscoveryResult, error) {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return e.abandon(ctx, gen)
	}
	pois := make([]models.POI, 0, limit)
	for _, poi := range cached.POIs {
		if len(pois) >= limit {
			break
		}
		if e.inPlaceSetLocked(e.disliked, poi) {
			continue
		}
		pois = append(pois, poi.WithRevenueFlag(!e.inPlaceSetLocked(e.seen, poi)))
	}
	e.recordLocked(pois)
	e.state = cached.Outcome
	e.mu.Unlock()

	cached.POIs = pois
	cached.CacheHit = true
	cached.ResponseTime = time.Since(start)
	log.Printf("Discovery cache hit for %s", key)
	return cached, nil
}

// query runs one adapter and folds every failure into an empty outcome.
func (e *Engine) query(ctx context.Context, adapter Adapter, req AdapterRequest, budget time.Duration) adapterOutcome {
	req.Budget = budget
	start := time.Now()
	pois, err := adapter.Query(ctx, req)
	out := adapterOutcome{pois: pois, err: err, latency: time.Since(start)}
	if err != nil {
		out.pois = nil
		if ctx.Err() == nil {
			log.Printf("Adapter %s soft failure after %v: %v", adapter.Name(), out.latency, err)
		}
	}
	return out
}

// merge concatenates candidate lists in priority order, then filters,
// deduplicates (first occurrence wins), drops places already surfaced or
// disliked this session and truncates to limit.
func (e *Engine) merge(lists [][]models.POI, limit int) []models.POI {
	var combined []models.POI
	for _, list := range lists {
		combined = append(combined, list...)
	}
	filtered := e.filter.Filter(combined)

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.POI, 0, limit)
	for _, poi := range filtered {
		if len(out) >= limit {
			break
		}
		if containsPlace(out, poi, e.cfg.SamePlaceMeters) ||
			e.inPlaceSetLocked(e.seen, poi) ||
			e.inPlaceSetLocked(e.disliked, poi) {
			continue
		}
		out = append(out, poi.WithRevenueFlag(true))
	}
	return out
}

func containsPlace(list []models.POI, poi models.POI, meters float64) bool {
	for _, p := range list {
		if p.SamePlace(poi, meters) {
			return true
		}
	}
	return false
}

func (e *Engine) inPlaceSetLocked(set map[string][]models.GeoPoint, poi models.POI) bool {
	for _, loc := range set[poi.NameKey()] {
		d := geo.DistanceMeters(loc.Lat(), loc.Lon(), poi.Location.Lat(), poi.Location.Lon())
		if d <= e.cfg.SamePlaceMeters {
			return true
		}
	}
	return false
}

// commit records pois as surfaced. It reports false, recording nothing, when
// the session the cycle started in is gone.
func (e *Engine) commit(gen uint64, pois []models.POI) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen || !e.active {
		return false
	}
	e.recordLocked(pois)
	return true
}

func (e *Engine) recordLocked(pois []models.POI) {
	for _, poi := range pois {
		if e.inPlaceSetLocked(e.seen, poi) {
			continue
		}
		key := poi.NameKey()
		e.seen[key] = append(e.seen[key], poi.Location)
		e.seenCount++
	}
}

// softFail returns the fallback set. It is neither cached nor recorded in
// the session set.
func (e *Engine) softFail(gen uint64, req models.DiscoveryRequest, result models.DiscoveryResult, start time.Time) models.DiscoveryResult {
	result.POIs = FallbackPOIs(req)
	result.StrategyUsed = models.StrategyFallback
	result.FallbackUsed = true
	result.Outcome = models.StateSoftFailed
	result.ResponseTime = time.Since(start)
	e.setState(gen, models.StateSoftFailed)
	log.Printf("Discovery soft-failed at (%.4f, %.4f): both providers returned nothing", req.Latitude, req.Longitude)
	return result
}

// abandon drops the cycle. A cycle outlived by its session reports
// NO_SESSION; otherwise the caller's cancellation is returned.
func (e *Engine) abandon(ctx context.Context, gen uint64) (models.DiscoveryResult, error) {
	e.mu.Lock()
	current := e.gen == gen
	if current {
		e.state = models.StateIdle
	}
	e.mu.Unlock()

	err := ctx.Err()
	if !current {
		err = errors.WithCause(errors.ErrNoSession, stderrors.New("session ended during discovery"))
	}
	log.Printf("Discovery cycle abandoned: %v", err)
	return models.DiscoveryResult{}, err
}

// setState records s unless the cycle belongs to an earlier session.
func (e *Engine) setState(gen uint64, s models.CycleState) {
	e.mu.Lock()
	if e.gen == gen {
		e.state = s
	}
	e.mu.Unlock()
}

func (e *Engine) logCycle(result models.DiscoveryResult) {
	log.Printf("Discovery %s -> %s: %d POIs in %v (fallback: %v)",
		result.RequestedStrategy, result.StrategyUsed, len(result.POIs), result.ResponseTime, result.FallbackUsed)
	if e.cfg.RemoteBudget > 0 && result.ResponseTime > e.cfg.RemoteBudget {
		log.Printf("Slow discovery: %v (target: %v)", result.ResponseTime, e.cfg.RemoteBudget)
	}
}

// FallbackPOIs is the small fixed set returned when every provider failed.
// Ids and positions depend only on the request, so repeated failures at one
// spot return identical POIs.
func FallbackPOIs(req models.DiscoveryRequest) []models.POI {
	bucket := geo.Bucket(req.Latitude, req.Longitude, BucketDegrees)
	specs := []struct {
		name    string
		bearing float64
		desc    string
	}{
		{"Nearest Rest Area", 0, "Take a break before continuing your drive"},
		{"Local Visitor Information", 90, "Ask locals for nearby recommendations"},
	}

	pois := make([]models.POI, 0, len(specs))
	for _, s := range specs {
		lat, lon := geo.Destination(req.Latitude, req.Longitude, 0.1, s.bearing)
		poi, err := models.NewPOI(models.POIParams{
			ID:          uuid.NewSHA1(fallbackNamespace, []byte(bucket+"|"+req.Category+"|"+s.name)).String(),
			Name:        s.name,
			Category:    req.Category,
			Latitude:    lat,
			Longitude:   lon,
			Rating:      3.0,
			DistanceKm:  0.1,
			Description: s.desc,
			Tags:        []string{"fallback"},
		})
		if err != nil {
			continue
		}
		pois = append(pois, poi)
	}
	if len(pois) > req.MaxResults && req.MaxResults > 0 {
		pois = pois[:req.MaxResults]
	}
	return pois
}

type unavailableAdapter struct {
	name string
}

func (a unavailableAdapter) Name() string { return a.name }

func (a unavailableAdapter) Query(context.Context, AdapterRequest) ([]models.POI, error) {
	return nil, errors.WithCause(errors.ErrProviderUnavailable, fmt.Errorf("%s provider not configured", a.name))
}
