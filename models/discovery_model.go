package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Strategy selects which backends a discovery cycle consults.
type Strategy int

const (
	StrategyLocalOnly Strategy = iota + 1
	StrategyRemoteOnly
	StrategyLocalFirst
	StrategyHybrid
	// StrategyFallback is never requested; it marks a soft-failed cycle that
	// returned the deterministic fallback set.
	StrategyFallback
)

var strategyNames = map[Strategy]string{
	StrategyLocalOnly:  "LOCAL_ONLY",
	StrategyRemoteOnly: "REMOTE_ONLY",
	StrategyLocalFirst: "LOCAL_FIRST",
	StrategyHybrid:     "HYBRID",
	StrategyFallback:   "FALLBACK",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Requestable reports whether s may be asked for by a caller.
func (s Strategy) Requestable() bool {
	switch s {
	case StrategyLocalOnly, StrategyRemoteOnly, StrategyLocalFirst, StrategyHybrid:
		return true
	}
	return false
}

// ParseStrategy accepts the canonical names plus the API_FIRST, LLM_FIRST and
// LLM_ONLY aliases. Empty input selects HYBRID.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "HYBRID":
		return StrategyHybrid, nil
	case "LOCAL_ONLY", "LLM_ONLY":
		return StrategyLocalOnly, nil
	case "REMOTE_ONLY", "API_FIRST", "API_ONLY":
		return StrategyRemoteOnly, nil
	case "LOCAL_FIRST", "LLM_FIRST":
		return StrategyLocalFirst, nil
	case "FALLBACK":
		return StrategyFallback, nil
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

func (s Strategy) MarshalText() ([]byte, error) {
	if _, ok := strategyNames[s]; !ok {
		return nil, fmt.Errorf("unknown strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CycleState is a step of the discovery state machine.
type CycleState string

const (
	StateIdle          CycleState = "IDLE"
	StateDeciding      CycleState = "DECIDING"
	StateRunningLocal  CycleState = "RUNNING_LOCAL"
	StateRunningRemote CycleState = "RUNNING_REMOTE"
	StateRunningBoth   CycleState = "RUNNING_BOTH"
	StateMerging       CycleState = "MERGING"
	StateCompleted     CycleState = "COMPLETED"
	StateSoftFailed    CycleState = "SOFT_FAILED"
)

type DiscoveryRequest struct {
	Latitude   float64  `json:"lat"`
	Longitude  float64  `json:"lon"`
	Category   string   `json:"category"`
	Strategy   Strategy `json:"strategy"`
	MaxResults int      `json:"max_results"`
}

// DiscoveryResult is what a cycle hands back. POIs keep the relevance order
// of the strategy that produced them.
type DiscoveryResult struct {
	POIs              []POI         `json:"pois"`
	StrategyUsed      Strategy      `json:"strategy_used"`
	RequestedStrategy Strategy      `json:"requested_strategy"`
	ResponseTime      time.Duration `json:"-"`
	FallbackUsed      bool          `json:"fallback_used"`
	Outcome           CycleState    `json:"outcome"`
	CacheHit          bool          `json:"cache_hit"`
	RadiusKm          float64       `json:"radius_km"`
	LocalLatency      time.Duration `json:"-"`
	RemoteLatency     time.Duration `json:"-"`
}

func (r DiscoveryResult) MarshalJSON() ([]byte, error) {
	type plain DiscoveryResult
	return json.Marshal(struct {
		plain
		ResponseTimeMs  int64 `json:"response_time_ms"`
		LocalLatencyMs  int64 `json:"local_latency_ms,omitempty"`
		RemoteLatencyMs int64 `json:"remote_latency_ms,omitempty"`
	}{
		plain:           plain(r),
		ResponseTimeMs:  r.ResponseTime.Milliseconds(),
		LocalLatencyMs:  r.LocalLatency.Milliseconds(),
		RemoteLatencyMs: r.RemoteLatency.Milliseconds(),
	})
}

func (r *DiscoveryResult) UnmarshalJSON(data []byte) error {
	type plain DiscoveryResult
	aux := struct {
		*plain
		ResponseTimeMs  int64 `json:"response_time_ms"`
		LocalLatencyMs  int64 `json:"local_latency_ms"`
		RemoteLatencyMs int64 `json:"remote_latency_ms"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ResponseTime = time.Duration(aux.ResponseTimeMs) * time.Millisecond
	r.LocalLatency = time.Duration(aux.LocalLatencyMs) * time.Millisecond
	r.RemoteLatency = time.Duration(aux.RemoteLatencyMs) * time.Millisecond
	return nil
}

// Clone copies the POI slice so callers cannot alias a cached result.
func (r DiscoveryResult) Clone() DiscoveryResult {
	out := r
	out.POIs = make([]POI, len(r.POIs))
	copy(out.POIs, r.POIs)
	return out
}
