package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"roadtrip-server/middleware"
	"roadtrip-server/models"
	"roadtrip-server/services"
	"roadtrip-server/utils/errors"
)

const defaultCategory = "attraction"

type DiscoveryHandler struct {
	sessions *services.SessionRegistry
}

func NewDiscoveryHandler(sessions *services.SessionRegistry) *DiscoveryHandler {
	return &DiscoveryHandler{sessions: sessions}
}

func (h *DiscoveryHandler) Discover(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, (*services.Engine).DiscoverPOIs)
}

func (h *DiscoveryHandler) DiscoverMore(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, (*services.Engine).DiscoverMore)
}

func (h *DiscoveryHandler) Diagnostic(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	result, err := engine.DiscoverLostLake(r.Context())
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type DislikeResponse struct {
	Disliked int `json:"disliked"`
}

// Dislike hides a POI for the rest of the trip. The body is the POI as
// returned by discovery.
func (h *DiscoveryHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	var poi models.POI
	if err := json.NewDecoder(r.Body).Decode(&poi); err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput)
		return
	}
	if err := engine.Dislike(poi); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DislikeResponse{Disliked: engine.DislikedCount()})
}

type discoverFunc func(*services.Engine, context.Context, models.DiscoveryRequest) (models.DiscoveryResult, error)

func (h *DiscoveryHandler) run(w http.ResponseWriter, r *http.Request, discover discoverFunc) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	req, err := parseDiscoveryRequest(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	result, err := discover(engine, r.Context(), req)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *DiscoveryHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
	}
	return userID, ok
}

func (h *DiscoveryHandler) engine(w http.ResponseWriter, r *http.Request) (*services.Engine, bool) {
	userID, ok := h.userID(w, r)
	if !ok {
		return nil, false
	}
	return h.sessions.Engine(userID), true
}

func parseDiscoveryRequest(r *http.Request) (models.DiscoveryRequest, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return models.DiscoveryRequest{}, errors.Validation("lat", "must be a number")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return models.DiscoveryRequest{}, errors.Validation("lon", "must be a number")
	}
	strategy, err := models.ParseStrategy(q.Get("strategy"))
	if err != nil {
		return models.DiscoveryRequest{}, errors.Validation("strategy", err.Error())
	}
	maxResults := 0
	if raw := q.Get("max"); raw != "" {
		maxResults, err = strconv.Atoi(raw)
		if err != nil {
			return models.DiscoveryRequest{}, errors.Validation("max", "must be an integer")
		}
	}
	category := q.Get("category")
	if category == "" {
		category = defaultCategory
	}
	return models.DiscoveryRequest{
		Latitude:   lat,
		Longitude:  lon,
		Category:   category,
		Strategy:   strategy,
		MaxResults: maxResults,
	}, nil
}

// writeEngineError reports engine errors. A cancelled request gets no body
// since the client is gone.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		return
	}
	middleware.WriteError(w, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
