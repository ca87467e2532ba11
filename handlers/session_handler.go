package handlers

import (
	"net/http"

	"roadtrip-server/models"
	"roadtrip-server/services"
)

type SessionHandler struct {
	*DiscoveryHandler
}

func NewSessionHandler(d *DiscoveryHandler) *SessionHandler {
	return &SessionHandler{DiscoveryHandler: d}
}

type SessionResponse struct {
	Active      bool              `json:"active"`
	State       models.CycleState `json:"state"`
	Surfaced    int               `json:"surfaced"`
	LastTrigger *models.Trigger   `json:"last_trigger,omitempty"`
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	if err := engine.StartSession(r.Context()); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(engine))
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.End(r.Context(), userID); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{State: models.StateIdle})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(engine))
}

func sessionResponse(engine *services.Engine) SessionResponse {
	return SessionResponse{
		Active:      engine.Active(),
		State:       engine.State(),
		Surfaced:    engine.SessionSize(),
		LastTrigger: engine.LastTrigger(),
	}
}
