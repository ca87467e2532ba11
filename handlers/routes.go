package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"roadtrip-server/middleware"
	"roadtrip-server/services"
)

// NewRouter mounts every endpoint. All routes except /health require a
// bearer token carrying a userID claim.
func NewRouter(sessions *services.SessionRegistry, jwtSecret string, allowedOrigins []string) *mux.Router {
	discoveryHandler := NewDiscoveryHandler(sessions)
	sessionHandler := NewSessionHandler(discoveryHandler)
	locationHandler := NewLocationHandler(discoveryHandler)

	r := mux.NewRouter()
	r.Use(middleware.ErrorMiddleware())
	r.Use(middleware.CORSMiddleware(allowedOrigins))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	// Session routes
	sessionRouter := r.PathPrefix("/session").Subrouter()
	sessionRouter.Use(middleware.JWTMiddleware(jwtSecret))
	sessionRouter.HandleFunc("", sessionHandler.Get).Methods("GET", "OPTIONS")
	sessionRouter.HandleFunc("/start", sessionHandler.Start).Methods("POST", "OPTIONS")
	sessionRouter.HandleFunc("/end", sessionHandler.End).Methods("POST", "OPTIONS")

	// POI routes
	poiRouter := r.PathPrefix("/pois").Subrouter()
	poiRouter.Use(middleware.JWTMiddleware(jwtSecret))
	poiRouter.HandleFunc("/discover", discoveryHandler.Discover).Methods("GET", "OPTIONS")
	poiRouter.HandleFunc("/discover-more", discoveryHandler.DiscoverMore).Methods("GET", "OPTIONS")
	poiRouter.HandleFunc("/diagnostic", discoveryHandler.Diagnostic).Methods("GET", "OPTIONS")
	poiRouter.HandleFunc("/dislike", discoveryHandler.Dislike).Methods("POST", "OPTIONS")

	// Location routes
	locationRouter := r.PathPrefix("/location").Subrouter()
	locationRouter.Use(middleware.JWTMiddleware(jwtSecret))
	locationRouter.HandleFunc("/ping", locationHandler.PingLocation).Methods("POST", "OPTIONS")

	return r
}
