package httpserver

import (
	"net/http"

	"evregistry/backend/services/station-registry/internal/http/handlers"
	"evregistry/backend/services/station-registry/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	AuthHandlers     *handlers.AuthHandlers
	StationsHandlers *handlers.StationsHandlers
	Events           http.HandlerFunc
	HealthHandler    http.HandlerFunc
	TestHandler      http.HandlerFunc
	Metrics          http.Handler
}

// NewRouter wires HTTP routes. guard wraps every route that needs a session.
func NewRouter(deps RouterDeps, guard func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, guard)
	}

	mux.Handle("GET /health", deps.HealthHandler)
	mux.Handle("GET /api/test", deps.TestHandler)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.HandleFunc("POST /api/auth/signup", deps.AuthHandlers.Signup)
	mux.HandleFunc("POST /api/auth/login", deps.AuthHandlers.Login)
	mux.Handle("GET /api/auth/me", authenticated(deps.AuthHandlers.Me))

	stations := deps.StationsHandlers
	mux.Handle("GET /api/charging-stations", authenticated(stations.List))
	mux.Handle("POST /api/charging-stations", authenticated(stations.Create))
	mux.Handle("GET /api/charging-stations/{id}", authenticated(stations.Get))
	mux.Handle("PUT /api/charging-stations/{id}", authenticated(stations.Update))
	mux.Handle("DELETE /api/charging-stations/{id}", authenticated(stations.Delete))
	if deps.Events != nil {
		mux.Handle("GET /api/charging-stations/events", authenticated(deps.Events))
	}

	return mux
}
