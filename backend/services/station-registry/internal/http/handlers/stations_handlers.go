package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"evregistry/backend/services/station-registry/internal/http/middleware"
	"evregistry/backend/services/station-registry/internal/models"
	"evregistry/backend/services/station-registry/internal/service"
)

type stationRequest struct {
	Name          *string         `json:"name"`
	Location      json.RawMessage `json:"location"`
	PowerOutput   *float64        `json:"powerOutput"`
	Slots         *int            `json:"slots"`
	ConnectorType *string         `json:"connectorType"`
	Status        *string         `json:"status"`
}

func (req stationRequest) input() service.StationInput {
	return service.StationInput{
		Name:          req.Name,
		Location:      req.Location,
		PowerOutput:   req.PowerOutput,
		Slots:         req.Slots,
		ConnectorType: req.ConnectorType,
		Status:        req.Status,
	}
}

// StationsHandlers serves /api/charging-stations. Every route sits behind the session guard.
type StationsHandlers struct {
	stations *service.StationService
	logger   *zap.Logger
}

// NewStationsHandlers builds StationsHandlers.
func NewStationsHandlers(stations *service.StationService, logger *zap.Logger) *StationsHandlers {
	return &StationsHandlers{stations: stations, logger: logger}
}

// List handles GET /api/charging-stations?status=&connectorType=.
func (h *StationsHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	views, err := h.stations.List(r.Context(), models.StationFilter{
		Status:        q.Get("status"),
		ConnectorType: q.Get("connectorType"),
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Get handles GET /api/charging-stations/{id}.
func (h *StationsHandlers) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.stations.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Create handles POST /api/charging-stations.
func (h *StationsHandlers) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "No token, authorization denied")
		return
	}
	var req stationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body")
		return
	}

	view, err := h.stations.Create(r.Context(), p, req.input())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Update handles PUT /api/charging-stations/{id}.
func (h *StationsHandlers) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "No token, authorization denied")
		return
	}
	var req stationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body")
		return
	}

	view, err := h.stations.Update(r.Context(), p, r.PathValue("id"), req.input())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Delete handles DELETE /api/charging-stations/{id}.
func (h *StationsHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "No token, authorization denied")
		return
	}
	if err := h.stations.Delete(r.Context(), p, r.PathValue("id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Charging station deleted"})
}
