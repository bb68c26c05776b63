package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"evregistry/backend/libs/identity"
	"evregistry/backend/libs/telemetry"
	"evregistry/backend/services/station-registry/internal/events"
	"evregistry/backend/services/station-registry/internal/geo"
	"evregistry/backend/services/station-registry/internal/metrics"
	"evregistry/backend/services/station-registry/internal/models"
	"evregistry/backend/services/station-registry/internal/repository"
)

// StationRepository defines storage contract used by the service.
type StationRepository interface {
	Find(ctx context.Context, filter models.StationFilter) ([]models.Station, error)
	FindByID(ctx context.Context, id string) (*models.Station, error)
	Save(ctx context.Context, station *models.Station) error
	UpdateByID(ctx context.Context, id string, patch models.StationPatch) (*models.Station, error)
	DeleteByID(ctx context.Context, id string) error
}

// StationCache is the optional read-through cache.
type StationCache interface {
	Get(ctx context.Context, id string) (*models.Station, bool, error)
	Set(ctx context.Context, station *models.Station) error
	Invalidate(ctx context.Context, id string) error
}

// StationInput is a create or update request. Nil fields were absent from the payload.
// Location is kept raw so it can arrive in either coordinate form.
type StationInput struct {
	Name          *string
	Location      json.RawMessage
	PowerOutput   *float64
	Slots         *int
	ConnectorType *string
	Status        *string
}

// StationView is the client-facing station shape.
type StationView struct {
	ID            string              `json:"_id"`
	Name          string              `json:"name"`
	Location      geo.External        `json:"location"`
	PowerOutput   float64             `json:"powerOutput"`
	Slots         int                 `json:"slots"`
	ConnectorType string              `json:"connectorType"`
	Status        string              `json:"status"`
	CreatedBy     *models.UserSummary `json:"createdBy"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// ToView converts a stored station to its external form.
func ToView(st *models.Station) (StationView, error) {
	loc, err := geo.ToExternal(st.Location)
	if err != nil {
		return StationView{}, fmt.Errorf("station %s: stored location: %w", st.ID, err)
	}
	creator := st.Creator
	if creator == nil {
		creator = &models.UserSummary{ID: st.CreatedBy}
	}
	return StationView{
		ID:            st.ID,
		Name:          st.Name,
		Location:      loc,
		PowerOutput:   st.PowerOutput,
		Slots:         st.Slots,
		ConnectorType: st.ConnectorType,
		Status:        st.Status,
		CreatedBy:     creator,
		CreatedAt:     st.CreatedAt,
		UpdatedAt:     st.UpdatedAt,
	}, nil
}

// StationService implements station queries and mutations. Locations are normalized
// before anything is written and converted back on every returned record.
type StationService struct {
	repo            StationRepository
	cache           StationCache
	publisher       events.Publisher
	metrics         *metrics.Metrics
	adminOnlyWrites bool
	logger          *zap.Logger
}

// NewStationService builds StationService. cache, publisher and m may be nil.
func NewStationService(repo StationRepository, cache StationCache, publisher events.Publisher, m *metrics.Metrics, adminOnlyWrites bool, logger *zap.Logger) *StationService {
	return &StationService{
		repo:            repo,
		cache:           cache,
		publisher:       publisher,
		metrics:         m,
		adminOnlyWrites: adminOnlyWrites,
		logger:          logger,
	}
}

// List returns stations matching filter.
func (s *StationService) List(ctx context.Context, filter models.StationFilter) (views []StationView, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stations.list", "status", filter.Status, "connector_type", filter.ConnectorType)
	defer func() { telemetry.EndSpan(span, err) }()

	stations, err := s.repo.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	views = make([]StationView, 0, len(stations))
	for i := range stations {
		v, err := ToView(&stations[i])
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Get returns one station.
func (s *StationService) Get(ctx context.Context, id string) (view StationView, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stations.get", "station_id", id)
	defer func() { telemetry.EndSpan(span, err) }()

	st, err := s.load(ctx, id)
	if err != nil {
		return StationView{}, err
	}
	return ToView(st)
}

// Create validates and stores a new station owned by p.
func (s *StationService) Create(ctx context.Context, p identity.Principal, in StationInput) (view StationView, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stations.create", "user_id", p.Subject)
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.authorize(p); err != nil {
		return StationView{}, err
	}
	st, err := newStation(in)
	if err != nil {
		return StationView{}, err
	}
	st.CreatedBy = p.Subject

	if err := s.repo.Save(ctx, st); err != nil {
		return StationView{}, mapNotFound(err)
	}
	stored, err := s.repo.FindByID(ctx, st.ID)
	if err != nil {
		return StationView{}, fmt.Errorf("station: reload after create: %w", mapNotFound(err))
	}
	view, err = ToView(stored)
	if err != nil {
		return StationView{}, err
	}

	s.logger.Info("station created", zap.String("station_id", st.ID), zap.String("user_id", p.Subject))
	s.metrics.StationMutation("create")
	s.publish(events.KindCreated, st.ID, &view)
	return view, nil
}

// Update applies in to the station. The stored record is untouched when validation fails.
func (s *StationService) Update(ctx context.Context, p identity.Principal, id string, in StationInput) (view StationView, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stations.update", "station_id", id, "user_id", p.Subject)
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.authorize(p); err != nil {
		return StationView{}, err
	}
	patch, err := newPatch(in)
	if err != nil {
		return StationView{}, err
	}

	st, err := s.repo.UpdateByID(ctx, id, patch)
	if err != nil {
		return StationView{}, mapNotFound(err)
	}
	s.invalidate(ctx, id)

	view, err = ToView(st)
	if err != nil {
		return StationView{}, err
	}

	s.logger.Info("station updated", zap.String("station_id", id), zap.String("user_id", p.Subject))
	s.metrics.StationMutation("update")
	s.publish(events.KindUpdated, id, &view)
	return view, nil
}

// Delete removes the station.
func (s *StationService) Delete(ctx context.Context, p identity.Principal, id string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "stations.delete", "station_id", id, "user_id", p.Subject)
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.authorize(p); err != nil {
		return err
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.invalidate(ctx, id)

	s.logger.Info("station deleted", zap.String("station_id", id), zap.String("user_id", p.Subject))
	s.metrics.StationMutation("delete")
	s.publish(events.KindDeleted, id, nil)
	return nil
}

func (s *StationService) authorize(p identity.Principal) error {
	if s.adminOnlyWrites && p.Role != identity.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *StationService) load(ctx context.Context, id string) (*models.Station, error) {
	if s.cache != nil {
		st, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("station cache read failed", zap.String("station_id", id), zap.Error(err))
		} else if ok {
			return st, nil
		}
	}

	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, st); err != nil {
			s.logger.Warn("station cache write failed", zap.String("station_id", id), zap.Error(err))
		}
	}
	return st, nil
}

func (s *StationService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("station cache invalidate failed", zap.String("station_id", id), zap.Error(err))
	}
}

func (s *StationService) publish(kind events.Kind, id string, view *StationView) {
	if s.publisher == nil {
		return
	}
	evt := events.Event{Type: kind, StationID: id}
	if view != nil {
		evt.Station = view
	}
	s.publisher.Publish(evt)
}

func mapNotFound(err error) error {
	switch {
	case errors.Is(err, repository.ErrStationNotFound):
		return ErrStationNotFound
	case errors.Is(err, repository.ErrUnknownCreator):
		return ErrUnknownOwner
	}
	return err
}

func newStation(in StationInput) (*models.Station, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, invalidField("name", "name is required")
	}
	if len(in.Location) == 0 {
		return nil, invalidField("location", "location is required")
	}
	loc, err := geo.Normalize(in.Location)
	if err != nil {
		return nil, err
	}
	if in.PowerOutput == nil {
		return nil, invalidField("powerOutput", "powerOutput is required")
	}
	if in.Slots == nil {
		return nil, invalidField("slots", "slots is required")
	}
	if in.ConnectorType == nil || *in.ConnectorType == "" {
		return nil, invalidField("connectorType", "connectorType is required")
	}

	status := models.StationStatusActive
	if in.Status != nil && *in.Status != "" {
		status = *in.Status
	}

	st := &models.Station{
		Name:          strings.TrimSpace(*in.Name),
		Location:      loc,
		PowerOutput:   *in.PowerOutput,
		Slots:         *in.Slots,
		ConnectorType: *in.ConnectorType,
		Status:        status,
	}
	if err := checkScalars(st.PowerOutput, st.Slots, st.ConnectorType, st.Status); err != nil {
		return nil, err
	}
	return st, nil
}

// newPatch validates an update. Location is mandatory on update.
func newPatch(in StationInput) (models.StationPatch, error) {
	var patch models.StationPatch
	if len(in.Location) == 0 {
		return patch, invalidField("location", "location is required")
	}
	loc, err := geo.Normalize(in.Location)
	if err != nil {
		return patch, err
	}
	patch.Location = &loc

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return patch, invalidField("name", "name must not be empty")
		}
		patch.Name = &name
	}
	if in.PowerOutput != nil {
		if *in.PowerOutput <= 0 {
			return patch, invalidField("powerOutput", "powerOutput must be positive")
		}
		patch.PowerOutput = in.PowerOutput
	}
	if in.Slots != nil {
		if *in.Slots < 1 {
			return patch, invalidField("slots", "slots must be at least 1")
		}
		patch.Slots = in.Slots
	}
	if in.ConnectorType != nil {
		if !models.IsValidConnectorType(*in.ConnectorType) {
			return patch, invalidField("connectorType", "unsupported connector type")
		}
		patch.ConnectorType = in.ConnectorType
	}
	if in.Status != nil {
		if !models.IsValidStationStatus(*in.Status) {
			return patch, invalidField("status", "status must be Active or Inactive")
		}
		patch.Status = in.Status
	}
	return patch, nil
}

func checkScalars(power float64, slots int, connector, status string) error {
	switch {
	case power <= 0:
		return invalidField("powerOutput", "powerOutput must be positive")
	case slots < 1:
		return invalidField("slots", "slots must be at least 1")
	case !models.IsValidConnectorType(connector):
		return invalidField("connectorType", "unsupported connector type")
	case !models.IsValidStationStatus(status):
		return invalidField("status", "status must be Active or Inactive")
	}
	return nil
}
