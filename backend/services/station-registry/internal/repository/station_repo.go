package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"evregistry/backend/services/station-registry/internal/models"
)

const pgForeignKeyViolation = "23503"

var (
	// ErrStationNotFound is returned when no station has the requested id.
	ErrStationNotFound = errors.New("station not found")
	// ErrUnknownCreator is returned by Save when created_by is not a registered user id.
	ErrUnknownCreator = errors.New("station creator is not a registered user")
)

const stationColumns = `
	s.id, s.name, s.location, s.power_output, s.slots, s.connector_type, s.status,
	s.created_by, s.created_at, s.updated_at, u.name, u.email
`

// StationRepository manages charging station persistence. Locations are stored as
// GeoJSON in a jsonb column.
type StationRepository struct {
	db *sql.DB
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

// Find lists stations matching the exact-match filter, newest first.
func (r *StationRepository) Find(ctx context.Context, filter models.StationFilter) ([]models.Station, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("s.status = $%d", len(args)))
	}
	if filter.ConnectorType != "" {
		args = append(args, filter.ConnectorType)
		conds = append(conds, fmt.Sprintf("s.connector_type = $%d", len(args)))
	}

	query := "SELECT " + stationColumns + " FROM stations s LEFT JOIN users u ON u.id = s.created_by"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY s.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stations: find: %w", err)
	}
	defer rows.Close()

	stations := make([]models.Station, 0)
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("stations: scan: %w", err)
		}
		stations = append(stations, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stations: rows: %w", err)
	}
	return stations, nil
}

// FindByID returns one station or ErrStationNotFound.
func (r *StationRepository) FindByID(ctx context.Context, id string) (*models.Station, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrStationNotFound
	}
	query := "SELECT " + stationColumns + " FROM stations s LEFT JOIN users u ON u.id = s.created_by WHERE s.id = $1"
	st, err := scanStation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStationNotFound
		}
		return nil, fmt.Errorf("stations: find by id: %w", err)
	}
	return st, nil
}

// Save inserts a new station, assigning id and timestamps.
func (r *StationRepository) Save(ctx context.Context, station *models.Station) error {
	if _, err := uuid.Parse(station.CreatedBy); err != nil {
		return ErrUnknownCreator
	}
	if station.ID == "" {
		station.ID = idGenerator()
	}
	const query = `
		INSERT INTO stations (id, name, location, power_output, slots, connector_type, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		station.ID,
		station.Name,
		station.Location,
		station.PowerOutput,
		station.Slots,
		station.ConnectorType,
		station.Status,
		station.CreatedBy,
	).Scan(&station.CreatedAt, &station.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrUnknownCreator
		}
		return fmt.Errorf("stations: save: %w", err)
	}
	return nil
}

// UpdateByID applies the non-nil fields of patch and returns the updated station.
func (r *StationRepository) UpdateByID(ctx context.Context, id string, patch models.StationPatch) (*models.Station, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrStationNotFound
	}

	args := []any{id}
	sets := make([]string, 0, 7)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.PowerOutput != nil {
		add("power_output", *patch.PowerOutput)
	}
	if patch.Slots != nil {
		add("slots", *patch.Slots)
	}
	if patch.ConnectorType != nil {
		add("connector_type", *patch.ConnectorType)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	sets = append(sets, "updated_at = NOW()")

	query := "WITH s AS (UPDATE stations SET " + strings.Join(sets, ", ") +
		" WHERE id = $1 RETURNING *) SELECT " + stationColumns +
		" FROM s LEFT JOIN users u ON u.id = s.created_by"

	st, err := scanStation(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStationNotFound
		}
		return nil, fmt.Errorf("stations: update: %w", err)
	}
	return st, nil
}

// DeleteByID removes a station.
func (r *StationRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrStationNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM stations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("stations: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("stations: delete: %w", err)
	}
	if n == 0 {
		return ErrStationNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (*models.Station, error) {
	var (
		st           models.Station
		creatorName  sql.NullString
		creatorEmail sql.NullString
	)
	err := row.Scan(
		&st.ID,
		&st.Name,
		&st.Location,
		&st.PowerOutput,
		&st.Slots,
		&st.ConnectorType,
		&st.Status,
		&st.CreatedBy,
		&st.CreatedAt,
		&st.UpdatedAt,
		&creatorName,
		&creatorEmail,
	)
	if err != nil {
		return nil, err
	}
	if creatorName.Valid || creatorEmail.Valid {
		st.Creator = &models.UserSummary{ID: st.CreatedBy, Name: creatorName.String, Email: creatorEmail.String}
	}
	return &st, nil
}
