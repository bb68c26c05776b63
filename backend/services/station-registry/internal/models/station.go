package models

import (
	"time"

	"evregistry/backend/services/station-registry/internal/geo"
)

// Station status values.
const (
	StationStatusActive   = "Active"
	StationStatusInactive = "Inactive"
)

// ConnectorTypes lists accepted connector types.
var ConnectorTypes = []string{"Type 1", "Type 2", "CCS", "CHAdeMO", "Tesla"}

// Station is a charging station record as stored. Location is always the GeoJSON form.
type Station struct {
	ID            string
	Name          string
	Location      geo.Point
	PowerOutput   float64
	Slots         int
	ConnectorType string
	Status        string
	CreatedBy     string
	Creator       *UserSummary
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StationFilter holds exact-match list filters; empty fields are ignored.
type StationFilter struct {
	Status        string
	ConnectorType string
}

// StationPatch carries the fields of an update. Nil fields are left unchanged.
type StationPatch struct {
	Name          *string
	Location      *geo.Point
	PowerOutput   *float64
	Slots         *int
	ConnectorType *string
	Status        *string
}

// IsValidConnectorType reports whether t is one of ConnectorTypes.
func IsValidConnectorType(t string) bool {
	for _, c := range ConnectorTypes {
		if c == t {
			return true
		}
	}
	return false
}

// IsValidStationStatus reports whether s is Active or Inactive.
func IsValidStationStatus(s string) bool {
	return s == StationStatusActive || s == StationStatusInactive
}
