// Package geo converts station locations between the client form {latitude, longitude}
// and the stored GeoJSON form {type: "Point", coordinates: [longitude, latitude]}.
package geo

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// PointType is the only GeoJSON geometry type stations use.
const PointType = "Point"

const (
	minLatitude  = -90.0
	maxLatitude  = 90.0
	minLongitude = -180.0
	maxLongitude = 180.0
)

// decimalNumber is plain decimal notation. ParseFloat alone would also take hex
// floats and digit separators.
var decimalNumber = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

// ErrInvalidLocation matches every *LocationError.
var ErrInvalidLocation = errors.New("geo: invalid location")

// LocationError identifies the offending field of a rejected location.
type LocationError struct {
	Field  string
	Reason string
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("geo: invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidLocation) hold.
func (e *LocationError) Is(target error) bool {
	return target == ErrInvalidLocation
}

func invalid(field, reason string) error {
	return &LocationError{Field: field, Reason: reason}
}

// External is the client-facing form.
type External struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Input is an external location before coercion. Values may be JSON numbers, numeric
// strings or absent.
type Input struct {
	Latitude  any `json:"latitude"`
	Longitude any `json:"longitude"`
}

// Input returns e as an uncoerced Input.
func (e External) Input() Input {
	return Input{Latitude: e.Latitude, Longitude: e.Longitude}
}

// Point is the stored form. Coordinates are [longitude, latitude].
type Point struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// ToInternal validates in and swaps it into [longitude, latitude] order.
func ToInternal(in Input) (Point, error) {
	lat, err := coerce("latitude", in.Latitude)
	if err != nil {
		return Point{}, err
	}
	lng, err := coerce("longitude", in.Longitude)
	if err != nil {
		return Point{}, err
	}
	if err := checkRange(lat, lng); err != nil {
		return Point{}, err
	}
	return Point{Type: PointType, Coordinates: []float64{lng, lat}}, nil
}

// ToExternal reads coordinates[1] as latitude and coordinates[0] as longitude.
// A missing type is tolerated; missing or malformed coordinates are not.
func ToExternal(p Point) (External, error) {
	if p.Type != "" && p.Type != PointType {
		return External{}, invalid("type", fmt.Sprintf("unsupported geometry %q", p.Type))
	}
	if p.Coordinates == nil {
		return External{}, invalid("coordinates", "is required")
	}
	if len(p.Coordinates) != 2 {
		return External{}, invalid("coordinates", "must contain exactly two numbers")
	}
	lng, lat := p.Coordinates[0], p.Coordinates[1]
	if !finite(lng) {
		return External{}, invalid("longitude", "must be a finite number")
	}
	if !finite(lat) {
		return External{}, invalid("latitude", "must be a finite number")
	}
	if err := checkRange(lat, lng); err != nil {
		return External{}, err
	}
	return External{Latitude: lat, Longitude: lng}, nil
}

// WithType returns p with a back-filled type.
func (p Point) WithType() Point {
	if p.Type == "" {
		p.Type = PointType
	}
	return p
}

// Normalize accepts a raw location in either form and returns the stored form.
// The external form is used whenever latitude or longitude is present.
func Normalize(raw json.RawMessage) (Point, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Point{}, invalid("location", "is required")
	}

	var shape struct {
		Latitude    any             `json:"latitude"`
		Longitude   any             `json:"longitude"`
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&shape); err != nil {
		return Point{}, invalid("location", "must be an object")
	}

	if present(shape.Latitude) || present(shape.Longitude) || len(shape.Coordinates) == 0 {
		return ToInternal(Input{Latitude: shape.Latitude, Longitude: shape.Longitude})
	}

	var values []any
	cdec := json.NewDecoder(bytes.NewReader(shape.Coordinates))
	cdec.UseNumber()
	if err := cdec.Decode(&values); err != nil {
		return Point{}, invalid("coordinates", "must be an array of two numbers")
	}
	if len(values) != 2 {
		return Point{}, invalid("coordinates", "must contain exactly two numbers")
	}
	lng, err := coerce("longitude", values[0])
	if err != nil {
		return Point{}, err
	}
	lat, err := coerce("latitude", values[1])
	if err != nil {
		return Point{}, err
	}

	p := Point{Type: shape.Type, Coordinates: []float64{lng, lat}}.WithType()
	if _, err := ToExternal(p); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Value stores the point as JSON (jsonb column).
func (p Point) Value() (driver.Value, error) {
	data, err := json.Marshal(p.WithType())
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan reads a JSON encoded point.
func (p *Point) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = Point{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("geo: cannot scan %T into Point", src)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("geo: decode point: %w", err)
	}
	return nil
}

func coerce(field string, v any) (float64, error) {
	var (
		f   float64
		err error
	)
	switch n := v.(type) {
	case nil:
		return 0, invalid(field, "is required")
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		f, err = parseDecimal(string(n))
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, invalid(field, "is required")
		}
		f, err = parseDecimal(s)
	default:
		return 0, invalid(field, "must be a number")
	}
	if err != nil || !finite(f) {
		return 0, invalid(field, "must be a finite number")
	}
	return f, nil
}

func parseDecimal(s string) (float64, error) {
	if !decimalNumber.MatchString(s) {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(s, 64)
}

func checkRange(lat, lng float64) error {
	if lat < minLatitude || lat > maxLatitude {
		return invalid("latitude", "must be between -90 and 90")
	}
	if lng < minLongitude || lng > maxLongitude {
		return invalid("longitude", "must be between -180 and 180")
	}
	return nil
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
