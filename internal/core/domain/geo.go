package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84).
// It is always encoded as a GeoJSON position: [lon, lat].
type GeoPoint struct {
	Lon float64
	Lat float64
}

// NewGeoPoint builds a point from longitude and latitude, in that order.
func NewGeoPoint(lon, lat float64) GeoPoint {
	return GeoPoint{Lon: lon, Lat: lat}
}

// Validate reports whether the point lies inside the WGS 84 ranges.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) || math.IsInf(p.Lon, 0) || math.IsInf(p.Lat, 0) {
		return &ValidationError{Field: "coordinates", Reason: "must be finite numbers"}
	}
	if p.Lon < -180 || p.Lon > 180 {
		return &ValidationError{Field: "lon", Reason: fmt.Sprintf("must be within [-180, 180], got %v", p.Lon)}
	}
	if p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{Field: "lat", Reason: fmt.Sprintf("must be within [-90, 90], got %v", p.Lat)}
	}
	return nil
}

// IsZero reports whether the point is the null island placeholder.
func (p GeoPoint) IsZero() bool {
	return p.Lon == 0 && p.Lat == 0
}

func (p GeoPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lon, p.Lat})
}

func (p *GeoPoint) UnmarshalJSON(data []byte) error {
	var pos []float64
	if err := json.Unmarshal(data, &pos); err != nil {
		return fmt.Errorf("geo point must be [lon, lat]: %w", err)
	}
	if len(pos) != 2 {
		return fmt.Errorf("geo point must have 2 elements, got %d", len(pos))
	}
	p.Lon, p.Lat = pos[0], pos[1]
	return nil
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("[%.6f, %.6f]", p.Lon, p.Lat)
}
