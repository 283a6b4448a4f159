package routing

import (
	"encoding/json"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
)

// LatLng is the wire form of a coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Coordinate converts to the domain type.
func (l LatLng) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: l.Lat, Longitude: l.Lng}
}

// FromCoordinate converts a domain coordinate to its wire form.
func FromCoordinate(c geo.Coordinate) LatLng {
	return LatLng{Lat: c.Latitude, Lng: c.Longitude}
}

// RouteRequest is the POST body sent to the routing service.
type RouteRequest struct {
	Start LatLng `json:"start" binding:"required"`
	End   LatLng `json:"end" binding:"required"`
}

// RouteResponse is the success body of the routing service.
type RouteResponse struct {
	Path              []LatLng `json:"path"`
	CalculationTimeMs float64  `json:"calculation_time_ms"`
}

// rawResponse defers decoding of path so a missing or non-array field can be
// told apart from an empty route.
type rawResponse struct {
	Path              json.RawMessage `json:"path"`
	CalculationTimeMs *float64        `json:"calculation_time_ms"`
}

type rawLatLng struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}
