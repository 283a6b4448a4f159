package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
)

// TopicRouteEvents carries route attempt outcomes keyed by view ID.
const TopicRouteEvents = "mapview.route-events"

// Route event types.
const (
	RouteCalculated = "route.calculated"
	RouteNoRoute    = "route.no_route"
	RouteFailed     = "route.failed"
	RouteStale      = "route.stale"
)

// RouteEvent describes how one route request of a view resolved.
type RouteEvent struct {
	Type              string         `json:"-"`
	ViewID            uuid.UUID      `json:"view_id"`
	Generation        uint64         `json:"generation"`
	Start             geo.Coordinate `json:"start"`
	End               geo.Coordinate `json:"end"`
	Vertices          int            `json:"vertices,omitempty"`
	DistanceKm        float64        `json:"distance_km,omitempty"`
	CalculationTimeMs float64        `json:"calculation_time_ms,omitempty"`
	TimingSource      string         `json:"timing_source,omitempty"`
	ErrorKind         string         `json:"error_kind,omitempty"`
	OccurredAt        time.Time      `json:"occurred_at"`
}
