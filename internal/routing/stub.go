package routing

import (
	"fmt"
	"time"
)

// DirectRoute answers a route request with the straight [start, end] path.
// It stands in for the routing service during local development and does
// no pathfinding.
func DirectRoute(req RouteRequest) (RouteResponse, error) {
	began := time.Now()

	start, end := req.Start.Coordinate(), req.End.Coordinate()
	if err := start.Validate(); err != nil {
		return RouteResponse{}, newError(KindInvalidInput, 0, fmt.Errorf("start: %w", err))
	}
	if err := end.Validate(); err != nil {
		return RouteResponse{}, newError(KindInvalidInput, 0, fmt.Errorf("end: %w", err))
	}

	return RouteResponse{
		Path:              []LatLng{req.Start, req.End},
		CalculationTimeMs: float64(time.Since(began).Microseconds()) / 1000,
	}, nil
}
