package application

import (
	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/routing"
)

// NavigationService answers route requests with the development stand-in
// for the routing service.
type NavigationService struct {
	metrics *Metrics
	logger  *zap.Logger
}

// NewNavigationService creates a new NavigationService counting into metrics.
func NewNavigationService(metrics *Metrics, logger *zap.Logger) *NavigationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NavigationService{metrics: metrics, logger: logger}
}

// CalculateRoute returns the direct path between the request endpoints.
func (s *NavigationService) CalculateRoute(req routing.RouteRequest) (*routing.RouteResponse, error) {
	resp, err := routing.DirectRoute(req)
	if err != nil {
		return nil, err
	}
	s.metrics.stubRoutes.Add(1)
	s.logger.Debug("direct route calculated",
		zap.Float64("calculation_time_ms", resp.CalculationTimeMs),
	)
	return &resp, nil
}
