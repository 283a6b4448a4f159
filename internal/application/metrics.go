package application

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/NaviWasm/service-mapview/internal/events"
)

// Metrics counts view and route activity since start.
type Metrics struct {
	startedAt time.Time

	viewsCreated atomic.Int64
	viewsClosed  atomic.Int64
	clicks       atomic.Int64
	routed       atomic.Int64
	noRoute      atomic.Int64
	failed       atomic.Int64
	stale        atomic.Int64
	stubRoutes   atomic.Int64
}

// NewMetrics creates zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// MetricsDTO is the response representation of the service metrics.
type MetricsDTO struct {
	UptimeSeconds         float64 `json:"uptime_seconds"`
	Goroutines            int     `json:"goroutines"`
	ActiveViews           int     `json:"active_views"`
	ViewsCreated          int64   `json:"views_created"`
	ViewsClosed           int64   `json:"views_closed"`
	Clicks                int64   `json:"clicks"`
	RouteRequests         int64   `json:"route_requests"`
	RoutesCalculated      int64   `json:"routes_calculated"`
	NoRoute               int64   `json:"no_route"`
	Failed                int64   `json:"failed"`
	Stale                 int64   `json:"stale"`
	RouteCalculationCount int64   `json:"route_calculation_count"`
}

// Snapshot reads every counter.
func (m *Metrics) Snapshot(activeViews int) MetricsDTO {
	dto := MetricsDTO{
		UptimeSeconds:         time.Since(m.startedAt).Seconds(),
		Goroutines:            runtime.NumGoroutine(),
		ActiveViews:           activeViews,
		ViewsCreated:          m.viewsCreated.Load(),
		ViewsClosed:           m.viewsClosed.Load(),
		Clicks:                m.clicks.Load(),
		RoutesCalculated:      m.routed.Load(),
		NoRoute:               m.noRoute.Load(),
		Failed:                m.failed.Load(),
		Stale:                 m.stale.Load(),
		RouteCalculationCount: m.stubRoutes.Load(),
	}
	dto.RouteRequests = dto.RoutesCalculated + dto.NoRoute + dto.Failed + dto.Stale
	return dto
}

func (m *Metrics) record(eventType string) {
	switch eventType {
	case events.RouteCalculated:
		m.routed.Add(1)
	case events.RouteNoRoute:
		m.noRoute.Add(1)
	case events.RouteFailed:
		m.failed.Add(1)
	case events.RouteStale:
		m.stale.Add(1)
	}
}

// countingPublisher counts route outcomes before forwarding them.
type countingPublisher struct {
	next    events.Publisher
	metrics *Metrics
}

func (p countingPublisher) Publish(ctx context.Context, evt events.RouteEvent) {
	p.metrics.record(evt.Type)
	p.next.Publish(ctx, evt)
}
