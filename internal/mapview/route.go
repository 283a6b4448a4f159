package mapview

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
	"github.com/NaviWasm/service-mapview/internal/domain/view"
	"github.com/NaviWasm/service-mapview/internal/events"
	"github.com/NaviWasm/service-mapview/internal/routing"
)

// pairCompleted fires on the second click and on every drag of a complete
// pair. Each call supersedes whatever request was in flight.
func (c *Controller) pairCompleted(start, end geo.Coordinate) {
	c.discardLive()
	c.animator.Cancel()
	c.overlay.Clear()

	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.live = gen
	c.cancelLive = cancel
	c.setOutcome(view.Outcome{Status: view.OutcomePending})

	c.logger.Info("requesting route",
		zap.Uint64("generation", gen),
		zap.String("start", start.String()),
		zap.String("end", end.String()),
	)

	c.requests.Add(1)
	go func() {
		defer c.requests.Done()
		defer cancel()
		res, err := c.router.RequestRoute(ctx, start, end)
		c.post(func() { c.routeCompleted(gen, start, end, res, err) })
	}()
}

func (c *Controller) routeCompleted(gen uint64, start, end geo.Coordinate, res *routing.Result, err error) {
	evt := events.RouteEvent{
		ViewID:     c.id,
		Generation: gen,
		Start:      start,
		End:        end,
		OccurredAt: time.Now().UTC(),
	}

	if gen != c.live {
		c.logger.Debug("discarding stale route result", zap.Uint64("generation", gen), zap.Uint64("live", c.live))
		evt.Type = events.RouteStale
		evt.ErrorKind = string(routing.KindStaleResult)
		c.publisher.Publish(c.baseCtx, evt)
		return
	}
	c.live = 0
	c.cancelLive = nil

	if err != nil {
		kind := routing.KindOf(err)
		c.logger.Warn("route request failed", zap.Uint64("generation", gen), zap.String("kind", string(kind)), zap.Error(err))
		c.endSession(view.Outcome{
			Status:    view.OutcomeFailed,
			Message:   routing.UserMessage(kind),
			ErrorKind: string(kind),
		})
		evt.Type = events.RouteFailed
		evt.ErrorKind = string(kind)
		c.publisher.Publish(c.baseCtx, evt)
		return
	}

	evt.CalculationTimeMs = res.CalculationTimeMs
	evt.TimingSource = string(res.TimingSource)

	if !res.Found() {
		c.logger.Info("no route found", zap.Uint64("generation", gen))
		c.endSession(view.Outcome{
			Status:            view.OutcomeNoRoute,
			ErrorKind:         string(routing.KindNoRouteFound),
			CalculationTimeMs: res.CalculationTimeMs,
			TimingSource:      string(res.TimingSource),
		})
		evt.Type = events.RouteNoRoute
		evt.ErrorKind = string(routing.KindNoRouteFound)
		c.publisher.Publish(c.baseCtx, evt)
		return
	}

	if err := c.overlay.Draw(res.Path, res.CalculationTimeMs); err != nil {
		c.logger.Warn("route overlay not drawn", zap.Uint64("generation", gen), zap.Error(err))
	}
	if err := c.animator.Animate(res.Path, c.cfg.AnimationDuration); err != nil {
		c.logger.Warn("route animation not started", zap.Uint64("generation", gen), zap.Error(err))
	}

	distance := res.Path.LengthKm()
	c.setOutcome(view.Outcome{
		Status:            view.OutcomeRouted,
		CalculationTimeMs: res.CalculationTimeMs,
		TimingSource:      string(res.TimingSource),
		DistanceKm:        distance,
		Vertices:          res.Path.Len(),
	})
	c.logger.Info("route drawn",
		zap.Uint64("generation", gen),
		zap.Int("vertices", res.Path.Len()),
		zap.Float64("distance_km", distance),
		zap.Float64("calculation_time_ms", res.CalculationTimeMs),
		zap.String("timing_source", string(res.TimingSource)),
	)

	evt.Type = events.RouteCalculated
	evt.Vertices = res.Path.Len()
	evt.DistanceKm = distance
	c.publisher.Publish(c.baseCtx, evt)
}

// endSession returns the placement to Idle after an unrouted attempt and
// records why. Reset leaves the outcome idle, so next replaces it directly.
func (c *Controller) endSession(next view.Outcome) {
	c.placement.Reset()
	c.outcome = next
}
