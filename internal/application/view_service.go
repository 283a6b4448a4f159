package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/animation"
	"github.com/NaviWasm/service-mapview/internal/domain/geo"
	"github.com/NaviWasm/service-mapview/internal/domain/view"
	"github.com/NaviWasm/service-mapview/internal/events"
	"github.com/NaviWasm/service-mapview/internal/mapview"
	"github.com/NaviWasm/service-mapview/internal/overlay"
	"github.com/NaviWasm/service-mapview/internal/surface"
)

// CreateViewRequest holds the optional settings of a new view.
type CreateViewRequest struct {
	AnimationDurationMs *int64 `json:"animation_duration_ms" binding:"omitempty,min=1,max=600000"`
}

// ClickRequest is a pointer click at a geographic position.
type ClickRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

// Coordinate converts the request to a domain coordinate.
func (r ClickRequest) Coordinate() geo.Coordinate {
	var c geo.Coordinate
	if r.Lat != nil {
		c.Latitude = *r.Lat
	}
	if r.Lng != nil {
		c.Longitude = *r.Lng
	}
	return c
}

// ViewServiceConfig holds the limits and defaults applied to every view.
type ViewServiceConfig struct {
	MaxViews          int
	AnimationDuration time.Duration
	DisplayRefreshHz  int
	Overlay           overlay.Options
}

// ViewService is the application service orchestrating map view use cases.
type ViewService struct {
	repo       view.Repository
	router     mapview.Router
	publisher  events.Publisher
	cfg        ViewServiceConfig
	newDisplay func() animation.Display
	metrics    *Metrics
	logger     *zap.Logger
}

// ViewServiceOption configures a ViewService.
type ViewServiceOption func(*ViewService)

// WithDisplayFactory replaces the refresh display given to each new view.
func WithDisplayFactory(fn func() animation.Display) ViewServiceOption {
	return func(s *ViewService) { s.newDisplay = fn }
}

// NewViewService creates a new ViewService.
func NewViewService(
	repo view.Repository,
	router mapview.Router,
	publisher events.Publisher,
	cfg ViewServiceConfig,
	logger *zap.Logger,
	opts ...ViewServiceOption,
) *ViewService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := NewMetrics()
	s := &ViewService{
		repo:      repo,
		router:    router,
		publisher: countingPublisher{next: publisher, metrics: metrics},
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
	s.newDisplay = func() animation.Display { return animation.NewRefreshDisplay(s.cfg.DisplayRefreshHz) }
	for _, o := range opts {
		o(s)
	}
	return s
}

// Metrics returns the service counters.
func (s *ViewService) Metrics() *Metrics {
	return s.metrics
}

// CreateView mounts a new map view on a headless surface.
func (s *ViewService) CreateView(ctx context.Context, req CreateViewRequest) (*view.State, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count views: %w", err)
	}
	if s.cfg.MaxViews > 0 && count >= s.cfg.MaxViews {
		return nil, view.ErrTooManyViews
	}

	duration := s.cfg.AnimationDuration
	if req.AnimationDurationMs != nil {
		duration = time.Duration(*req.AnimationDurationMs) * time.Millisecond
	}

	ctrl := mapview.New(
		surface.NewHeadless(surface.WithLogger(s.logger)),
		s.newDisplay(),
		s.router,
		mapview.Config{AnimationDuration: duration, Overlay: s.cfg.Overlay},
		mapview.WithPublisher(s.publisher),
		mapview.WithLogger(s.logger),
	)
	ctrl.Mount()

	if err := s.repo.Save(ctx, ctrl); err != nil {
		_ = ctrl.Close()
		return nil, fmt.Errorf("failed to save view: %w", err)
	}
	s.metrics.viewsCreated.Add(1)

	s.logger.Info("map view created",
		zap.String("view_id", ctrl.ID().String()),
		zap.Duration("animation_duration", duration),
	)

	st, err := ctrl.State(ctx)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetView returns the state of a view.
func (s *ViewService) GetView(ctx context.Context, id uuid.UUID) (*view.State, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	st, err := v.State(ctx)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Click places the next route endpoint of a view. The returned state is
// valid even when the click was rejected.
func (s *ViewService) Click(ctx context.Context, id uuid.UUID, req ClickRequest) (*view.State, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.clicks.Add(1)
	st, err := v.Click(ctx, req.Coordinate())
	if errors.Is(err, view.ErrViewClosed) {
		return nil, err
	}
	return &st, err
}

// Reset clears the session of a view.
func (s *ViewService) Reset(ctx context.Context, id uuid.UUID) (*view.State, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	st, err := v.Reset(ctx)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// DeleteView unregisters a view and tears it down.
func (s *ViewService) DeleteView(ctx context.Context, id uuid.UUID) error {
	v, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if err := v.Close(); err != nil {
		return fmt.Errorf("failed to close view: %w", err)
	}
	s.metrics.viewsClosed.Add(1)
	s.logger.Info("map view deleted", zap.String("view_id", id.String()))
	return nil
}

// Stream returns the surface op stream of a view.
func (s *ViewService) Stream(ctx context.Context, id uuid.UUID) (surface.Streamer, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	st, ok := v.Streamer()
	if !ok {
		return nil, view.ErrStreamMissing
	}
	return st, nil
}

// ListViews returns the state of every registered view.
func (s *ViewService) ListViews(ctx context.Context) ([]view.State, error) {
	views, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	states := make([]view.State, 0, len(views))
	for _, v := range views {
		st, err := v.State(ctx)
		if err != nil {
			// closed between List and State
			continue
		}
		states = append(states, st)
	}
	return states, nil
}

// ActiveViews returns the number of registered views.
func (s *ViewService) ActiveViews(ctx context.Context) int {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0
	}
	return n
}

// Shutdown closes every registered view.
func (s *ViewService) Shutdown(ctx context.Context) error {
	views, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list views: %w", err)
	}
	var errs []error
	for _, v := range views {
		if _, err := s.repo.Delete(ctx, v.ID()); err != nil {
			continue
		}
		if err := v.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("map views closed", zap.Int("count", len(views)))
	return errors.Join(errs...)
}
