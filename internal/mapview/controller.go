// Package mapview hosts the Section Controller: one map view, its session
// and every side effect it owns, driven by a single event loop goroutine.
package mapview

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/animation"
	"github.com/NaviWasm/service-mapview/internal/domain/geo"
	"github.com/NaviWasm/service-mapview/internal/domain/view"
	"github.com/NaviWasm/service-mapview/internal/events"
	"github.com/NaviWasm/service-mapview/internal/overlay"
	"github.com/NaviWasm/service-mapview/internal/placement"
	"github.com/NaviWasm/service-mapview/internal/routing"
	"github.com/NaviWasm/service-mapview/internal/surface"
)

const (
	DefaultAnimationDuration = 3 * time.Second

	eventBuffer = 64
)

// Router issues one route request for an ordered endpoint pair.
type Router interface {
	RequestRoute(ctx context.Context, start, end geo.Coordinate) (*routing.Result, error)
}

// Config holds per-view settings.
type Config struct {
	AnimationDuration time.Duration
	Overlay           overlay.Options
}

// Controller is one mounted map view. Session state is only touched by the
// loop goroutine; exported methods post to the loop and wait.
type Controller struct {
	id        uuid.UUID
	createdAt time.Time
	cfg       Config

	surface   surface.Surface
	display   animation.Display
	router    Router
	publisher events.Publisher
	logger    *zap.Logger

	frames    *animation.FrameQueue
	placement *placement.Machine
	overlay   *overlay.Renderer
	animator  *animation.Animator

	// generation numbers every issued route request; live is the one whose
	// completion is still wanted, zero when none is.
	generation uint64
	live       uint64
	cancelLive context.CancelFunc
	outcome    view.Outcome

	unregisterClick func()
	baseCtx         context.Context
	cancelBase      context.CancelFunc
	requests        sync.WaitGroup

	events    chan func()
	quit      chan struct{}
	done      chan struct{}
	mountOnce sync.Once
	closeOnce sync.Once
	mounted   atomic.Bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher sets where route outcome events go.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithID overrides the generated view ID.
func WithID(id uuid.UUID) Option {
	return func(c *Controller) { c.id = id }
}

// New creates an unmounted controller for s. Frames from display drive the
// route animation.
func New(s surface.Surface, display animation.Display, router Router, cfg Config, opts ...Option) *Controller {
	if cfg.AnimationDuration <= 0 {
		cfg.AnimationDuration = DefaultAnimationDuration
	}
	c := &Controller{
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
		cfg:       cfg,
		surface:   s,
		display:   display,
		router:    router,
		publisher: events.NopPublisher{},
		logger:    zap.NewNop(),
		frames:    animation.NewFrameQueue(),
		outcome:   view.Outcome{Status: view.OutcomeIdle},
		events:    make(chan func(), eventBuffer),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(zap.String("view_id", c.id.String()))
	c.baseCtx, c.cancelBase = context.WithCancel(context.Background())

	c.placement = placement.New(s, sessionListener{c},
		placement.WithDispatcher(func(fn func()) { c.post(fn) }),
		placement.WithLogger(c.logger),
	)
	c.overlay = overlay.NewRenderer(s, cfg.Overlay, c.logger)
	c.animator = animation.NewAnimator(c.frames, s, c.logger)
	return c
}

// ID returns the view ID.
func (c *Controller) ID() uuid.UUID { return c.id }

// Mount registers the surface click callback and starts the event loop.
func (c *Controller) Mount() {
	c.mountOnce.Do(func() {
		c.mounted.Store(true)
		c.unregisterClick = c.surface.OnClick(func(pos geo.Coordinate) {
			c.post(func() { c.handleClick(pos) })
		})
		go c.run()
	})
}

// Click places the next endpoint as if the surface had been clicked at pos.
func (c *Controller) Click(ctx context.Context, pos geo.Coordinate) (view.State, error) {
	var (
		state view.State
		err   error
	)
	callErr := c.call(ctx, func() {
		err = c.handleClick(pos)
		state = c.snapshot()
	})
	if callErr != nil {
		return view.State{}, callErr
	}
	return state, err
}

// Reset clears endpoints, overlay and animation and discards any in-flight
// route request.
func (c *Controller) Reset(ctx context.Context) (view.State, error) {
	var state view.State
	err := c.call(ctx, func() {
		c.placement.Reset()
		state = c.snapshot()
	})
	return state, err
}

// State returns a snapshot of the session.
func (c *Controller) State(ctx context.Context) (view.State, error) {
	var state view.State
	err := c.call(ctx, func() { state = c.snapshot() })
	return state, err
}

// Streamer exposes the surface op stream when the surface has one.
func (c *Controller) Streamer() (surface.Streamer, bool) {
	s, ok := c.surface.(surface.Streamer)
	return s, ok
}

// Close tears the view down and waits for in-flight requests to return.
// Safe to call more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		if c.mounted.Load() {
			close(c.quit)
			<-c.done
		} else {
			c.teardown()
			close(c.done)
		}
		c.requests.Wait()
	})
	return nil
}

func (c *Controller) run() {
	defer close(c.done)
	frames := c.display.Frames()
	for {
		select {
		case fn := <-c.events:
			fn()
		case ts, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			c.frames.Tick(ts)
		case <-c.quit:
			c.teardown()
			return
		}
	}
}

// post queues fn for the loop. It reports false once the view is closed.
func (c *Controller) post(fn func()) bool {
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	case <-c.quit:
		return false
	}
}

func (c *Controller) call(ctx context.Context, fn func()) error {
	if !c.mounted.Load() {
		return view.ErrViewClosed
	}
	reply := make(chan struct{})
	select {
	case c.events <- func() { fn(); close(reply) }:
	case <-c.quit:
		return view.ErrViewClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-c.done:
		return view.ErrViewClosed
	}
}

func (c *Controller) handleClick(pos geo.Coordinate) error {
	if err := c.placement.HandleClick(pos); err != nil {
		c.logger.Debug("click ignored", zap.String("position", pos.String()), zap.Error(err))
		return err
	}
	// a new session starts; the last unrouted outcome no longer applies
	if s := c.outcome.Status; s == view.OutcomeFailed || s == view.OutcomeNoRoute {
		c.setOutcome(view.Outcome{Status: view.OutcomeIdle})
	}
	return nil
}

// teardown releases everything the view owns: animation, then overlay,
// then endpoint markers, then the click callback, then the surface.
func (c *Controller) teardown() {
	c.discardLive()
	c.cancelBase()

	c.animator.Cancel()
	c.overlay.Clear()
	c.placement.Reset()

	if c.unregisterClick != nil {
		c.unregisterClick()
		c.unregisterClick = nil
	}
	c.display.Stop()
	if err := c.surface.Remove(); err != nil {
		c.logger.Debug("surface removal skipped", zap.Error(err))
	}
	c.logger.Info("map view closed")
}

func (c *Controller) snapshot() view.State {
	eps := c.placement.Endpoints()
	endpoints := make([]view.Endpoint, 0, len(eps))
	for _, ep := range eps {
		endpoints = append(endpoints, view.Endpoint{Role: string(ep.Role), Coordinate: ep.Coordinate})
	}
	return view.State{
		ID:                c.id,
		Status:            c.placement.Status().String(),
		Endpoints:         endpoints,
		Outcome:           c.outcome,
		Generation:        c.generation,
		OverlayVertices:   c.overlay.Vertices(),
		Animating:         c.animator.Active(),
		AnimationProgress: c.animator.Progress(),
		SurfaceReady:      c.surface.Ready(),
		CreatedAt:         c.createdAt,
	}
}

func (c *Controller) setOutcome(next view.Outcome) {
	if !c.outcome.Status.CanTransitionTo(next.Status) {
		c.logger.Warn("unexpected route outcome transition",
			zap.String("from", c.outcome.Status.String()),
			zap.String("to", next.Status.String()),
		)
	}
	c.outcome = next
}

// discardLive makes any in-flight completion stale and aborts its request.
func (c *Controller) discardLive() {
	c.live = 0
	if c.cancelLive != nil {
		c.cancelLive()
		c.cancelLive = nil
	}
}

// sessionListener keeps the placement callbacks off the exported API.
type sessionListener struct{ c *Controller }

func (l sessionListener) PairCompleted(start, end geo.Coordinate) { l.c.pairCompleted(start, end) }
func (l sessionListener) SessionCleared()                         { l.c.sessionCleared() }

func (c *Controller) sessionCleared() {
	c.discardLive()
	c.animator.Cancel()
	c.overlay.Clear()
	c.setOutcome(view.Outcome{Status: view.OutcomeIdle})
}
