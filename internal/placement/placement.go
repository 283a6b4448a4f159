// Package placement turns pointer clicks into an ordered pair of route
// endpoints, keeping at most two live endpoints per session.
package placement

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
	"github.com/NaviWasm/service-mapview/internal/surface"
)

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrSurfaceNotReady means the click was dropped and the state did not advance.
	ErrSurfaceNotReady = errors.New("click dropped: map surface not ready")
)

// Role tags an endpoint as the start or the end of the route.
type Role string

const (
	RoleStart Role = "start"
	RoleEnd   Role = "end"
)

// Endpoint is one user-selected route boundary point. The marker is owned
// by the Machine that created it.
type Endpoint struct {
	Role       Role             `json:"role"`
	Coordinate geo.Coordinate   `json:"coordinate"`
	Marker     surface.MarkerID `json:"marker_id"`
}

// Listener is notified of session transitions. Calls are synchronous.
type Listener interface {
	// PairCompleted fires when both endpoints are live, either after the
	// second click or after an endpoint of a complete pair was dragged.
	PairCompleted(start, end geo.Coordinate)
	// SessionCleared fires before the endpoint markers are removed so the
	// listener can cancel animation and clear the overlay first.
	SessionCleared()
}

// Dispatcher runs fn on the goroutine that owns the Machine.
type Dispatcher func(fn func())

// Machine is the marker placement state machine. It is not safe for
// concurrent use; surface drag callbacks are routed through the Dispatcher.
type Machine struct {
	surface  surface.Surface
	listener Listener
	dispatch Dispatcher
	logger   *zap.Logger

	status    Status
	endpoints []Endpoint
}

// Option configures a Machine.
type Option func(*Machine)

// WithDispatcher sets how drag callbacks get back onto the owning goroutine.
func WithDispatcher(d Dispatcher) Option {
	return func(m *Machine) { m.dispatch = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates an idle Machine.
func New(s surface.Surface, l Listener, opts ...Option) *Machine {
	m := &Machine{
		surface:  s,
		listener: l,
		dispatch: func(fn func()) { fn() },
		logger:   zap.NewNop(),
		status:   StatusIdle,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Status returns the current state.
func (m *Machine) Status() Status { return m.status }

// Endpoints returns a copy of the live endpoints, start first.
func (m *Machine) Endpoints() []Endpoint {
	return append([]Endpoint(nil), m.endpoints...)
}

// HandleClick places the next endpoint. A click while Complete clears the
// session and re-seeds it with the click as the new start.
func (m *Machine) HandleClick(c geo.Coordinate) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCoordinate, err)
	}
	if !m.surface.Ready() {
		return ErrSurfaceNotReady
	}

	if m.status == StatusComplete {
		m.clear()
	}

	role := RoleStart
	style := surface.StyleStart
	next := StatusAwaitingEnd
	if m.status == StatusAwaitingEnd {
		role = RoleEnd
		style = surface.StyleEnd
		next = StatusComplete
	}

	var id surface.MarkerID
	onDrag := func(pos geo.Coordinate) {
		m.dispatch(func() { m.moveEndpoint(id, pos) })
	}
	id, err := m.surface.AddMarker(c, style, onDrag)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSurfaceNotReady, err)
	}
	m.endpoints = append(m.endpoints, Endpoint{Role: role, Coordinate: c, Marker: id})
	m.transition(next)

	if m.status == StatusComplete {
		m.listener.PairCompleted(m.endpoints[0].Coordinate, m.endpoints[1].Coordinate)
	}
	return nil
}

// Reset removes every endpoint, the overlay and the animation. Safe from
// any state.
func (m *Machine) Reset() {
	m.clear()
}

func (m *Machine) clear() {
	m.listener.SessionCleared()
	for _, ep := range m.endpoints {
		if err := m.surface.RemoveMarker(ep.Marker); err != nil {
			m.logger.Debug("endpoint marker removal skipped",
				zap.String("marker_id", string(ep.Marker)),
				zap.Error(err),
			)
		}
	}
	m.endpoints = nil
	if m.status != StatusIdle {
		m.transition(StatusIdle)
	}
}

func (m *Machine) transition(next Status) {
	if !m.status.CanTransitionTo(next) {
		// unreachable unless the table and HandleClick disagree
		panic(fmt.Sprintf("placement: invalid transition %s -> %s", m.status, next))
	}
	m.status = next
}

// moveEndpoint applies a finished drag. Drags of endpoints that no longer
// exist are ignored.
func (m *Machine) moveEndpoint(id surface.MarkerID, pos geo.Coordinate) {
	if pos.Validate() != nil {
		return
	}
	for i := range m.endpoints {
		if m.endpoints[i].Marker != id {
			continue
		}
		m.endpoints[i].Coordinate = pos
		if m.status == StatusComplete {
			m.listener.PairCompleted(m.endpoints[0].Coordinate, m.endpoints[1].Coordinate)
		}
		return
	}
}
