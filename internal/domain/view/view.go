// Package view holds the caller-visible model of a map view instance.
package view

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
	"github.com/NaviWasm/service-mapview/internal/surface"
)

var (
	ErrViewNotFound  = errors.New("map view not found")
	ErrTooManyViews  = errors.New("map view limit reached")
	ErrViewClosed    = errors.New("map view closed")
	ErrStreamMissing = errors.New("map view has no streamable surface")
)

// Endpoint is a live route endpoint as seen by callers.
type Endpoint struct {
	Role       string         `json:"role"`
	Coordinate geo.Coordinate `json:"coordinate"`
}

// State is a point-in-time snapshot of one view's session.
type State struct {
	ID                uuid.UUID  `json:"id"`
	Status            string     `json:"status"`
	Endpoints         []Endpoint `json:"endpoints"`
	Outcome           Outcome    `json:"outcome"`
	Generation        uint64     `json:"generation"`
	OverlayVertices   int        `json:"overlay_vertices"`
	Animating         bool       `json:"animating"`
	AnimationProgress float64    `json:"animation_progress"`
	SurfaceReady      bool       `json:"surface_ready"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Instance is a live, mounted map view.
type Instance interface {
	ID() uuid.UUID
	Click(ctx context.Context, c geo.Coordinate) (State, error)
	Reset(ctx context.Context) (State, error)
	State(ctx context.Context) (State, error)
	// Streamer returns the surface op stream, if the surface provides one.
	Streamer() (surface.Streamer, bool)
	Close() error
}
