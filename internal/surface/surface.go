// Package surface defines the map rendering capabilities the route
// visualization core consumes, together with a headless in-memory
// implementation that streams its operations to an attached renderer.
package surface

import (
	"errors"

	"github.com/paulmach/orb"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
)

var (
	ErrNotReady       = errors.New("map surface not ready")
	ErrRemoved        = errors.New("map surface removed")
	ErrMarkerNotFound = errors.New("marker not found")
	ErrSourceNotFound = errors.New("source not found")
	ErrSourceExists   = errors.New("source already exists")
	ErrSourceInUse    = errors.New("source is referenced by a layer")
	ErrLayerNotFound  = errors.New("layer not found")
	ErrLayerExists    = errors.New("layer already exists")
	ErrLabelNotFound  = errors.New("label not found")
)

// MarkerID identifies a marker on a surface. The surface only keeps a
// back-reference; the component that created the marker owns it.
type MarkerID string

// MarkerStyle describes how a point marker is drawn.
type MarkerStyle struct {
	Kind  string `json:"kind"`
	Color string `json:"color"`
}

var (
	StyleStart   = MarkerStyle{Kind: "start", Color: "#22c55e"}
	StyleEnd     = MarkerStyle{Kind: "end", Color: "#ef4444"}
	StyleVehicle = MarkerStyle{Kind: "vehicle", Color: "#3b82f6"}
)

// LineLayer is a line-geometry layer drawn from a source.
type LineLayer struct {
	ID       string  `json:"id"`
	SourceID string  `json:"source_id"`
	Color    string  `json:"color"`
	Width    float64 `json:"width"`
	Opacity  float64 `json:"opacity"`
}

// Label is a text popup anchored at a coordinate.
type Label struct {
	ID       string         `json:"id"`
	Position geo.Coordinate `json:"position"`
	Text     string         `json:"text"`
}

// ClickHandler receives pointer clicks translated to coordinates.
type ClickHandler func(geo.Coordinate)

// DragHandler receives the final position of a dragged marker.
type DragHandler func(geo.Coordinate)

// Surface is the set of map capabilities used by the core: pointer clicks,
// point markers, line layers with their sources, popups and the camera.
type Surface interface {
	Ready() bool

	OnClick(h ClickHandler) (unregister func())

	// Add*, MoveMarker and FitBounds fail while the surface is not ready;
	// removals only fail once the surface itself is removed.
	AddMarker(pos geo.Coordinate, style MarkerStyle, onDrag DragHandler) (MarkerID, error)
	MoveMarker(id MarkerID, pos geo.Coordinate) error
	RemoveMarker(id MarkerID) error

	AddLineSource(id string, path geo.Path) error
	RemoveSource(id string) error
	HasSource(id string) bool

	AddLineLayer(layer LineLayer) error
	RemoveLayer(id string) error
	HasLayer(id string) bool

	AddLabel(label Label) error
	RemoveLabel(id string) error

	FitBounds(b orb.Bound, padding int) error

	// Remove destroys the surface instance.
	Remove() error
}

// Streamer is implemented by surfaces that can bring a remote renderer in
// sync and forward its pointer input.
type Streamer interface {
	Snapshot() Snapshot
	Subscribe() (<-chan Op, func())
	Attach() (Snapshot, <-chan Op, func())
	Click(pos geo.Coordinate) error
	Drag(id MarkerID, pos geo.Coordinate) error
}

var (
	_ Surface  = (*Headless)(nil)
	_ Streamer = (*Headless)(nil)
)
