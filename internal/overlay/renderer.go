// Package overlay draws a computed route on a map surface.
package overlay

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
	"github.com/NaviWasm/service-mapview/internal/surface"
)

const (
	SourceID       = "route"
	LineLayerID    = "route-line"
	OutlineLayerID = "route-outline"
	LabelID        = "route-label"
)

// Options controls the optional parts of the overlay and its styling.
type Options struct {
	Outline      bool
	Label        bool
	LineColor    string
	LineWidth    float64
	OutlineColor string
	OutlineWidth float64
	FitPadding   int
}

// DefaultOptions returns the standard route styling.
func DefaultOptions() Options {
	return Options{
		Outline:      true,
		Label:        true,
		LineColor:    "#3b82f6",
		LineWidth:    4,
		OutlineColor: "#1e3a8a",
		OutlineWidth: 8,
		FitPadding:   50,
	}
}

// Renderer owns the route source, its layers and the distance label on one
// surface.
type Renderer struct {
	surface surface.Surface
	opts    Options
	logger  *zap.Logger

	labelShown bool
	vertices   int
}

// NewRenderer creates a Renderer for s.
func NewRenderer(s surface.Surface, opts Options, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{surface: s, opts: opts, logger: logger}
}

// LabelText formats the midpoint label.
func LabelText(distanceKm, calculationTimeMs float64) string {
	return fmt.Sprintf("Distance: %.2f km\nCalculation: %.1f ms", distanceKm, calculationTimeMs)
}

// Draw replaces any previous overlay with path and frames the camera on it.
// An empty path only clears.
func (r *Renderer) Draw(path geo.Path, calculationTimeMs float64) error {
	r.Clear()
	if path.IsEmpty() {
		return nil
	}

	if err := r.draw(path, calculationTimeMs); err != nil {
		r.Clear()
		return fmt.Errorf("draw route overlay: %w", err)
	}
	r.vertices = path.Len()
	return nil
}

func (r *Renderer) draw(path geo.Path, calculationTimeMs float64) error {
	if err := r.surface.AddLineSource(SourceID, path); err != nil {
		return err
	}

	if r.opts.Outline {
		err := r.surface.AddLineLayer(surface.LineLayer{
			ID:       OutlineLayerID,
			SourceID: SourceID,
			Color:    r.opts.OutlineColor,
			Width:    r.opts.OutlineWidth,
			Opacity:  0.4,
		})
		if err != nil {
			return err
		}
	}

	err := r.surface.AddLineLayer(surface.LineLayer{
		ID:       LineLayerID,
		SourceID: SourceID,
		Color:    r.opts.LineColor,
		Width:    r.opts.LineWidth,
		Opacity:  0.9,
	})
	if err != nil {
		return err
	}

	if r.opts.Label {
		mid, _ := path.Midpoint()
		label := surface.Label{ID: LabelID, Position: mid, Text: LabelText(path.LengthKm(), calculationTimeMs)}
		if err := r.surface.AddLabel(label); err != nil {
			return err
		}
		r.labelShown = true
	}

	return r.surface.FitBounds(path.Bound(), r.opts.FitPadding)
}

// Clear removes the label, the layers and then their source. It is safe to
// call when nothing is drawn or the surface is gone.
func (r *Renderer) Clear() {
	if r.labelShown {
		r.remove("label", LabelID, r.surface.RemoveLabel)
		r.labelShown = false
	}
	for _, id := range []string{LineLayerID, OutlineLayerID} {
		if r.surface.HasLayer(id) {
			r.remove("layer", id, r.surface.RemoveLayer)
		}
	}
	if r.surface.HasSource(SourceID) {
		r.remove("source", SourceID, r.surface.RemoveSource)
	}
	r.vertices = 0
}

func (r *Renderer) remove(kind, id string, fn func(string) error) {
	if err := fn(id); err != nil {
		r.logger.Debug("overlay removal skipped",
			zap.String("kind", kind),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}

// Drawn reports whether a route is currently on the surface.
func (r *Renderer) Drawn() bool {
	return r.vertices > 0
}

// Vertices returns the vertex count of the drawn route.
func (r *Renderer) Vertices() int {
	return r.vertices
}
