package surface

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
)

// OpType names a surface mutation sent to attached renderers.
type OpType string

const (
	OpReady        OpType = "surface.ready"
	OpRemoved      OpType = "surface.removed"
	OpMarkerAdd    OpType = "marker.add"
	OpMarkerMove   OpType = "marker.move"
	OpMarkerRemove OpType = "marker.remove"
	OpSourceAdd    OpType = "source.add"
	OpSourceRemove OpType = "source.remove"
	OpLayerAdd     OpType = "layer.add"
	OpLayerRemove  OpType = "layer.remove"
	OpLabelAdd     OpType = "label.add"
	OpLabelRemove  OpType = "label.remove"
	OpCameraFit    OpType = "camera.fit"
)

// Bounds is the JSON form of a bounding box.
type Bounds struct {
	SouthWest geo.Coordinate `json:"south_west"`
	NorthEast geo.Coordinate `json:"north_east"`
}

func boundsOf(b orb.Bound) Bounds {
	return Bounds{SouthWest: geo.FromPoint(b.Min), NorthEast: geo.FromPoint(b.Max)}
}

// Op is one surface mutation.
type Op struct {
	Type      OpType           `json:"type"`
	MarkerID  MarkerID         `json:"marker_id,omitempty"`
	Position  *geo.Coordinate  `json:"position,omitempty"`
	Style     *MarkerStyle     `json:"style,omitempty"`
	Draggable bool             `json:"draggable,omitempty"`
	SourceID  string           `json:"source_id,omitempty"`
	Data      *geojson.Feature `json:"data,omitempty"`
	LayerID   string           `json:"layer_id,omitempty"`
	Layer     *LineLayer       `json:"layer,omitempty"`
	LabelID   string           `json:"label_id,omitempty"`
	Text      string           `json:"text,omitempty"`
	Bounds    *Bounds          `json:"bounds,omitempty"`
	Padding   int              `json:"padding,omitempty"`
	Ready     *bool            `json:"ready,omitempty"`
}

// MarkerSnapshot is the render state of one marker.
type MarkerSnapshot struct {
	ID        MarkerID       `json:"id"`
	Position  geo.Coordinate `json:"position"`
	Style     MarkerStyle    `json:"style"`
	Draggable bool           `json:"draggable"`
}

// Snapshot is the full render state of a Headless surface, used to bring a
// newly attached renderer in sync before streaming ops.
type Snapshot struct {
	Ready   bool                       `json:"ready"`
	Markers []MarkerSnapshot           `json:"markers"`
	Sources *geojson.FeatureCollection `json:"sources"`
	Layers  []LineLayer                `json:"layers"`
	Labels  []Label                    `json:"labels"`
	Camera  *Bounds                    `json:"camera,omitempty"`
}

// Snapshot returns a copy of the current render state.
func (h *Headless) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Headless) snapshotLocked() Snapshot {

	s := Snapshot{
		Ready:   h.ready && !h.removed,
		Markers: make([]MarkerSnapshot, 0, len(h.markers)),
		Sources: geojson.NewFeatureCollection(),
		Layers:  append([]LineLayer(nil), h.layers...),
		Labels:  make([]Label, 0, len(h.labels)),
	}
	for _, m := range h.markers {
		s.Markers = append(s.Markers, MarkerSnapshot{ID: m.id, Position: m.pos, Style: m.style, Draggable: m.onDrag != nil})
	}
	sort.Slice(s.Markers, func(i, j int) bool { return s.Markers[i].ID < s.Markers[j].ID })

	ids := make([]string, 0, len(h.sources))
	for id := range h.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s.Sources.Append(h.sources[id])
	}

	for _, l := range h.labels {
		s.Labels = append(s.Labels, l)
	}
	sort.Slice(s.Labels, func(i, j int) bool { return s.Labels[i].ID < s.Labels[j].ID })

	if h.camera != nil {
		b := boundsOf(*h.camera)
		s.Camera = &b
	}
	return s
}
