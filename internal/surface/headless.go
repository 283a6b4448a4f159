package surface

import (
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
)

// defaultSubscriberBuffer is the op channel capacity per subscriber. A
// subscriber that falls this far behind is dropped and has to resync from a
// snapshot.
const defaultSubscriberBuffer = 256

type marker struct {
	id     MarkerID
	pos    geo.Coordinate
	style  MarkerStyle
	onDrag DragHandler
}

// Headless is an in-memory Surface. It keeps the full render state so it can
// be snapshotted, and publishes every mutation as an Op to subscribers.
type Headless struct {
	mu sync.Mutex

	ready   bool
	removed bool

	nextMarker uint64
	markers    map[MarkerID]*marker

	sources map[string]*geojson.Feature
	layers  []LineLayer
	labels  map[string]Label
	camera  *orb.Bound
	padding int

	nextHandler uint64
	clicks      map[uint64]ClickHandler

	nextSub     uint64
	subscribers map[uint64]chan Op

	logger *zap.Logger
}

// HeadlessOption configures a Headless surface.
type HeadlessOption func(*Headless)

// WithReady sets the initial readiness of the surface.
func WithReady(ready bool) HeadlessOption {
	return func(h *Headless) { h.ready = ready }
}

// WithLogger sets the logger used for dropped subscribers.
func WithLogger(l *zap.Logger) HeadlessOption {
	return func(h *Headless) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHeadless creates a ready, empty surface.
func NewHeadless(opts ...HeadlessOption) *Headless {
	h := &Headless{
		ready:       true,
		markers:     make(map[MarkerID]*marker),
		sources:     make(map[string]*geojson.Feature),
		labels:      make(map[string]Label),
		clicks:      make(map[uint64]ClickHandler),
		subscribers: make(map[uint64]chan Op),
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// SetReady toggles readiness, as a style load would on a real map.
func (h *Headless) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return
	}
	h.ready = ready
	h.emit(Op{Type: OpReady, Ready: &ready})
}

// Ready reports whether the surface accepts render operations.
func (h *Headless) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready && !h.removed
}

// OnClick registers a click handler. The returned func unregisters it and is
// safe to call more than once.
func (h *Headless) OnClick(fn ClickHandler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextHandler++
	id := h.nextHandler
	h.clicks[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.clicks, id)
	}
}

// ClickHandlerCount returns the number of registered click handlers.
func (h *Headless) ClickHandlerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clicks)
}

// Click simulates a pointer click at pos. Handlers run outside the lock.
func (h *Headless) Click(pos geo.Coordinate) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	if err := h.usable(); err != nil {
		h.mu.Unlock()
		return err
	}
	handlers := make([]ClickHandler, 0, len(h.clicks))
	for _, id := range sortedKeys(h.clicks) {
		handlers = append(handlers, h.clicks[id])
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(pos)
	}
	return nil
}

// Drag simulates the end of a marker drag: the marker moves to pos and its
// drag callback, if any, is invoked.
func (h *Headless) Drag(id MarkerID, pos geo.Coordinate) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	if err := h.usable(); err != nil {
		h.mu.Unlock()
		return err
	}
	m, ok := h.markers[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	m.pos = pos
	h.emit(Op{Type: OpMarkerMove, MarkerID: id, Position: &pos})
	onDrag := m.onDrag
	h.mu.Unlock()

	if onDrag != nil {
		onDrag(pos)
	}
	return nil
}

// AddMarker places a point marker.
func (h *Headless) AddMarker(pos geo.Coordinate, style MarkerStyle, onDrag DragHandler) (MarkerID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return "", err
	}
	h.nextMarker++
	id := MarkerID(fmt.Sprintf("marker-%d", h.nextMarker))
	h.markers[id] = &marker{id: id, pos: pos, style: style, onDrag: onDrag}
	draggable := onDrag != nil
	h.emit(Op{Type: OpMarkerAdd, MarkerID: id, Position: &pos, Style: &style, Draggable: draggable})
	return id, nil
}

// MoveMarker repositions an existing marker.
func (h *Headless) MoveMarker(id MarkerID, pos geo.Coordinate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	m, ok := h.markers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	m.pos = pos
	h.emit(Op{Type: OpMarkerMove, MarkerID: id, Position: &pos})
	return nil
}

// RemoveMarker deletes a marker. Removals work before the surface is ready.
func (h *Headless) RemoveMarker(id MarkerID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return ErrRemoved
	}
	if _, ok := h.markers[id]; !ok {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	delete(h.markers, id)
	h.emit(Op{Type: OpMarkerRemove, MarkerID: id})
	return nil
}

// MarkerPosition returns the current position of a marker.
func (h *Headless) MarkerPosition(id MarkerID) (geo.Coordinate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.markers[id]
	if !ok {
		return geo.Coordinate{}, false
	}
	return m.pos, true
}

// AddLineSource adds a GeoJSON LineString source backed by path.
func (h *Headless) AddLineSource(id string, path geo.Path) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	if _, ok := h.sources[id]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, id)
	}
	f := geojson.NewFeature(path.LineString())
	f.ID = id
	h.sources[id] = f
	h.emit(Op{Type: OpSourceAdd, SourceID: id, Data: f})
	return nil
}

// RemoveSource deletes a source. Like a real map, it refuses while a layer
// still draws from it.
func (h *Headless) RemoveSource(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return ErrRemoved
	}
	if _, ok := h.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	for _, l := range h.layers {
		if l.SourceID == id {
			return fmt.Errorf("%w: %s used by %s", ErrSourceInUse, id, l.ID)
		}
	}
	delete(h.sources, id)
	h.emit(Op{Type: OpSourceRemove, SourceID: id})
	return nil
}

// HasSource reports whether a source exists.
func (h *Headless) HasSource(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sources[id]
	return ok
}

// AddLineLayer appends a line layer on top of the existing ones.
func (h *Headless) AddLineLayer(layer LineLayer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	if h.layerIndex(layer.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrLayerExists, layer.ID)
	}
	if _, ok := h.sources[layer.SourceID]; !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, layer.SourceID)
	}
	h.layers = append(h.layers, layer)
	h.emit(Op{Type: OpLayerAdd, LayerID: layer.ID, Layer: &layer})
	return nil
}

// RemoveLayer deletes a layer.
func (h *Headless) RemoveLayer(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return ErrRemoved
	}
	i := h.layerIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	h.layers = append(h.layers[:i], h.layers[i+1:]...)
	h.emit(Op{Type: OpLayerRemove, LayerID: id})
	return nil
}

// HasLayer reports whether a layer exists.
func (h *Headless) HasLayer(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.layerIndex(id) >= 0
}

// AddLabel adds or replaces a popup.
func (h *Headless) AddLabel(label Label) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	h.labels[label.ID] = label
	h.emit(Op{Type: OpLabelAdd, LabelID: label.ID, Position: &label.Position, Text: label.Text})
	return nil
}

// RemoveLabel deletes a popup.
func (h *Headless) RemoveLabel(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return ErrRemoved
	}
	if _, ok := h.labels[id]; !ok {
		return fmt.Errorf("%w: %s", ErrLabelNotFound, id)
	}
	delete(h.labels, id)
	h.emit(Op{Type: OpLabelRemove, LabelID: id})
	return nil
}

// FitBounds moves the camera so that b is visible.
func (h *Headless) FitBounds(b orb.Bound, padding int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usable(); err != nil {
		return err
	}
	h.camera = &b
	h.padding = padding
	bounds := boundsOf(b)
	h.emit(Op{Type: OpCameraFit, Bounds: &bounds, Padding: padding})
	return nil
}

// Remove destroys the surface: all state is dropped, click handlers are
// unregistered and subscriber channels are closed.
func (h *Headless) Remove() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return ErrRemoved
	}
	h.emit(Op{Type: OpRemoved})
	h.removed = true
	h.ready = false
	h.markers = make(map[MarkerID]*marker)
	h.sources = make(map[string]*geojson.Feature)
	h.layers = nil
	h.labels = make(map[string]Label)
	h.clicks = make(map[uint64]ClickHandler)
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	return nil
}

// Subscribe returns a channel receiving every subsequent Op, and a cancel
// func. The channel is closed on cancel, on Remove, or when the subscriber
// falls behind.
func (h *Headless) Subscribe() (<-chan Op, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribeLocked()
}

// Attach returns the current render state together with a subscription to
// every op after it, so a new renderer neither misses nor repeats an op.
func (h *Headless) Attach() (Snapshot, <-chan Op, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := h.snapshotLocked()
	ch, cancel := h.subscribeLocked()
	return snap, ch, cancel
}

func (h *Headless) subscribeLocked() (<-chan Op, func()) {
	ch := make(chan Op, defaultSubscriberBuffer)
	if h.removed {
		close(ch)
		return ch, func() {}
	}
	h.nextSub++
	id := h.nextSub
	h.subscribers[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subscribers[id]; ok {
			close(c)
			delete(h.subscribers, id)
		}
	}
}

// emit must be called with h.mu held.
func (h *Headless) emit(op Op) {
	for id, ch := range h.subscribers {
		select {
		case ch <- op:
		default:
			h.logger.Warn("dropping slow surface subscriber", zap.Uint64("subscriber", id))
			close(ch)
			delete(h.subscribers, id)
		}
	}
}

func (h *Headless) usable() error {
	if h.removed {
		return ErrRemoved
	}
	if !h.ready {
		return ErrNotReady
	}
	return nil
}

func (h *Headless) layerIndex(id string) int {
	for i, l := range h.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func sortedKeys(m map[uint64]ClickHandler) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
