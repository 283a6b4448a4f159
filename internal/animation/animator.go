// Package animation moves a marker along a route path over a fixed
// wall-clock duration, paced by display refreshes rather than a timer.
package animation

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
	"github.com/NaviWasm/service-mapview/internal/surface"
)

// State is the lifecycle of one animation run.
type State struct {
	Path      geo.Path
	Start     time.Time
	Duration  time.Duration
	Progress  float64
	Cancelled bool

	finished bool
	frame    FrameID
}

// Progress returns elapsed/duration clamped to [0,1]. A non-positive
// duration is complete immediately.
func Progress(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	p := float64(elapsed) / float64(duration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// PositionAt samples path at progress fraction p by linear interpolation
// between the two vertices bracketing p. At p·(n−1) == k it returns
// path[k] exactly. ok is false for an empty path.
func PositionAt(path geo.Path, p float64) (geo.Coordinate, bool) {
	n := path.Len()
	switch n {
	case 0:
		return geo.Coordinate{}, false
	case 1:
		return path.At(0), true
	}

	p = math.Max(0, math.Min(1, p))
	x := p * float64(n-1)
	i := int(math.Floor(x))
	if i >= n-1 {
		return path.At(n - 1), true
	}
	f := math.Mod(x, 1)
	return geo.Lerp(path.At(i), path.At(i+1), f), true
}

// Animator drives a single dedicated marker. At most one run is active;
// starting a new run cancels the previous one first.
type Animator struct {
	scheduler Scheduler
	surface   surface.Surface
	logger    *zap.Logger

	state     *State
	marker    surface.MarkerID
	hasMarker bool
}

// NewAnimator creates an Animator drawing on s and paced by scheduler.
func NewAnimator(scheduler Scheduler, s surface.Surface, logger *zap.Logger) *Animator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Animator{scheduler: scheduler, surface: s, logger: logger}
}

// Animate starts moving the marker from path[0] to path[last] over
// duration. An empty path is a no-op; a single-vertex path places the
// marker without motion.
func (a *Animator) Animate(path geo.Path, duration time.Duration) error {
	a.Cancel()

	start, ok := path.First()
	if !ok {
		return nil
	}

	id, err := a.surface.AddMarker(start, surface.StyleVehicle, nil)
	if err != nil {
		return err
	}
	a.marker = id
	a.hasMarker = true

	st := &State{Path: path, Duration: duration}
	a.state = st
	if path.Len() == 1 {
		st.Progress = 1
		st.finished = true
		return nil
	}

	st.frame = a.scheduler.RequestFrame(a.step(st))
	return nil
}

func (a *Animator) step(st *State) FrameCallback {
	return func(ts time.Time) {
		if st.Cancelled || a.state != st {
			return
		}
		if st.Start.IsZero() {
			st.Start = ts
		}

		st.Progress = Progress(ts.Sub(st.Start), st.Duration)
		pos, _ := PositionAt(st.Path, st.Progress)
		if err := a.surface.MoveMarker(a.marker, pos); err != nil {
			a.logger.Warn("animation marker move failed", zap.Error(err))
		}

		if st.Progress >= 1 {
			st.finished = true
			return
		}
		st.frame = a.scheduler.RequestFrame(a.step(st))
	}
}

// Cancel stops scheduling and removes the moving marker. Safe to call when
// nothing is running.
func (a *Animator) Cancel() {
	if a.state != nil {
		a.state.Cancelled = true
		a.scheduler.CancelFrame(a.state.frame)
		a.state = nil
	}
	if a.hasMarker {
		if err := a.surface.RemoveMarker(a.marker); err != nil {
			a.logger.Debug("animation marker already gone", zap.Error(err))
		}
		a.hasMarker = false
		a.marker = ""
	}
}

// Active reports whether a run is still advancing.
func (a *Animator) Active() bool {
	return a.state != nil && !a.state.finished
}

// Progress returns the progress of the current run, or 0 when idle.
func (a *Animator) Progress() float64 {
	if a.state == nil {
		return 0
	}
	return a.state.Progress
}

// Marker returns the moving marker, if one is placed.
func (a *Animator) Marker() (surface.MarkerID, bool) {
	return a.marker, a.hasMarker
}
