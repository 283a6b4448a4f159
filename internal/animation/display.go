package animation

import (
	"sync"
	"time"
)

// Display is a source of refresh timestamps.
type Display interface {
	Frames() <-chan time.Time
	Stop()
}

// RefreshDisplay emulates a display refreshing at a fixed rate for views
// that have no attached renderer pacing them.
type RefreshDisplay struct {
	ticker *time.Ticker
	frames chan time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewRefreshDisplay starts a display refreshing hz times per second.
func NewRefreshDisplay(hz int) *RefreshDisplay {
	if hz <= 0 {
		hz = 60
	}
	d := &RefreshDisplay{
		ticker: time.NewTicker(time.Second / time.Duration(hz)),
		frames: make(chan time.Time),
		stop:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *RefreshDisplay) run() {
	for {
		select {
		case ts := <-d.ticker.C:
			// skip the refresh if the consumer is busy, like a dropped frame
			select {
			case d.frames <- ts:
			default:
			}
		case <-d.stop:
			return
		}
	}
}

// Frames returns the refresh channel.
func (d *RefreshDisplay) Frames() <-chan time.Time { return d.frames }

// Stop halts the display. Safe to call more than once.
func (d *RefreshDisplay) Stop() {
	d.once.Do(func() {
		d.ticker.Stop()
		close(d.stop)
	})
}

// ManualDisplay delivers only the timestamps pushed to it.
type ManualDisplay struct {
	frames chan time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewManualDisplay creates a display driven by Push.
func NewManualDisplay() *ManualDisplay {
	return &ManualDisplay{frames: make(chan time.Time), stop: make(chan struct{})}
}

// Push blocks until the consumer takes ts. It reports false once stopped.
func (d *ManualDisplay) Push(ts time.Time) bool {
	select {
	case d.frames <- ts:
		return true
	case <-d.stop:
		return false
	}
}

// Frames returns the refresh channel.
func (d *ManualDisplay) Frames() <-chan time.Time { return d.frames }

// Stop unblocks pending and future pushes.
func (d *ManualDisplay) Stop() {
	d.once.Do(func() { close(d.stop) })
}
