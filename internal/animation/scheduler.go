package animation

import (
	"sort"
	"time"
)

// FrameID identifies a requested frame callback.
type FrameID uint64

// FrameCallback runs once on the next display refresh with that refresh's
// timestamp.
type FrameCallback func(ts time.Time)

// Scheduler is a cancellable per-display-refresh scheduling primitive.
type Scheduler interface {
	RequestFrame(cb FrameCallback) FrameID
	CancelFrame(id FrameID)
}

// FrameQueue is a Scheduler driven by explicit Tick calls from a display.
// Callbacks requested while a tick is running are deferred to the next tick.
// It is not safe for concurrent use; it belongs to one view's event loop.
type FrameQueue struct {
	next    FrameID
	pending map[FrameID]FrameCallback
}

// NewFrameQueue creates an empty queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{pending: make(map[FrameID]FrameCallback)}
}

// RequestFrame schedules cb for the next tick.
func (q *FrameQueue) RequestFrame(cb FrameCallback) FrameID {
	q.next++
	q.pending[q.next] = cb
	return q.next
}

// CancelFrame drops a pending callback. Unknown IDs are ignored.
func (q *FrameQueue) CancelFrame(id FrameID) {
	delete(q.pending, id)
}

// Pending returns the number of callbacks waiting for a tick.
func (q *FrameQueue) Pending() int {
	return len(q.pending)
}

// Tick runs every callback pending at the start of the tick in request order
// and returns how many ran.
func (q *FrameQueue) Tick(ts time.Time) int {
	if len(q.pending) == 0 {
		return 0
	}
	ids := make([]FrameID, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	ran := 0
	for _, id := range ids {
		cb, ok := q.pending[id]
		if !ok {
			// cancelled by an earlier callback in this tick
			continue
		}
		delete(q.pending, id)
		cb(ts)
		ran++
	}
	return ran
}
