package geo

import (
	"github.com/paulmach/orb"
)

// Path is an ordered, immutable sequence of coordinates returned by the
// routing service. Index 0 is the resolved start, the last index the
// resolved end.
type Path struct {
	points []Coordinate
}

// NewPath copies points into a new Path.
func NewPath(points []Coordinate) Path {
	cp := make([]Coordinate, len(points))
	copy(cp, points)
	return Path{points: cp}
}

// Len returns the number of vertices.
func (p Path) Len() int { return len(p.points) }

// IsEmpty reports whether the path has no vertices.
func (p Path) IsEmpty() bool { return len(p.points) == 0 }

// At returns the i-th vertex. It panics when i is out of range, like a slice.
func (p Path) At(i int) Coordinate { return p.points[i] }

// First returns the start vertex; ok is false for an empty path.
func (p Path) First() (Coordinate, bool) {
	if len(p.points) == 0 {
		return Coordinate{}, false
	}
	return p.points[0], true
}

// Last returns the end vertex; ok is false for an empty path.
func (p Path) Last() (Coordinate, bool) {
	if len(p.points) == 0 {
		return Coordinate{}, false
	}
	return p.points[len(p.points)-1], true
}

// Points returns a copy of the vertices.
func (p Path) Points() []Coordinate {
	cp := make([]Coordinate, len(p.points))
	copy(cp, p.points)
	return cp
}

// LengthKm sums the haversine distance of every segment.
func (p Path) LengthKm() float64 {
	var total float64
	for i := 1; i < len(p.points); i++ {
		total += Distance(p.points[i-1], p.points[i])
	}
	return total
}

// Midpoint returns the middle vertex, used to anchor the route label.
func (p Path) Midpoint() (Coordinate, bool) {
	if len(p.points) == 0 {
		return Coordinate{}, false
	}
	return p.points[len(p.points)/2], true
}

// LineString converts the path to an orb geometry.
func (p Path) LineString() orb.LineString {
	ls := make(orb.LineString, len(p.points))
	for i, c := range p.points {
		ls[i] = c.Point()
	}
	return ls
}

// Bound returns the bounding box of the path. The zero Bound is returned for
// an empty path.
func (p Path) Bound() orb.Bound {
	if len(p.points) == 0 {
		return orb.Bound{}
	}
	return p.LineString().Bound()
}
