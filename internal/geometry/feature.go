package geometry

import (
	"github.com/paulmach/orb"
)

// Feature is one polygonized region: a single exterior ring with optional
// holes, tagged with its class and the zoom band it was built for.
//
// The exterior ring is counter-clockwise and holes are clockwise in planar
// coordinates. Rings are closed.
type Feature struct {
	ID      uint64
	Class   int
	Band    int
	Polygon orb.Polygon
}

// Bound returns the planar bounding box of the feature.
func (f Feature) Bound() orb.Bound {
	return f.Polygon.Bound()
}

// Vertices counts ring points, closing points included.
func (f Feature) Vertices() int {
	n := 0
	for _, r := range f.Polygon {
		n += len(r)
	}
	return n
}

// Clone returns a deep copy.
func (f Feature) Clone() Feature {
	f.Polygon = f.Polygon.Clone()
	return f
}

// CountVertices sums Vertices over a feature set.
func CountVertices(features []Feature) int {
	n := 0
	for _, f := range features {
		n += f.Vertices()
	}
	return n
}
