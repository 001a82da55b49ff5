package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ValidateRing checks that r is a closed simple ring with non-zero area.
func ValidateRing(r orb.Ring) error {
	return validateRing(r, -1)
}

func validateRing(r orb.Ring, ring int) error {
	if len(r) < 4 {
		return &ErrInvalidGeometry{Ring: ring, Reason: fmt.Sprintf("ring has %d points, need at least 4", len(r))}
	}
	if !r.Closed() {
		return &ErrInvalidGeometry{Ring: ring, Reason: "ring is not closed"}
	}
	if planar.Area(r) == 0 {
		return &ErrInvalidGeometry{Ring: ring, Reason: "ring has zero area"}
	}
	for i := 0; i+1 < len(r); i++ {
		if r[i] == r[i+1] {
			return &ErrInvalidGeometry{Ring: ring, Reason: fmt.Sprintf("repeated point at %d", i)}
		}
	}
	if i, j, ok := selfIntersection(r); ok {
		return &ErrInvalidGeometry{Ring: ring, Reason: fmt.Sprintf("segments %d and %d intersect", i, j)}
	}
	return nil
}

// selfIntersection finds two segments of a closed ring that meet anywhere
// other than their shared vertex. Adjacent segments only fail when they
// fold back over each other.
func selfIntersection(r orb.Ring) (int, int, bool) {
	n := len(r) - 1
	si := newSegmentIndex([]orb.Ring{r})
	fi, fj, found := 0, 0, false
	si.pairs(func(s, t *segment) bool {
		i, j := s.idx, t.idx
		if i > j {
			i, j = j, i
		}
		adjacent := j == i+1 || (i == 0 && j == n-1)
		if adjacent {
			// Shared vertex is r[j] for consecutive segments, r[0] for the wrap.
			a, shared, b := r[i], r[j], r[j+1]
			if i == 0 && j == n-1 {
				a, shared, b = r[j], r[0], r[1]
			}
			if orient(a, shared, b) == 0 && dot(a, shared, b) > 0 {
				fi, fj, found = i, j, true
				return false
			}
			return true
		}
		if segmentsTouch(s.a, s.b, t.a, t.b) {
			fi, fj, found = i, j, true
			return false
		}
		return true
	})
	return fi, fj, found
}

// dot is positive when a and b lie on the same side of shared, i.e. the
// path a-shared-b reverses direction.
func dot(a, shared, b orb.Point) float64 {
	return (a[0]-shared[0])*(b[0]-shared[0]) + (a[1]-shared[1])*(b[1]-shared[1])
}

// ValidatePolygon checks ring validity, winding and ring interaction:
// the exterior is counter-clockwise, holes are clockwise, rings may touch
// at points but never cross, and every hole lies inside the exterior.
func ValidatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return &ErrInvalidGeometry{Ring: -1, Reason: "polygon has no rings"}
	}
	for i, r := range p {
		if err := validateRing(r, i); err != nil {
			return err
		}
		want := orb.CW
		if i == 0 {
			want = orb.CCW
		}
		if r.Orientation() != want {
			return &ErrInvalidGeometry{Ring: i, Reason: "wrong winding order"}
		}
	}
	if len(p) == 1 {
		return nil
	}
	if i, j, ok := ringCrossing(p); ok {
		return &ErrInvalidGeometry{Ring: j, Reason: fmt.Sprintf("ring %d crosses ring %d", j, i)}
	}
	for i, hole := range p[1:] {
		if !ringInside(hole, p[0]) {
			return &ErrInvalidGeometry{Ring: i + 1, Reason: "hole lies outside the exterior ring"}
		}
	}
	return nil
}

// ringCrossing finds two distinct rings of p whose segments cross.
func ringCrossing(p orb.Polygon) (int, int, bool) {
	si := newSegmentIndex(p)
	ri, rj, found := 0, 0, false
	si.pairs(func(s, t *segment) bool {
		if s.ring == t.ring {
			return true
		}
		if segmentsCross(s.a, s.b, t.a, t.b) {
			ri, rj, found = s.ring, t.ring, true
			if ri > rj {
				ri, rj = rj, ri
			}
			return false
		}
		return true
	})
	return ri, rj, found
}

// ringInside tests containment with the first vertex of inner that is not
// on the boundary of outer.
func ringInside(inner, outer orb.Ring) bool {
	for _, pt := range inner[:len(inner)-1] {
		if onRing(outer, pt) {
			continue
		}
		return planar.RingContains(outer, pt)
	}
	// Every vertex lies on the outer boundary; test an edge midpoint.
	for i := 0; i+1 < len(inner); i++ {
		mid := orb.Point{(inner[i][0] + inner[i+1][0]) / 2, (inner[i][1] + inner[i+1][1]) / 2}
		if !onRing(outer, mid) {
			return planar.RingContains(outer, mid)
		}
	}
	return false
}

func onRing(r orb.Ring, pt orb.Point) bool {
	for i := 0; i+1 < len(r); i++ {
		if orient(r[i], r[i+1], pt) == 0 && within(r[i], r[i+1], pt) {
			return true
		}
	}
	return false
}

// ValidateFeature validates the polygon of a feature.
func ValidateFeature(f *Feature) error {
	if f == nil {
		return fmt.Errorf("feature is nil")
	}
	if f.Class < 0 {
		return fmt.Errorf("feature %d has negative class %d", f.ID, f.Class)
	}
	if err := ValidatePolygon(f.Polygon); err != nil {
		return fmt.Errorf("feature %d: %w", f.ID, err)
	}
	return nil
}
