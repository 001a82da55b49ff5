package geometry

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// SimplifyOptions configures Simplify.
type SimplifyOptions struct {
	// Tolerance is the Douglas-Peucker distance in planar units.
	// Zero or less returns copies of the input.
	Tolerance float64

	// PreserveSharedBorders simplifies each shared border once so that
	// neighbouring features keep identical vertices along it. When false
	// every ring is simplified on its own and adjacent features may drift
	// apart by up to Tolerance.
	PreserveSharedBorders bool
}

// Simplify reduces vertex counts with Douglas-Peucker.
//
// Rings that would become invalid are restored to their input vertices.
// With shared borders this also restores the neighbour's side of each
// affected border; the restoration repeats until every feature is valid.
// Each restored ring is reported as a TopologyError. Features are never
// dropped and the output keeps input order.
func Simplify(features []Feature, opts SimplifyOptions) ([]Feature, []*TopologyError) {
	if opts.Tolerance <= 0 || len(features) == 0 {
		out := make([]Feature, len(features))
		for i, f := range features {
			out[i] = f.Clone()
		}
		return out, nil
	}
	if opts.PreserveSharedBorders {
		return simplifyShared(features, opts.Tolerance)
	}
	return simplifyIndependent(features, opts.Tolerance)
}

func simplifyShared(features []Feature, tol float64) ([]Feature, []*TopologyError) {
	topo := buildTopology(features)
	for _, a := range topo.arcs {
		a.simp = simplifyChain(a.orig, tol)
	}

	var issues []*TopologyError
	dirty := make(map[int]bool, len(features))
	queue := make([]int, 0, len(features))
	for fi := range features {
		dirty[fi] = true
		queue = append(queue, fi)
	}
	for len(queue) > 0 {
		fi := queue[0]
		queue = queue[1:]
		dirty[fi] = false

		err := ValidatePolygon(topo.polygon(fi))
		if err == nil {
			continue
		}
		ring := failingRing(err)
		var changed bool
		var touched []int
		if ring >= 0 {
			changed, touched = topo.revertRing(fi, ring)
		}
		if !changed {
			for ri := range topo.rings[fi] {
				c, tt := topo.revertRing(fi, ri)
				changed = changed || c
				touched = append(touched, tt...)
			}
			ring = -1
		}
		if !changed {
			// The input itself is invalid; nothing left to restore.
			continue
		}
		f := features[fi]
		issues = append(issues, &TopologyError{
			Band:      f.Band,
			FeatureID: f.ID,
			Class:     f.Class,
			Ring:      ring,
			Reason:    err.Error(),
		})
		touched = append(touched, fi)
		for _, other := range touched {
			if !dirty[other] {
				dirty[other] = true
				queue = append(queue, other)
			}
		}
	}

	out := make([]Feature, len(features))
	for fi, f := range features {
		out[fi] = Feature{ID: f.ID, Class: f.Class, Band: f.Band, Polygon: topo.polygon(fi)}
	}
	return out, issues
}

func simplifyIndependent(features []Feature, tol float64) ([]Feature, []*TopologyError) {
	var issues []*TopologyError
	out := make([]Feature, len(features))
	for fi, f := range features {
		poly := make(orb.Polygon, len(f.Polygon))
		for ri, r := range f.Polygon {
			poly[ri] = orb.Ring(simplifyChain(r, tol))
		}
		for attempt := 0; attempt <= len(poly); attempt++ {
			err := ValidatePolygon(poly)
			if err == nil {
				break
			}
			ring := failingRing(err)
			if ring < 0 || ringEqual(poly[ring], f.Polygon[ring]) {
				poly = f.Polygon.Clone()
				ring = -1
			} else {
				poly[ring] = f.Polygon[ring].Clone()
			}
			issues = append(issues, &TopologyError{
				Band:      f.Band,
				FeatureID: f.ID,
				Class:     f.Class,
				Ring:      ring,
				Reason:    err.Error(),
			})
			if ring < 0 {
				break
			}
		}
		out[fi] = Feature{ID: f.ID, Class: f.Class, Band: f.Band, Polygon: poly}
	}
	return out, issues
}

// simplifyChain runs Douglas-Peucker over an open chain. A closed chain is
// split at the vertex farthest from its start so both halves keep their
// endpoints.
func simplifyChain(pts []orb.Point, tol float64) []orb.Point {
	if len(pts) <= 2 {
		return append([]orb.Point(nil), pts...)
	}
	last := len(pts) - 1
	if pts[0] != pts[last] {
		return douglasPeucker(pts, tol)
	}
	far, best := 0, -1.0
	for i, p := range pts {
		dx, dy := p[0]-pts[0][0], p[1]-pts[0][1]
		if d := dx*dx + dy*dy; d > best {
			far, best = i, d
		}
	}
	if far == 0 {
		return append([]orb.Point(nil), pts...)
	}
	head := douglasPeucker(pts[:far+1], tol)
	tail := douglasPeucker(pts[far:], tol)
	return append(head, tail[1:]...)
}

func douglasPeucker(pts []orb.Point, tol float64) []orb.Point {
	ls := orb.LineString(pts).Clone()
	return []orb.Point(simplify.DouglasPeucker(tol).LineString(ls))
}

func failingRing(err error) int {
	var bad *ErrInvalidGeometry
	if errors.As(err, &bad) {
		return bad.Ring
	}
	return -1
}

func ringEqual(a, b orb.Ring) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
