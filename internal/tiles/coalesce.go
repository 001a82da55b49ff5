package tiles

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type directedEdge struct {
	from, to orb.Point
}

// coalesce merges same-class polygons of one tile into a multipolygon.
//
// All rings are in tile space with the interior on the left. An edge and
// its exact reverse cancel, which dissolves borders shared by two polygons
// and removes the zero-width seams left by clipping. The remaining edges
// are relinked into rings. When relinking cannot produce a consistent
// result the polygons are returned unchanged.
func coalesce(polys []orb.Polygon) (orb.MultiPolygon, int) {
	count := make(map[directedEdge]int)
	var order []directedEdge
	for _, p := range polys {
		for _, r := range p {
			for i := 0; i+1 < len(r); i++ {
				e := directedEdge{r[i], r[i+1]}
				if count[e] == 0 {
					order = append(order, e)
				}
				count[e]++
			}
		}
	}

	cancelled := 0
	for _, e := range order {
		rev := directedEdge{e.to, e.from}
		n := min(count[e], count[rev])
		if n == 0 {
			continue
		}
		count[e] -= n
		count[rev] -= n
		cancelled += n
	}
	if cancelled == 0 {
		return sortedMulti(polys), 0
	}

	outgoing := make(map[orb.Point][]orb.Point)
	remaining := 0
	for _, e := range order {
		for i := 0; i < count[e]; i++ {
			outgoing[e.from] = append(outgoing[e.from], e.to)
			remaining++
		}
	}
	if remaining == 0 {
		return nil, cancelled
	}

	rings, ok := relink(outgoing, order, count)
	if !ok {
		return sortedMulti(polys), 0
	}
	merged, ok := assemble(rings)
	if !ok {
		return sortedMulti(polys), 0
	}
	return sortedMulti(merged), cancelled
}

// relink walks the remaining edges into closed rings. At a vertex with
// several ways out it takes the sharpest left turn, which keeps rings
// touching at a point separate.
func relink(outgoing map[orb.Point][]orb.Point, order []directedEdge, count map[directedEdge]int) ([]orb.Ring, bool) {
	var rings []orb.Ring
	for _, e := range order {
		for count[e] > 0 {
			ring := orb.Ring{e.from}
			prev, cur := e.from, e.to
			take(outgoing, count, prev, cur)
			for steps := 0; ; steps++ {
				ring = append(ring, cur)
				if cur == ring[0] {
					break
				}
				if steps > len(count)*2 {
					return nil, false
				}
				next, ok := leftmost(outgoing[cur], prev, cur)
				if !ok {
					return nil, false
				}
				take(outgoing, count, cur, next)
				prev, cur = cur, next
			}
			if len(ring) >= 4 && ring.Orientation() != 0 {
				rings = append(rings, ring)
			}
		}
	}
	return rings, true
}

func take(outgoing map[orb.Point][]orb.Point, count map[directedEdge]int, from, to orb.Point) {
	count[directedEdge{from, to}]--
	outs := outgoing[from]
	for i, p := range outs {
		if p == to {
			outgoing[from] = append(outs[:i], outs[i+1:]...)
			return
		}
	}
}

// leftmost picks the candidate with the largest counter-clockwise turn
// from the incoming direction. A full reversal is the last resort.
func leftmost(cands []orb.Point, prev, cur orb.Point) (orb.Point, bool) {
	if len(cands) == 0 {
		return orb.Point{}, false
	}
	inAngle := math.Atan2(cur[1]-prev[1], cur[0]-prev[0])
	best, bestTurn := cands[0], math.Inf(-1)
	for _, c := range cands {
		turn := math.Atan2(c[1]-cur[1], c[0]-cur[0]) - inAngle
		for turn <= -math.Pi {
			turn += 2 * math.Pi
		}
		for turn > math.Pi {
			turn -= 2 * math.Pi
		}
		if c == prev {
			turn = -math.Pi
		}
		if turn > bestTurn {
			best, bestTurn = c, turn
		}
	}
	return best, true
}

// assemble groups rings into polygons: positive rings are exteriors and
// each negative ring becomes a hole of the smallest exterior containing it.
func assemble(rings []orb.Ring) ([]orb.Polygon, bool) {
	var exteriors, holes []orb.Ring
	for _, r := range rings {
		if r.Orientation() == orb.CCW {
			exteriors = append(exteriors, r)
		} else {
			holes = append(holes, r)
		}
	}
	if len(exteriors) == 0 {
		return nil, false
	}
	polys := make([]orb.Polygon, len(exteriors))
	for i, e := range exteriors {
		polys[i] = orb.Polygon{e}
	}
	for _, h := range holes {
		owner, ownerArea := -1, math.Inf(1)
		probe := interiorProbe(h)
		for i, e := range exteriors {
			if !e.Bound().Contains(probe) || !planar.RingContains(e, probe) {
				continue
			}
			if a := math.Abs(planar.Area(e)); a < ownerArea {
				owner, ownerArea = i, a
			}
		}
		if owner < 0 {
			return nil, false
		}
		polys[owner] = append(polys[owner], h)
	}
	return polys, true
}

// interiorProbe returns the midpoint of a ring's first segment nudged a
// quarter unit towards the polygon side, which for a hole lies just
// outside the hole and inside its owner.
func interiorProbe(r orb.Ring) orb.Point {
	a, b := r[0], r[1]
	dx, dy := b[0]-a[0], b[1]-a[1]
	l := math.Hypot(dx, dy)
	mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	// Left normal; holes keep the polygon interior on their left.
	return orb.Point{mid[0] - dy/l*0.25, mid[1] + dx/l*0.25}
}

// sortedMulti orders polygons by the lowest point of their exterior so
// output does not depend on input order.
func sortedMulti(polys []orb.Polygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, len(polys))
	copy(out, polys)
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := out[i].Bound().Min, out[j].Bound().Min
		if bi[1] != bj[1] {
			return bi[1] < bj[1]
		}
		return bi[0] < bj[0]
	})
	return out
}
