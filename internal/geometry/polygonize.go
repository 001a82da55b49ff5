package geometry

import (
	"math"

	"github.com/beetlebugorg/reliefvt/internal/raster"
	"github.com/paulmach/orb"
)

// Edge directions in pixel space, row axis pointing down.
const (
	dirEast = iota
	dirSouth
	dirWest
	dirNorth
)

var dirStep = [4][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

// cellEdge is one directed side of a boundary cell. Edges run clockwise
// around their cell as seen on screen, which keeps the region on the right
// and the neighbour on the left.
type cellEdge struct {
	x, y     int
	dir      int
	neighbor int32
}

func (e cellEdge) end() (int, int) {
	return e.x + dirStep[e.dir][0], e.y + dirStep[e.dir][1]
}

// Polygonize converts every 4-connected region of equal class into a
// polygon feature.
//
// Ring vertices are pixel corners mapped through the raster transform.
// Only corners where the boundary turns or where the region on the other
// side changes are kept, so two features sharing a border produce exactly
// the same vertex sequence along it, in opposite directions. Corners
// touching only diagonally are split, so rings never touch themselves.
// Nodata cells produce no features.
//
// Features are returned in the row-major order of each region's first
// cell. IDs start at 1.
func Polygonize(cr *raster.ClassRaster, band int) ([]Feature, error) {
	if cr.Width <= 0 || cr.Height <= 0 || len(cr.Classes) != cr.Width*cr.Height {
		return nil, &raster.InvalidGridError{Reason: "class raster shape does not match its cells"}
	}
	if cr.Transform.Determinant() == 0 {
		return nil, &raster.InvalidGridError{Reason: "transform is singular"}
	}

	lab := raster.Label(cr, raster.Four)
	edges := make([][]cellEdge, lab.Count())
	for row := 0; row < cr.Height; row++ {
		for col := 0; col < cr.Width; col++ {
			id := lab.Of[cr.Index(col, row)]
			if id == raster.NoRegion {
				continue
			}
			if nb := lab.At(col, row-1); nb != id {
				edges[id] = append(edges[id], cellEdge{col, row, dirEast, nb})
			}
			if nb := lab.At(col+1, row); nb != id {
				edges[id] = append(edges[id], cellEdge{col + 1, row, dirSouth, nb})
			}
			if nb := lab.At(col, row+1); nb != id {
				edges[id] = append(edges[id], cellEdge{col + 1, row + 1, dirWest, nb})
			}
			if nb := lab.At(col-1, row); nb != id {
				edges[id] = append(edges[id], cellEdge{col, row + 1, dirNorth, nb})
			}
		}
	}

	features := make([]Feature, 0, lab.Count())
	for id, es := range edges {
		rings := traceRings(es, cr.Width+1)
		poly := make(orb.Polygon, 0, len(rings))
		for _, corners := range rings {
			ring := make(orb.Ring, 0, len(corners)+1)
			for _, c := range corners {
				ring = append(ring, cr.Transform.Apply(float64(c[0]), float64(c[1])))
			}
			ring = append(ring, ring[0])
			poly = append(poly, ring)
		}
		orientPolygon(poly)
		features = append(features, Feature{
			ID:      uint64(id + 1),
			Class:   int(lab.Class[id]),
			Band:    band,
			Polygon: poly,
		})
	}
	return features, nil
}

// traceRings links the boundary edges of one region into closed corner
// sequences. At a corner with two outgoing edges the walk turns left,
// staying around the cell it is circling rather than crossing to the
// diagonal one.
func traceRings(es []cellEdge, stride int) [][][2]int {
	key := func(x, y int) int { return y*stride + x }
	out := make(map[int][]int, len(es))
	for i, e := range es {
		k := key(e.x, e.y)
		out[k] = append(out[k], i)
	}

	used := make([]bool, len(es))
	var rings [][][2]int
	for start := range es {
		if used[start] {
			continue
		}
		var path []int
		cur := start
		for {
			used[cur] = true
			path = append(path, cur)
			x, y := es[cur].end()
			next := -1
			left := (es[cur].dir + 3) % 4
			for _, cand := range out[key(x, y)] {
				if next < 0 || es[cand].dir == left {
					next = cand
				}
			}
			if next == start || next < 0 || used[next] {
				break
			}
			cur = next
		}

		var corners [][2]int
		for i, ei := range path {
			prev := es[path[(i+len(path)-1)%len(path)]]
			e := es[ei]
			if e.dir != prev.dir || e.neighbor != prev.neighbor {
				corners = append(corners, [2]int{e.x, e.y})
			}
		}
		if len(corners) >= 3 {
			rings = append(rings, corners)
		}
	}
	return rings
}

// orientPolygon moves the ring with the largest area to the front and
// winds it counter-clockwise, with every other ring clockwise.
func orientPolygon(p orb.Polygon) {
	if len(p) == 0 {
		return
	}
	outer, best := 0, -1.0
	for i, r := range p {
		if a := math.Abs(signedArea(r)); a > best {
			outer, best = i, a
		}
	}
	p[0], p[outer] = p[outer], p[0]
	for i, r := range p {
		want := orb.CW
		if i == 0 {
			want = orb.CCW
		}
		if r.Orientation() != want {
			r.Reverse()
		}
	}
}

func signedArea(r orb.Ring) float64 {
	a := 0.0
	for i := 0; i+1 < len(r); i++ {
		a += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return a / 2
}
