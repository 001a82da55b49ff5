package geometry

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// BoundRect converts a bound to an R-tree rectangle. Each side is at least
// minSize long because rtreego rejects zero-length dimensions.
func BoundRect(b orb.Bound, minSize float64) rtreego.Rect {
	point := rtreego.Point{b.Min[0], b.Min[1]}
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w < minSize {
		w = minSize
	}
	if h < minSize {
		h = minSize
	}
	rect, _ := rtreego.NewRect(point, []float64{w, h})
	return rect
}

// boundEpsilon picks a padding size proportional to the magnitude of the
// coordinates in b.
func boundEpsilon(b orb.Bound) float64 {
	m := math.Max(math.Max(math.Abs(b.Min[0]), math.Abs(b.Max[0])), math.Max(math.Abs(b.Min[1]), math.Abs(b.Max[1])))
	if m < 1 {
		m = 1
	}
	return m * 1e-12
}

type segment struct {
	ring int
	idx  int
	a, b orb.Point
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (s *segment) Bounds() rtreego.Rect {
	return s.rect
}

// segmentIndex finds segment pairs whose boxes overlap. Small inputs skip
// the tree and compare every pair.
type segmentIndex struct {
	segs []*segment
	tree *rtreego.Rtree
	eps  float64
}

const segmentTreeThreshold = 64

func newSegmentIndex(rings []orb.Ring) *segmentIndex {
	var all orb.Bound
	first := true
	for _, r := range rings {
		if len(r) == 0 {
			continue
		}
		if first {
			all = r.Bound()
			first = false
		} else {
			all = all.Union(r.Bound())
		}
	}
	si := &segmentIndex{eps: boundEpsilon(all)}
	for ri, r := range rings {
		for i := 0; i+1 < len(r); i++ {
			s := &segment{ring: ri, idx: i, a: r[i], b: r[i+1]}
			s.rect = BoundRect(orb.Bound{Min: r[i], Max: r[i]}.Extend(r[i+1]), si.eps)
			si.segs = append(si.segs, s)
		}
	}
	if len(si.segs) > segmentTreeThreshold {
		si.tree = rtreego.NewTree(2, 25, 50)
		for _, s := range si.segs {
			si.tree.Insert(s)
		}
	}
	return si
}

// pairs calls fn once for every unordered pair of distinct segments whose
// boxes may intersect. Iteration stops when fn returns false.
func (si *segmentIndex) pairs(fn func(s, t *segment) bool) {
	order := make(map[*segment]int, len(si.segs))
	for i, s := range si.segs {
		order[s] = i
	}
	for i, s := range si.segs {
		if si.tree == nil {
			for _, t := range si.segs[i+1:] {
				if !fn(s, t) {
					return
				}
			}
			continue
		}
		for _, hit := range si.tree.SearchIntersect(s.rect) {
			t := hit.(*segment)
			if order[t] <= i {
				continue
			}
			if !fn(s, t) {
				return
			}
		}
	}
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// within reports whether p, collinear with a-b, lies on the closed segment.
func within(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// segmentsTouch reports whether closed segments a-b and c-d share any point.
func segmentsTouch(a, b, c, d orb.Point) bool {
	o1, o2 := sign(orient(a, b, c)), sign(orient(a, b, d))
	o3, o4 := sign(orient(c, d, a)), sign(orient(c, d, b))
	if o1*o2 < 0 && o3*o4 < 0 {
		return true
	}
	return (o1 == 0 && within(a, b, c)) || (o2 == 0 && within(a, b, d)) ||
		(o3 == 0 && within(c, d, a)) || (o4 == 0 && within(c, d, b))
}

// segmentsCross reports a proper crossing or a collinear overlap of
// positive length. Touching at a single point does not count.
func segmentsCross(a, b, c, d orb.Point) bool {
	o1, o2 := sign(orient(a, b, c)), sign(orient(a, b, d))
	o3, o4 := sign(orient(c, d, a)), sign(orient(c, d, b))
	if o1*o2 < 0 && o3*o4 < 0 {
		return true
	}
	if o1 != 0 || o2 != 0 {
		return false
	}
	axis := 0
	if math.Abs(b[1]-a[1]) > math.Abs(b[0]-a[0]) {
		axis = 1
	}
	lo := math.Max(math.Min(a[axis], b[axis]), math.Min(c[axis], d[axis]))
	hi := math.Min(math.Max(a[axis], b[axis]), math.Max(c[axis], d[axis]))
	return hi > lo
}
