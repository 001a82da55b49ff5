package geometry

import (
	"github.com/paulmach/orb"
)

// arc is a maximal chain of ring vertices between two nodes. A node is a
// vertex with other than two distinct neighbours across the whole feature
// set. Rings sharing a border therefore share the same arc.
type arc struct {
	orig     []orb.Point
	simp     []orb.Point
	reverted bool
	users    []ringRef
}

func (a *arc) points() []orb.Point {
	if a.reverted || a.simp == nil {
		return a.orig
	}
	return a.simp
}

type ringRef struct {
	feature int
	ring    int
}

type arcUse struct {
	arc      int
	reversed bool
}

type arcKey struct {
	first, second, last orb.Point
}

// topology splits the rings of a feature set into shared arcs.
type topology struct {
	arcs  []*arc
	rings [][][]arcUse
	index map[arcKey]int
}

func buildTopology(features []Feature) *topology {
	adj := make(map[orb.Point][]orb.Point)
	link := func(p, q orb.Point) {
		for _, x := range adj[p] {
			if x == q {
				return
			}
		}
		adj[p] = append(adj[p], q)
	}
	for _, f := range features {
		for _, r := range f.Polygon {
			n := len(r) - 1
			for i := 0; i < n; i++ {
				p, q := r[i], r[(i+1)%n]
				link(p, q)
				link(q, p)
			}
		}
	}

	t := &topology{
		rings: make([][][]arcUse, len(features)),
		index: make(map[arcKey]int),
	}
	for fi, f := range features {
		t.rings[fi] = make([][]arcUse, len(f.Polygon))
		for ri, r := range f.Polygon {
			t.rings[fi][ri] = t.splitRing(r, func(p orb.Point) bool { return len(adj[p]) != 2 }, ringRef{fi, ri})
		}
	}
	return t
}

func (t *topology) splitRing(r orb.Ring, isNode func(orb.Point) bool, ref ringRef) []arcUse {
	pts := r[:len(r)-1]
	n := len(pts)
	var nodes []int
	for i, p := range pts {
		if isNode(p) {
			nodes = append(nodes, i)
		}
	}

	if len(nodes) == 0 {
		anchor := 0
		for i, p := range pts {
			if lessPoint(p, pts[anchor]) {
				anchor = i
			}
		}
		seq := make([]orb.Point, 0, n+1)
		for i := 0; i <= n; i++ {
			seq = append(seq, pts[(anchor+i)%n])
		}
		return []arcUse{t.addArc(seq, ref)}
	}

	uses := make([]arcUse, 0, len(nodes))
	for k, s := range nodes {
		e := nodes[(k+1)%len(nodes)]
		span := e - s
		if span <= 0 {
			span += n
		}
		seq := make([]orb.Point, 0, span+1)
		for i := 0; i <= span; i++ {
			seq = append(seq, pts[(s+i)%n])
		}
		uses = append(uses, t.addArc(seq, ref))
	}
	return uses
}

// addArc registers seq in its canonical direction, the one whose first
// segment sorts lower, and returns how the ring uses it.
func (t *topology) addArc(seq []orb.Point, ref ringRef) arcUse {
	last := len(seq) - 1
	reversed := comparePair(seq[last], seq[last-1], seq[0], seq[1]) < 0
	if reversed {
		rev := make([]orb.Point, len(seq))
		for i, p := range seq {
			rev[last-i] = p
		}
		seq = rev
	}
	key := arcKey{seq[0], seq[1], seq[last]}
	id, ok := t.index[key]
	if !ok {
		id = len(t.arcs)
		t.index[key] = id
		t.arcs = append(t.arcs, &arc{orig: seq})
	}
	t.arcs[id].users = append(t.arcs[id].users, ref)
	return arcUse{arc: id, reversed: reversed}
}

// ring reassembles a ring from its arcs.
func (t *topology) ring(fi, ri int) orb.Ring {
	var out orb.Ring
	for _, u := range t.rings[fi][ri] {
		pts := t.arcs[u.arc].points()
		for i := range pts {
			p := pts[i]
			if u.reversed {
				p = pts[len(pts)-1-i]
			}
			if len(out) > 0 && i == 0 {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

func (t *topology) polygon(fi int) orb.Polygon {
	p := make(orb.Polygon, len(t.rings[fi]))
	for ri := range p {
		p[ri] = t.ring(fi, ri)
	}
	return p
}

// revertRing restores the input vertices of every arc in a ring and
// returns the features that now need checking again.
func (t *topology) revertRing(fi, ri int) (changed bool, touched []int) {
	for _, u := range t.rings[fi][ri] {
		a := t.arcs[u.arc]
		if a.reverted {
			continue
		}
		a.reverted = true
		changed = true
		for _, ref := range a.users {
			touched = append(touched, ref.feature)
		}
	}
	return changed, touched
}

func lessPoint(a, b orb.Point) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

func comparePair(a1, a2, b1, b2 orb.Point) int {
	switch {
	case a1 != b1:
		if lessPoint(a1, b1) {
			return -1
		}
		return 1
	case a2 != b2:
		if lessPoint(a2, b2) {
			return -1
		}
		return 1
	}
	return 0
}
