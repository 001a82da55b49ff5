package raster

import (
	"container/heap"
)

// SieveStats summarizes one sieve pass.
type SieveStats struct {
	Threshold int
	// RegionsBefore and RegionsAfter count 8-connected regions.
	RegionsBefore int
	RegionsAfter  int
	// Merged counts small regions absorbed by a neighbour.
	Merged int
	// Isolated counts small regions left alone because nothing touches them.
	Isolated int
	// CellsChanged counts cells whose class was rewritten.
	CellsChanged int
}

// sieveRegion is a node of the region adjacency graph. Merged regions point
// at their surviving root through parent.
type sieveRegion struct {
	class     int16
	area      int
	first     int
	parent    int32
	version   int
	neighbors map[int32]struct{}
}

// Sieve removes 8-connected regions smaller than threshold cells.
//
// Regions are visited smallest first (ties by first cell in row-major
// order). Each is merged into its largest neighbour, ties broken by lowest
// class and then by first cell. The merged region also joins every other
// neighbour of the same class, so regions stay maximal. A region that is
// still too small goes back into the queue. Regions with no valid
// neighbour are kept as they are.
//
// The source is never modified. Running Sieve again on the result with the
// same threshold returns an identical raster.
func Sieve(src *ClassRaster, threshold int) (*ClassRaster, SieveStats) {
	out := src.Clone()
	lab := Label(src, Eight)
	stats := SieveStats{
		Threshold:     threshold,
		RegionsBefore: lab.Count(),
		RegionsAfter:  lab.Count(),
	}
	if threshold <= 1 || lab.Count() == 0 {
		return out, stats
	}

	regs := make([]sieveRegion, lab.Count())
	for id := range regs {
		regs[id] = sieveRegion{
			class:  lab.Class[id],
			area:   lab.Area[id],
			first:  lab.First[id],
			parent: int32(id),
		}
	}
	link := func(a, b int32) {
		if regs[a].neighbors == nil {
			regs[a].neighbors = make(map[int32]struct{})
		}
		regs[a].neighbors[b] = struct{}{}
	}

	// Forward half of the 8-neighbourhood visits every adjacent pair once.
	w, h := src.Width, src.Height
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			a := lab.Of[src.Index(col, row)]
			if a == NoRegion {
				continue
			}
			for _, d := range [4][2]int{{1, 0}, {-1, 1}, {0, 1}, {1, 1}} {
				b := lab.At(col+d[0], row+d[1])
				if b == NoRegion || b == a {
					continue
				}
				link(a, b)
				link(b, a)
			}
		}
	}

	find := func(i int32) int32 {
		for regs[i].parent != i {
			regs[i].parent = regs[regs[i].parent].parent
			i = regs[i].parent
		}
		return i
	}

	q := &sieveQueue{}
	for id := range regs {
		if regs[id].area < threshold {
			q.items = append(q.items, sieveItem{id: int32(id), area: regs[id].area, first: regs[id].first})
		}
	}
	heap.Init(q)

	for q.Len() > 0 {
		it := heap.Pop(q).(sieveItem)
		r := &regs[it.id]
		if r.parent != it.id || r.version != it.version || r.area >= threshold {
			continue
		}

		target := int32(-1)
		for nb := range r.neighbors {
			nb = find(nb)
			if nb == it.id {
				continue
			}
			if target < 0 || betterTarget(&regs[nb], &regs[target]) {
				target = nb
			}
		}
		if target < 0 {
			stats.Isolated++
			continue
		}
		stats.Merged++

		class := regs[target].class
		absorbed := map[int32]struct{}{target: {}, it.id: {}}
		members := []int32{it.id}
		for nb := range r.neighbors {
			nb = find(nb)
			if _, dup := absorbed[nb]; dup || regs[nb].class != class {
				continue
			}
			absorbed[nb] = struct{}{}
			members = append(members, nb)
		}

		t := &regs[target]
		merged := make(map[int32]struct{}, len(t.neighbors))
		for nb := range t.neighbors {
			merged[find(nb)] = struct{}{}
		}
		for _, m := range members {
			mr := &regs[m]
			t.area += mr.area
			if mr.first < t.first {
				t.first = mr.first
			}
			for nb := range mr.neighbors {
				merged[find(nb)] = struct{}{}
			}
			mr.parent = target
			mr.neighbors = nil
		}
		for a := range absorbed {
			delete(merged, a)
		}
		t.neighbors = merged
		t.version++
		stats.RegionsAfter -= len(members)
		if t.area < threshold {
			heap.Push(q, sieveItem{id: target, area: t.area, first: t.first, version: t.version})
		}
	}

	for i, id := range lab.Of {
		if id == NoRegion {
			continue
		}
		c := regs[find(id)].class
		if out.Classes[i] != c {
			out.Classes[i] = c
			stats.CellsChanged++
		}
	}
	return out, stats
}

// betterTarget orders merge candidates: larger area, then lower class,
// then earlier first cell.
func betterTarget(a, b *sieveRegion) bool {
	if a.area != b.area {
		return a.area > b.area
	}
	if a.class != b.class {
		return a.class < b.class
	}
	return a.first < b.first
}

type sieveItem struct {
	id      int32
	area    int
	first   int
	version int
}

// sieveQueue is a min-heap on (area, first).
type sieveQueue struct {
	items []sieveItem
}

func (q *sieveQueue) Len() int { return len(q.items) }

func (q *sieveQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.area != b.area {
		return a.area < b.area
	}
	return a.first < b.first
}

func (q *sieveQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *sieveQueue) Push(x any) { q.items = append(q.items, x.(sieveItem)) }

func (q *sieveQueue) Pop() any {
	n := len(q.items)
	it := q.items[n-1]
	q.items = q.items[:n-1]
	return it
}
