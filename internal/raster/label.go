package raster

// Connectivity selects which neighbours join a cell to a region.
type Connectivity int

const (
	// Four joins cells sharing an edge.
	Four Connectivity = 4
	// Eight also joins cells sharing only a corner.
	Eight Connectivity = 8
)

// NoRegion labels nodata cells.
const NoRegion int32 = -1

// Labels partitions the valid cells of a ClassRaster into connected regions
// of equal class. Region ids are dense and numbered by the row-major
// position of each region's first cell.
type Labels struct {
	Width  int
	Height int
	// Of holds the region id of every cell, NoRegion for nodata.
	Of []int32
	// Class, Area and First are indexed by region id.
	Class []int16
	Area  []int
	First []int
}

// Count returns the number of regions.
func (l *Labels) Count() int {
	return len(l.Class)
}

// At returns the region of (col, row), or NoRegion outside the raster.
func (l *Labels) At(col, row int) int32 {
	if col < 0 || row < 0 || col >= l.Width || row >= l.Height {
		return NoRegion
	}
	return l.Of[row*l.Width+col]
}

// Label finds the connected regions of cr with a single scan and a
// union-find over cell indices. The root of every set is its smallest
// cell index, which makes the numbering independent of merge order.
func Label(cr *ClassRaster, conn Connectivity) *Labels {
	w, h := cr.Width, cr.Height
	parent := make([]int32, w*h)
	for i := range parent {
		parent[i] = int32(i)
	}

	find := func(i int32) int32 {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int32) {
		ra, rb := find(a), find(b)
		switch {
		case ra < rb:
			parent[rb] = ra
		case rb < ra:
			parent[ra] = rb
		}
	}

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			i := cr.Index(col, row)
			c := cr.Classes[i]
			if c == NoDataClass {
				continue
			}
			if col > 0 && cr.Classes[i-1] == c {
				union(int32(i), int32(i-1))
			}
			if row == 0 {
				continue
			}
			up := i - w
			if cr.Classes[up] == c {
				union(int32(i), int32(up))
			}
			if conn != Eight {
				continue
			}
			if col > 0 && cr.Classes[up-1] == c {
				union(int32(i), int32(up-1))
			}
			if col < w-1 && cr.Classes[up+1] == c {
				union(int32(i), int32(up+1))
			}
		}
	}

	l := &Labels{Width: w, Height: h, Of: make([]int32, w*h)}
	for i := range l.Of {
		if cr.Classes[i] == NoDataClass {
			l.Of[i] = NoRegion
			continue
		}
		root := find(int32(i))
		if root == int32(i) {
			l.Of[i] = int32(len(l.Class))
			l.Class = append(l.Class, cr.Classes[i])
			l.Area = append(l.Area, 0)
			l.First = append(l.First, i)
		} else {
			// Roots precede their members in scan order.
			l.Of[i] = l.Of[root]
		}
		l.Area[l.Of[i]]++
	}
	return l
}
