package raster

// NoDataClass marks a cell with no class.
const NoDataClass int16 = -1

// MaxLevels is the largest class count a ClassRaster can carry.
const MaxLevels = 1 << 15

// ClassRaster is a grid of integer classes sharing the geometry of the
// source Grid. Valid cells hold a class in [0, Levels).
type ClassRaster struct {
	Width     int
	Height    int
	Transform Affine
	Levels    int
	Classes   []int16
}

// NewClassRaster allocates a raster with every cell set to class 0.
func NewClassRaster(width, height int, transform Affine, levels int) *ClassRaster {
	return &ClassRaster{
		Width:     width,
		Height:    height,
		Transform: transform,
		Levels:    levels,
		Classes:   make([]int16, width*height),
	}
}

// Index returns the row-major offset of (col, row).
func (c *ClassRaster) Index(col, row int) int {
	return row*c.Width + col
}

// At returns the class at (col, row).
func (c *ClassRaster) At(col, row int) int16 {
	return c.Classes[c.Index(col, row)]
}

// Set stores a class at (col, row).
func (c *ClassRaster) Set(col, row int, class int16) {
	c.Classes[c.Index(col, row)] = class
}

// Clone returns a deep copy.
func (c *ClassRaster) Clone() *ClassRaster {
	out := *c
	out.Classes = make([]int16, len(c.Classes))
	copy(out.Classes, c.Classes)
	return &out
}

// Histogram counts valid cells per class.
func (c *ClassRaster) Histogram() []int {
	h := make([]int, c.Levels)
	for _, v := range c.Classes {
		if v >= 0 && int(v) < c.Levels {
			h[v]++
		}
	}
	return h
}
