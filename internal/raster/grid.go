package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Affine maps pixel corner coordinates (col, row) to planar coordinates.
// Field order follows the usual six-term geotransform:
//
//	x = OriginX + col*PixelWidth + row*RowRotation
//	y = OriginY + col*ColRotation + row*PixelHeight
//
// For a north-up raster PixelHeight is negative and both rotations are zero.
type Affine struct {
	OriginX     float64
	PixelWidth  float64
	RowRotation float64
	OriginY     float64
	ColRotation float64
	PixelHeight float64
}

// NorthUp returns the transform of an unrotated raster whose top-left corner
// sits at (originX, originY) with square cells of the given size.
func NorthUp(originX, originY, cellSize float64) Affine {
	return Affine{
		OriginX:     originX,
		PixelWidth:  cellSize,
		OriginY:     originY,
		PixelHeight: -cellSize,
	}
}

// Apply maps a pixel corner to planar coordinates.
func (a Affine) Apply(col, row float64) orb.Point {
	return orb.Point{
		a.OriginX + col*a.PixelWidth + row*a.RowRotation,
		a.OriginY + col*a.ColRotation + row*a.PixelHeight,
	}
}

// Determinant returns the signed area scale of the transform.
func (a Affine) Determinant() float64 {
	return a.PixelWidth*a.PixelHeight - a.RowRotation*a.ColRotation
}

// Extent returns the planar bounding box of a width x height raster.
func (a Affine) Extent(width, height int) orb.Bound {
	w, h := float64(width), float64(height)
	b := orb.Bound{Min: a.Apply(0, 0), Max: a.Apply(0, 0)}
	b = b.Extend(a.Apply(w, 0))
	b = b.Extend(a.Apply(0, h))
	b = b.Extend(a.Apply(w, h))
	return b
}

// Grid is a georeferenced raster of continuous values.
// Samples are stored row-major, row 0 at the top.
type Grid struct {
	Width     int
	Height    int
	Transform Affine
	NoData    float64
	HasNoData bool
	Samples   []float64
}

// NewGrid allocates a zero-filled grid.
func NewGrid(width, height int, transform Affine) *Grid {
	return &Grid{
		Width:     width,
		Height:    height,
		Transform: transform,
		Samples:   make([]float64, width*height),
	}
}

// At returns the sample at (col, row).
func (g *Grid) At(col, row int) float64 {
	return g.Samples[row*g.Width+col]
}

// Set stores a sample at (col, row).
func (g *Grid) Set(col, row int, v float64) {
	g.Samples[row*g.Width+col] = v
}

// IsNoData reports whether v carries no information. NaN and infinities are
// always treated as nodata; the sentinel only when HasNoData is set.
func (g *Grid) IsNoData(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	return g.HasNoData && v == g.NoData
}

// Extent returns the planar bounding box of the grid.
func (g *Grid) Extent() orb.Bound {
	return g.Transform.Extent(g.Width, g.Height)
}

// Validate checks the grid shape and transform.
func (g *Grid) Validate() error {
	if g == nil {
		return &InvalidGridError{Reason: "grid is nil"}
	}
	if g.Width <= 0 || g.Height <= 0 {
		return &InvalidGridError{Reason: fmt.Sprintf("dimensions %dx%d must be positive", g.Width, g.Height)}
	}
	if len(g.Samples) != g.Width*g.Height {
		return &InvalidGridError{
			Reason: fmt.Sprintf("have %d samples, want %d for %dx%d", len(g.Samples), g.Width*g.Height, g.Width, g.Height),
		}
	}
	if g.Transform.Determinant() == 0 {
		return &InvalidGridError{Reason: "transform is singular"}
	}
	return nil
}
