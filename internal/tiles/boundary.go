package tiles

import (
	"github.com/beetlebugorg/reliefvt/internal/raster"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// BoundaryTiles returns the tiles on the border of the rectangle of tiles
// covering a raster's extent at zoom z: the first and last rows and the
// first and last columns. These are the tiles a neighbouring dataset would
// also write, so a merge with that dataset must reconcile them.
//
// An extent outside the grid yields an empty set.
func BoundaryTiles(g TileGrid, transform raster.Affine, width, height, z int) maptile.Set {
	return BoundaryTilesOfBound(g, transform.Extent(width, height), z)
}

// BoundaryTilesOfBound is BoundaryTiles for an explicit planar extent.
func BoundaryTilesOfBound(g TileGrid, b orb.Bound, z int) maptile.Set {
	set := maptile.Set{}
	r, ok := g.Range(b, z)
	if !ok {
		return set
	}
	zoom := maptile.Zoom(z)
	for x := r.MinX; x <= r.MaxX; x++ {
		set[maptile.New(x, r.MinY, zoom)] = true
		set[maptile.New(x, r.MaxY, zoom)] = true
	}
	for y := r.MinY; y <= r.MaxY; y++ {
		set[maptile.New(r.MinX, y, zoom)] = true
		set[maptile.New(r.MaxX, y, zoom)] = true
	}
	return set
}

// BoundaryTilesRange unions BoundaryTiles over [zmin, zmax].
func BoundaryTilesRange(g TileGrid, transform raster.Affine, width, height, zmin, zmax int) maptile.Set {
	set := maptile.Set{}
	ext := transform.Extent(width, height)
	for z := zmin; z <= zmax; z++ {
		for t := range BoundaryTilesOfBound(g, ext, z) {
			set[t] = true
		}
	}
	return set
}

// SortedTiles returns the members of set ordered by (z, x, y).
func SortedTiles(set maptile.Set) []maptile.Tile {
	out := make([]maptile.Tile, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	SortTiles(out)
	return out
}

// FormatTiles renders set as sorted "z/x/y" strings.
func FormatTiles(set maptile.Set) []string {
	sorted := SortedTiles(set)
	out := make([]string, len(sorted))
	for i, t := range sorted {
		out[i] = FormatTile(t)
	}
	return out
}
