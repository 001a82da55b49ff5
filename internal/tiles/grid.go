package tiles

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest zoom level addressable by a tile coordinate.
const MaxZoom = 30

// MercatorHalfWorld is half the width of the spherical Web Mercator plane in metres.
const MercatorHalfWorld = 20037508.342789244

// TileGrid is a square quadtree over a planar projection. Zoom 0 is a
// single tile of side Size whose top-left corner is (OriginX, OriginY).
// Row numbers grow downward.
type TileGrid struct {
	OriginX float64
	OriginY float64
	Size    float64
}

// WebMercator is the standard XYZ grid over EPSG:3857.
var WebMercator = TileGrid{
	OriginX: -MercatorHalfWorld,
	OriginY: MercatorHalfWorld,
	Size:    2 * MercatorHalfWorld,
}

// Validate checks that the grid has a usable size.
func (g TileGrid) Validate() error {
	if !(g.Size > 0) || math.IsInf(g.Size, 0) {
		return fmt.Errorf("tile grid size %g must be positive and finite", g.Size)
	}
	return nil
}

// TileSize returns the side length of one tile at zoom z.
func (g TileGrid) TileSize(z int) float64 {
	return g.Size / float64(uint64(1)<<uint(z))
}

// TileBound returns the planar extent of a tile.
func (g TileGrid) TileBound(t maptile.Tile) orb.Bound {
	size := g.TileSize(int(t.Z))
	minX := g.OriginX + float64(t.X)*size
	maxY := g.OriginY - float64(t.Y)*size
	return orb.Bound{
		Min: orb.Point{minX, maxY - size},
		Max: orb.Point{minX + size, maxY},
	}
}

// Range returns the tiles at zoom z whose extent intersects b, clamped to
// the grid. ok is false when b lies entirely outside the grid.
func (g TileGrid) Range(b orb.Bound, z int) (r TileRange, ok bool) {
	n := float64(uint64(1) << uint(z))
	size := g.TileSize(z)
	fx0 := (b.Min[0] - g.OriginX) / size
	fx1 := (b.Max[0] - g.OriginX) / size
	fy0 := (g.OriginY - b.Max[1]) / size
	fy1 := (g.OriginY - b.Min[1]) / size
	if fx1 < 0 || fy1 < 0 || fx0 > n || fy0 > n {
		return TileRange{}, false
	}

	clamp := func(v float64) uint32 {
		switch {
		case v < 0:
			return 0
		case v > n-1:
			return uint32(n - 1)
		}
		return uint32(v)
	}
	r = TileRange{
		Z:    z,
		MinX: clamp(math.Floor(fx0)),
		MaxX: clamp(math.Ceil(fx1) - 1),
		MinY: clamp(math.Floor(fy0)),
		MaxY: clamp(math.Ceil(fy1) - 1),
	}
	if r.MaxX < r.MinX {
		r.MaxX = r.MinX
	}
	if r.MaxY < r.MinY {
		r.MaxY = r.MinY
	}
	return r, true
}

// TileRange is an inclusive rectangle of tiles at one zoom level.
type TileRange struct {
	Z          int
	MinX, MaxX uint32
	MinY, MaxY uint32
}

// Count returns the number of tiles in the range.
func (r TileRange) Count() int {
	return int(r.MaxX-r.MinX+1) * int(r.MaxY-r.MinY+1)
}

// Tiles lists the range in row-major order.
func (r TileRange) Tiles() []maptile.Tile {
	out := make([]maptile.Tile, 0, r.Count())
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			out = append(out, maptile.New(x, y, maptile.Zoom(r.Z)))
		}
	}
	return out
}

// Less orders coordinates by zoom, then x, then y.
func Less(a, b maptile.Tile) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// SortTiles sorts coordinates in place by (z, x, y).
func SortTiles(ts []maptile.Tile) {
	sort.Slice(ts, func(i, j int) bool { return Less(ts[i], ts[j]) })
}

// FormatTile renders a coordinate as "z/x/y".
func FormatTile(t maptile.Tile) string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// FlipY converts between XYZ and TMS row numbering.
func FlipY(t maptile.Tile) uint32 {
	return (uint32(1) << t.Z) - t.Y - 1
}

// MercatorToLonLat converts spherical Web Mercator metres to degrees.
func MercatorToLonLat(p orb.Point) orb.Point {
	lon := p[0] / MercatorHalfWorld * 180
	lat := p[1] / MercatorHalfWorld * 180
	lat = 180 / math.Pi * (2*math.Atan(math.Exp(lat*math.Pi/180)) - math.Pi/2)
	return orb.Point{lon, lat}
}

// MercatorBoundToLonLat converts a Web Mercator bound to degrees.
func MercatorBoundToLonLat(b orb.Bound) orb.Bound {
	return orb.Bound{Min: MercatorToLonLat(b.Min), Max: MercatorToLonLat(b.Max)}
}
