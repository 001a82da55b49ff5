package tiles

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
)

// projector maps planar coordinates into integer tile-local coordinates
// with the origin at the tile's top-left corner and y pointing down.
type projector struct {
	minX, maxY float64
	scale      float64
}

func newProjector(tile orb.Bound, extent uint32) projector {
	return projector{
		minX:  tile.Min[0],
		maxY:  tile.Max[1],
		scale: float64(extent) / (tile.Max[0] - tile.Min[0]),
	}
}

func (p projector) point(pt orb.Point) orb.Point {
	return orb.Point{
		math.Round((pt[0] - p.minX) * p.scale),
		math.Round((p.maxY - pt[1]) * p.scale),
	}
}

// ring projects r and removes repeated points. It returns nil when the
// ring collapses to less than a triangle or to zero area.
func (p projector) ring(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r))
	for _, pt := range r {
		q := p.point(pt)
		if len(out) > 0 && out[len(out)-1] == q {
			continue
		}
		out = append(out, q)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	if len(out) < 3 {
		return nil
	}
	out = append(out, out[0])
	if out.Orientation() == 0 {
		return nil
	}
	return out
}

// polygon projects a clipped polygon. Exterior rings come out with a
// positive shoelace area in tile space and holes negative. ok is false
// when the exterior collapses; dropped counts collapsed holes.
func (p projector) polygon(poly orb.Polygon) (out orb.Polygon, dropped int, ok bool) {
	if len(poly) == 0 {
		return nil, 0, false
	}
	ext := p.ring(poly[0])
	if ext == nil {
		return nil, 0, false
	}
	if ext.Orientation() != orb.CCW {
		ext.Reverse()
	}
	out = orb.Polygon{ext}
	for _, h := range poly[1:] {
		hole := p.ring(h)
		if hole == nil {
			dropped++
			continue
		}
		if hole.Orientation() != orb.CW {
			hole.Reverse()
		}
		out = append(out, hole)
	}
	return out, dropped, true
}

// clipPolygon clips poly to b. Holes clipped away entirely are removed.
// It returns nil when nothing remains.
func clipPolygon(b orb.Bound, poly orb.Polygon) orb.Polygon {
	if !b.Intersects(poly.Bound()) {
		return nil
	}
	clipped := clip.Polygon(b, poly.Clone())
	if len(clipped) == 0 || len(clipped[0]) < 4 {
		return nil
	}
	out := clipped[:1]
	for _, h := range clipped[1:] {
		if len(h) >= 4 {
			out = append(out, h)
		}
	}
	return out
}

// pad grows b by d on every side.
func pad(b orb.Bound, d float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Min[0] - d, b.Min[1] - d},
		Max: orb.Point{b.Max[0] + d, b.Max[1] + d},
	}
}
