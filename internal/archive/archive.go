package archive

import (
	"github.com/beetlebugorg/reliefvt/internal/tiles"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Entry is one encoded tile.
type Entry struct {
	Coord   maptile.Tile
	Payload []byte
}

// BandInfo records which zoom levels one band contributed.
type BandInfo struct {
	Band    int
	ZoomMin int
	ZoomMax int
	Tiles   int
}

// Metadata describes an archive as a whole.
type Metadata struct {
	Name        string
	Description string
	Layer       string
	// Format and Compression come from the tile encoder.
	Format       string
	Compression  string
	GeometryType string
	// Attributes maps feature property names to their value type.
	Attributes map[string]string
	// MinZoom and MaxZoom are the zoom levels actually present.
	MinZoom int
	MaxZoom int
	// Bounds is the planar data extent. LonLatBounds is set only for
	// Web Mercator grids.
	Bounds       orb.Bound
	LonLatBounds orb.Bound
	HasLonLat    bool
	Bands        []BandInfo
}

// Center returns the midpoint of LonLatBounds at MinZoom.
func (m Metadata) Center() (orb.Point, int) {
	return m.LonLatBounds.Center(), m.MinZoom
}

// Archive is an immutable, ordered collection of encoded tiles. Entries
// are sorted by (z, x, y) and coordinates are unique.
type Archive struct {
	meta    Metadata
	entries []Entry
	index   map[maptile.Tile]int
}

func newArchive(meta Metadata, entries []Entry) *Archive {
	a := &Archive{meta: meta, entries: entries, index: make(map[maptile.Tile]int, len(entries))}
	for i, e := range entries {
		a.index[e.Coord] = i
	}
	return a
}

// Metadata returns the archive metadata.
func (a *Archive) Metadata() Metadata {
	return a.meta
}

// Len returns the number of tiles.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entries returns the tiles in (z, x, y) order. The slice is a copy;
// payloads are shared and must not be modified.
func (a *Archive) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Coords returns the tile coordinates in (z, x, y) order.
func (a *Archive) Coords() []maptile.Tile {
	out := make([]maptile.Tile, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Coord
	}
	return out
}

// Tile returns the payload stored at c.
func (a *Archive) Tile(c maptile.Tile) ([]byte, bool) {
	i, ok := a.index[c]
	if !ok {
		return nil, false
	}
	return a.entries[i].Payload, true
}

// Contains reports whether c has a tile.
func (a *Archive) Contains(c maptile.Tile) bool {
	_, ok := a.index[c]
	return ok
}

// TileJSON returns a TileJSON-style description of the archive, shared by
// the sinks that embed JSON metadata.
func (a *Archive) TileJSON() map[string]any {
	m := a.meta
	fields := make(map[string]string, len(m.Attributes))
	for k, v := range m.Attributes {
		fields[k] = v
	}
	doc := map[string]any{
		"name":        m.Name,
		"description": m.Description,
		"format":      m.Format,
		"type":        "overlay",
		"minzoom":     m.MinZoom,
		"maxzoom":     m.MaxZoom,
		"vector_layers": []map[string]any{{
			"id":      m.Layer,
			"fields":  fields,
			"minzoom": m.MinZoom,
			"maxzoom": m.MaxZoom,
		}},
	}
	if m.HasLonLat {
		b := m.LonLatBounds
		doc["bounds"] = []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
		c, z := m.Center()
		doc["center"] = []float64{c[0], c[1], float64(z)}
	}
	if m.Compression != "" && m.Compression != "none" {
		doc["compression"] = m.Compression
	}
	bands := make([]map[string]int, 0, len(m.Bands))
	for _, b := range m.Bands {
		bands = append(bands, map[string]int{"band": b.Band, "minzoom": b.ZoomMin, "maxzoom": b.ZoomMax, "tiles": b.Tiles})
	}
	doc["bands"] = bands
	return doc
}

// lonLatBounds converts a planar extent for grids that are Web Mercator.
func lonLatBounds(g tiles.TileGrid, b orb.Bound) (orb.Bound, bool) {
	if g != tiles.WebMercator {
		return orb.Bound{}, false
	}
	ll := tiles.MercatorBoundToLonLat(b)
	clampLon := func(v float64) float64 { return max(-180, min(180, v)) }
	clampLat := func(v float64) float64 { return max(-85.0511287798, min(85.0511287798, v)) }
	return orb.Bound{
		Min: orb.Point{clampLon(ll.Min[0]), clampLat(ll.Min[1])},
		Max: orb.Point{clampLon(ll.Max[0]), clampLat(ll.Max[1])},
	}, true
}
