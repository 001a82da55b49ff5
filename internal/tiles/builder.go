package tiles

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/beetlebugorg/reliefvt/internal/geometry"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog"
)

// Defaults for Builder fields left at zero.
const (
	DefaultExtent = 4096
	DefaultBuffer = 64
)

// TileFeature is every polygon of one class within a tile, in tile-local
// coordinates.
type TileFeature struct {
	Class    int
	Geometry orb.MultiPolygon
}

// VectorTile is the decoded content of one tile.
type VectorTile struct {
	Coord    maptile.Tile
	Band     int
	Extent   uint32
	Features []TileFeature
}

// BuildStats counts what happened to geometry while cutting tiles.
type BuildStats struct {
	Tiles int
	// Features counts per-class tile features written.
	Features int
	// Candidates counts index hits; some miss the tile after clipping.
	Candidates int
	// CollapsedPolygons counts clipped polygons that vanished when rounded
	// to the tile grid. CollapsedHoles counts holes lost the same way.
	CollapsedPolygons int
	CollapsedHoles    int
	// DissolvedEdges counts edge pairs removed when merging same-class polygons.
	DissolvedEdges int
	TilesPerZoom   map[int]int
}

func (s *BuildStats) add(o BuildStats) {
	s.Tiles += o.Tiles
	s.Features += o.Features
	s.Candidates += o.Candidates
	s.CollapsedPolygons += o.CollapsedPolygons
	s.CollapsedHoles += o.CollapsedHoles
	s.DissolvedEdges += o.DissolvedEdges
}

// TileSet is the output of one band.
type TileSet struct {
	Band    int
	ZoomMin int
	ZoomMax int
	Tiles   map[maptile.Tile]*VectorTile
	Stats   BuildStats
}

// Coords returns the tile coordinates in (z, x, y) order.
func (ts *TileSet) Coords() []maptile.Tile {
	out := make([]maptile.Tile, 0, len(ts.Tiles))
	for c := range ts.Tiles {
		out = append(out, c)
	}
	SortTiles(out)
	return out
}

// Builder cuts a band's features into vector tiles.
type Builder struct {
	Grid TileGrid
	Band int
	// Extent is the tile coordinate range, DefaultExtent if zero.
	Extent uint32
	// Buffer is the margin around each tile in tile units, DefaultBuffer
	// if zero. Set NoBuffer to clip exactly at the tile edge.
	Buffer   uint32
	NoBuffer bool
	// Workers bounds concurrent tile construction. Zero means NumCPU.
	Workers int
	// MaxTilesPerZoom fails a zoom whose tile range is larger. Zero means no limit.
	MaxTilesPerZoom int
	Logger          zerolog.Logger
}

func (b *Builder) extent() uint32 {
	if b.Extent == 0 {
		return DefaultExtent
	}
	return b.Extent
}

func (b *Builder) buffer() uint32 {
	if b.NoBuffer {
		return 0
	}
	if b.Buffer == 0 {
		return DefaultBuffer
	}
	return b.Buffer
}

// Build produces every non-empty tile intersecting the features for each
// zoom in [zoomMin, zoomMax].
//
// Tiles are cut in parallel. Within a tile, features are clipped to the
// buffered tile bound, projected to integer tile coordinates, and merged
// per class so each class appears once. Tiles left with no geometry are
// omitted.
func (b *Builder) Build(features []geometry.Feature, zoomMin, zoomMax int) (*TileSet, error) {
	if zoomMin < 0 || zoomMax > MaxZoom || zoomMin > zoomMax {
		return nil, &ZoomError{Band: b.Band, Zoom: zoomMin, Err: fmt.Errorf("invalid zoom range [%d, %d]", zoomMin, zoomMax)}
	}
	if err := b.Grid.Validate(); err != nil {
		return nil, err
	}

	ts := &TileSet{
		Band:    b.Band,
		ZoomMin: zoomMin,
		ZoomMax: zoomMax,
		Tiles:   make(map[maptile.Tile]*VectorTile),
		Stats:   BuildStats{TilesPerZoom: make(map[int]int)},
	}
	if len(features) == 0 {
		return ts, nil
	}

	idx := newFeatureIndex(features)
	extent := features[0].Bound()
	for _, f := range features[1:] {
		extent = extent.Union(f.Bound())
	}

	for z := zoomMin; z <= zoomMax; z++ {
		r, ok := b.Grid.Range(extent, z)
		if !ok {
			continue
		}
		if b.MaxTilesPerZoom > 0 && r.Count() > b.MaxTilesPerZoom {
			return nil, &ZoomError{Band: b.Band, Zoom: z, Err: &TooManyTilesError{Zoom: z, Tiles: r.Count(), Limit: b.MaxTilesPerZoom}}
		}

		built, stats, err := b.buildZoom(idx, r)
		if err != nil {
			return nil, &ZoomError{Band: b.Band, Zoom: z, Err: err}
		}
		for _, vt := range built {
			ts.Tiles[vt.Coord] = vt
		}
		ts.Stats.add(stats)
		ts.Stats.TilesPerZoom[z] = len(built)

		b.Logger.Debug().
			Int("band", b.Band).
			Int("zoom", z).
			Int("range", r.Count()).
			Int("tiles", len(built)).
			Int("collapsed", stats.CollapsedPolygons).
			Msg("zoom built")
	}
	return ts, nil
}

// buildZoom cuts every tile of r using a worker pool and returns the
// non-empty ones in (x, y) order.
func (b *Builder) buildZoom(idx *featureIndex, r TileRange) ([]*VectorTile, BuildStats, error) {
	coords := r.Tiles()

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(coords) {
		workers = len(coords)
	}

	type tileResult struct {
		tile  *VectorTile
		stats BuildStats
		err   error
	}

	jobs := make(chan maptile.Tile, len(coords))
	results := make(chan tileResult, len(coords))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for coord := range jobs {
				vt, stats, err := b.safeBuildTile(idx, coord)
				results <- tileResult{tile: vt, stats: stats, err: err}
			}
		}()
	}

	for _, c := range coords {
		jobs <- c
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []*VectorTile
	var stats BuildStats
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		stats.add(res.stats)
		if res.tile != nil {
			out = append(out, res.tile)
		}
	}
	if firstErr != nil {
		return nil, stats, firstErr
	}

	sort.Slice(out, func(i, j int) bool { return Less(out[i].Coord, out[j].Coord) })
	return out, stats, nil
}

// safeBuildTile turns a panic inside a worker into an error so one bad
// tile fails its band instead of the process.
func (b *Builder) safeBuildTile(idx *featureIndex, coord maptile.Tile) (vt *VectorTile, stats BuildStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tile %s: panic: %v", FormatTile(coord), r)
		}
	}()
	vt, stats = b.buildTile(idx, coord)
	return vt, stats, nil
}

func (b *Builder) buildTile(idx *featureIndex, coord maptile.Tile) (*VectorTile, BuildStats) {
	var stats BuildStats
	extent := b.extent()
	bound := b.Grid.TileBound(coord)
	unit := (bound.Max[0] - bound.Min[0]) / float64(extent)
	clipBound := pad(bound, unit*float64(b.buffer()))
	proj := newProjector(bound, extent)

	byClass := make(map[int][]orb.Polygon)
	for _, i := range idx.Query(clipBound) {
		stats.Candidates++
		f := idx.features[i]
		clipped := clipPolygon(clipBound, f.Polygon)
		if clipped == nil {
			continue
		}
		local, holes, ok := proj.polygon(clipped)
		stats.CollapsedHoles += holes
		if !ok {
			stats.CollapsedPolygons++
			continue
		}
		byClass[f.Class] = append(byClass[f.Class], local)
	}
	if len(byClass) == 0 {
		return nil, stats
	}

	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	vt := &VectorTile{Coord: coord, Band: b.Band, Extent: extent}
	for _, c := range classes {
		mp, dissolved := coalesce(byClass[c])
		stats.DissolvedEdges += dissolved
		if len(mp) == 0 {
			continue
		}
		vt.Features = append(vt.Features, TileFeature{Class: c, Geometry: mp})
	}
	if len(vt.Features) == 0 {
		return nil, stats
	}
	stats.Tiles = 1
	stats.Features = len(vt.Features)
	return vt, stats
}
