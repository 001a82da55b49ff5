package archive

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/beetlebugorg/reliefvt/internal/tiles"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

// MergeOptions controls how tile sets become an archive.
type MergeOptions struct {
	Name        string
	Description string
	// Layer defaults to tiles.DefaultLayer.
	Layer string
	Grid  tiles.TileGrid
	// Bounds is the planar data extent. When empty the union of the
	// lowest-zoom tile bounds is used.
	Bounds orb.Bound
	// Workers bounds concurrent encoding. Zero means NumCPU.
	Workers int
	Logger  zerolog.Logger
}

// Merge encodes the tiles of every set and combines them into one archive.
//
// Sets must come from bands with disjoint zoom ranges. Overlapping ranges
// fail the merge with a *CollisionError, even when the sets have no tiles
// at the shared zooms. With ranges disjoint and every tile checked against
// its own range, no coordinate can be produced twice. A tile outside its
// set's zoom range fails the merge.
func Merge(sets []*tiles.TileSet, enc tiles.Encoder, opts MergeOptions) (*Archive, error) {
	if enc == nil {
		return nil, fmt.Errorf("merge: no tile encoder")
	}

	ordered := make([]*tiles.TileSet, 0, len(sets))
	for _, ts := range sets {
		if ts != nil {
			ordered = append(ordered, ts)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ZoomMin < ordered[j].ZoomMin })
	for i := 1; i < len(ordered); i++ {
		if prev, next := ordered[i-1], ordered[i]; next.ZoomMin <= prev.ZoomMax {
			return nil, rangeCollision(prev, next)
		}
	}

	var pending []*tiles.VectorTile
	bands := make([]BandInfo, 0, len(ordered))
	for _, ts := range ordered {
		coords := ts.Coords()
		for _, c := range coords {
			if int(c.Z) < ts.ZoomMin || int(c.Z) > ts.ZoomMax {
				return nil, fmt.Errorf("band %d: tile %s outside zoom range [%d, %d]",
					ts.Band, tiles.FormatTile(c), ts.ZoomMin, ts.ZoomMax)
			}
			pending = append(pending, ts.Tiles[c])
		}
		bands = append(bands, BandInfo{Band: ts.Band, ZoomMin: ts.ZoomMin, ZoomMax: ts.ZoomMax, Tiles: len(coords)})
	}

	entries, err := encodeAll(pending, enc, opts.Workers)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return tiles.Less(entries[i].Coord, entries[j].Coord) })

	meta := Metadata{
		Name:         opts.Name,
		Description:  opts.Description,
		Layer:        opts.Layer,
		Format:       enc.Format(),
		Compression:  enc.Compression(),
		GeometryType: "polygon",
		Attributes:   map[string]string{tiles.ClassAttribute: "Number"},
		Bands:        bands,
	}
	if meta.Layer == "" {
		meta.Layer = tiles.DefaultLayer
	}
	if len(entries) > 0 {
		meta.MinZoom = int(entries[0].Coord.Z)
		meta.MaxZoom = int(entries[len(entries)-1].Coord.Z)
	}
	meta.Bounds = opts.Bounds
	if meta.Bounds.IsZero() && len(entries) > 0 && opts.Grid.Validate() == nil {
		meta.Bounds = opts.Grid.TileBound(entries[0].Coord)
		for _, e := range entries[1:] {
			if int(e.Coord.Z) != meta.MinZoom {
				break
			}
			meta.Bounds = meta.Bounds.Union(opts.Grid.TileBound(e.Coord))
		}
	}
	meta.LonLatBounds, meta.HasLonLat = lonLatBounds(opts.Grid, meta.Bounds)

	opts.Logger.Debug().
		Int("tiles", len(entries)).
		Int("bands", len(bands)).
		Int("minzoom", meta.MinZoom).
		Int("maxzoom", meta.MaxZoom).
		Msg("archive merged")

	return newArchive(meta, entries), nil
}

// rangeCollision reports sets whose zoom ranges intersect. With ordered
// by ZoomMin, any overlap shows up between neighbours, and next.ZoomMin is
// the lowest shared zoom.
func rangeCollision(prev, next *tiles.TileSet) *CollisionError {
	err := &CollisionError{
		Bands:  [2]int{prev.Band, next.Band},
		Zoom:   next.ZoomMin,
		Ranges: [2][2]int{{prev.ZoomMin, prev.ZoomMax}, {next.ZoomMin, next.ZoomMax}},
	}
	for _, ts := range []*tiles.TileSet{prev, next} {
		for c := range ts.Tiles {
			if int(c.Z) != err.Zoom {
				continue
			}
			if !err.HasCoord || tiles.Less(c, err.Coord) {
				err.Coord, err.HasCoord = c, true
			}
		}
	}
	return err
}

// encodeAll encodes tiles with a worker pool.
func encodeAll(pending []*tiles.VectorTile, enc tiles.Encoder, workers int) ([]Entry, error) {
	if len(pending) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(pending) {
		workers = len(pending)
	}

	type encoded struct {
		entry Entry
		err   error
	}

	jobs := make(chan *tiles.VectorTile, len(pending))
	results := make(chan encoded, len(pending))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for vt := range jobs {
				data, err := enc.Encode(vt)
				if err != nil {
					err = fmt.Errorf("encode tile %s: %w", tiles.FormatTile(vt.Coord), err)
				}
				results <- encoded{entry: Entry{Coord: vt.Coord, Payload: data}, err: err}
			}
		}()
	}

	for _, vt := range pending {
		jobs <- vt
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	entries := make([]Entry, 0, len(pending))
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		entries = append(entries, res.entry)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return entries, nil
}
