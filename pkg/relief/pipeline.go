package relief

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/beetlebugorg/reliefvt/internal/archive"
	"github.com/beetlebugorg/reliefvt/internal/geometry"
	"github.com/beetlebugorg/reliefvt/internal/raster"
	"github.com/beetlebugorg/reliefvt/internal/tiles"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Archive is the merged, encoded tile collection produced by a run.
type Archive = archive.Archive

// BandResult reports what one band did, or why it failed.
type BandResult struct {
	Band ZoomBand
	// Err is a *StageError when the band failed, or the context error
	// when it never started.
	Err error

	Sieve          raster.SieveStats
	Features       int
	VerticesBefore int
	VerticesAfter  int
	// Topology lists rings whose simplification was reverted.
	Topology []*TopologyError
	Tiles    tiles.BuildStats
	Duration time.Duration

	set *tiles.TileSet
}

// OK reports whether the band contributed tiles to the archive.
func (r BandResult) OK() bool {
	return r.Err == nil
}

// Result is the outcome of a run.
type Result struct {
	RunID    string
	Archive  *Archive
	Quantize QuantizeStats
	// Bands is in zoom order.
	Bands []BandResult
	// Partial is set when some but not all bands failed. The archive then
	// holds only the successful bands' zoom levels.
	Partial bool
}

// Failed returns the bands that did not contribute.
func (r *Result) Failed() []BandResult {
	var out []BandResult
	for _, b := range r.Bands {
		if !b.OK() {
			out = append(out, b)
		}
	}
	return out
}

// Err joins the band failures, or returns nil when every band succeeded.
func (r *Result) Err() error {
	var errs []error
	for _, b := range r.Failed() {
		errs = append(errs, b.Err)
	}
	return errors.Join(errs...)
}

// Topology returns every reverted ring across all bands.
func (r *Result) Topology() []*TopologyError {
	var out []*TopologyError
	for _, b := range r.Bands {
		out = append(out, b.Topology...)
	}
	return out
}

// Pipeline turns a raster into a tile archive. It holds no per-run state
// and may be reused.
type Pipeline struct {
	planner *ZoomBandPlanner
	opts    Options
}

// New validates opts and returns a pipeline for the planner's bands.
func New(planner *ZoomBandPlanner, opts Options) (*Pipeline, error) {
	if planner == nil {
		return nil, &ConfigError{Field: "bands", Reason: "no band planner"}
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Pipeline{planner: planner, opts: opts}, nil
}

// Planner returns the band table.
func (p *Pipeline) Planner() *ZoomBandPlanner {
	return p.planner
}

// Run quantizes grid once, processes every band concurrently, and merges
// the band tile sets into one archive.
//
// A band that fails is reported in Result.Bands and left out of the
// archive; the others are kept and Result.Partial is set. Run returns an
// error only when nothing usable was produced: an invalid grid, a
// degenerate value range, a tile collision, or every band failing. The
// context is checked before each band starts; a running band is not
// interrupted.
func (p *Pipeline) Run(ctx context.Context, grid *Grid) (*Result, error) {
	runID := uuid.NewString()
	logger := p.opts.Logger.With().Str("run", runID).Logger()

	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	cr, qstats, err := raster.Quantize(grid, p.opts.Levels, p.opts.Quantize)
	if err != nil {
		return nil, fmt.Errorf("quantize: %w", err)
	}
	logger.Info().
		Float64("min", qstats.Min).
		Float64("max", qstats.Max).
		Float64("interval", qstats.Interval).
		Int("valid", qstats.ValidCells).
		Int("nodata", qstats.NoDataCells).
		Ints("histogram", qstats.Histogram).
		Bool("fallback", qstats.UsedFallback).
		Msg("raster quantized")

	res := &Result{RunID: runID, Quantize: qstats, Bands: p.runBands(ctx, cr, logger)}

	var sets []*tiles.TileSet
	for _, b := range res.Bands {
		if b.OK() {
			sets = append(sets, b.set)
		}
	}
	if len(sets) == 0 {
		return res, fmt.Errorf("all %d bands failed: %w", len(res.Bands), res.Err())
	}
	res.Partial = len(sets) < len(res.Bands)

	a, err := archive.Merge(sets, p.opts.encoder(), archive.MergeOptions{
		Name:        p.opts.Name,
		Description: p.opts.Description,
		Layer:       p.layer(),
		Grid:        p.opts.Grid,
		Bounds:      grid.Extent(),
		Workers:     p.opts.TileWorkers,
		Logger:      logger,
	})
	if err != nil {
		return res, fmt.Errorf("merge: %w", err)
	}
	res.Archive = a

	ev := logger.Info()
	if res.Partial {
		ev = logger.Warn().Int("failed", len(res.Failed()))
	}
	ev.Int("tiles", a.Len()).
		Int("bands", len(sets)).
		Dur("elapsed", time.Since(started)).
		Msg("run finished")
	return res, nil
}

func (p *Pipeline) layer() string {
	if p.opts.Layer != "" {
		return p.opts.Layer
	}
	if enc, ok := p.opts.Encoder.(tiles.MVTEncoder); ok {
		return enc.LayerName()
	}
	return tiles.DefaultLayer
}

// runBands processes every band with a worker pool and returns results
// in zoom order.
func (p *Pipeline) runBands(ctx context.Context, cr *raster.ClassRaster, logger zerolog.Logger) []BandResult {
	bands := p.planner.Bands()

	workers := p.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(bands) {
		workers = len(bands)
	}

	type bandJob struct {
		index int
		band  ZoomBand
	}
	type bandOutcome struct {
		index int
		res   BandResult
	}

	jobs := make(chan bandJob, len(bands))
	results := make(chan bandOutcome, len(bands))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				var res BandResult
				if err := ctx.Err(); err != nil {
					res = BandResult{Band: job.band, Err: err}
				} else {
					res = p.runBand(cr, job.band, logger.With().Int("band", job.band.ID).Logger())
				}
				results <- bandOutcome{index: job.index, res: res}
			}
		}()
	}

	for i, b := range bands {
		jobs <- bandJob{index: i, band: b}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]BandResult, len(bands))
	for r := range results {
		out[r.index] = r.res
	}
	return out
}

// runBand runs sieve, polygonize, simplify and build for one band. A panic
// in any stage fails only this band.
func (p *Pipeline) runBand(cr *raster.ClassRaster, band ZoomBand, logger zerolog.Logger) (res BandResult) {
	res.Band = band
	started := time.Now()
	stage := StageSieve

	fail := func(zoom int, err error) BandResult {
		res.Err = &StageError{Band: band.ID, ZoomMin: band.ZoomMin, ZoomMax: band.ZoomMax, Zoom: zoom, Stage: stage, Err: err}
		res.Duration = time.Since(started)
		logger.Error().Err(res.Err).Str("stage", stage).Msg("band failed")
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			res = fail(-1, fmt.Errorf("panic: %v", r))
		}
	}()

	sieved, sstats := raster.Sieve(cr, band.SieveThreshold)
	res.Sieve = sstats

	stage = StagePolygonize
	features, err := geometry.Polygonize(sieved, band.ID)
	if err != nil {
		return fail(-1, err)
	}
	res.Features = len(features)
	res.VerticesBefore = geometry.CountVertices(features)

	stage = StageSimplify
	simplified, issues := geometry.Simplify(features, geometry.SimplifyOptions{
		Tolerance:             band.SimplifyTolerance,
		PreserveSharedBorders: p.opts.PreserveSharedBorders,
	})
	res.VerticesAfter = geometry.CountVertices(simplified)
	res.Topology = issues
	for _, issue := range issues {
		logger.Debug().Err(issue).Msg("ring kept unsimplified")
	}

	stage = StageBuild
	b := &tiles.Builder{
		Grid:            p.opts.Grid,
		Band:            band.ID,
		Extent:          p.opts.Extent,
		Buffer:          p.opts.Buffer,
		NoBuffer:        p.opts.NoBuffer,
		Workers:         p.opts.TileWorkers,
		MaxTilesPerZoom: p.opts.MaxTilesPerZoom,
		Logger:          logger,
	}
	set, err := b.Build(simplified, band.ZoomMin, band.ZoomMax)
	if err != nil {
		zoom := -1
		var zerr *tiles.ZoomError
		if errors.As(err, &zerr) {
			zoom = zerr.Zoom
		}
		return fail(zoom, err)
	}
	res.Tiles = set.Stats
	res.set = set
	res.Duration = time.Since(started)

	logger.Info().
		Str("zooms", fmt.Sprintf("%d-%d", band.ZoomMin, band.ZoomMax)).
		Int("sieved", sstats.Merged).
		Int("isolated", sstats.Isolated).
		Int("features", res.Features).
		Int("vertices_in", res.VerticesBefore).
		Int("vertices_out", res.VerticesAfter).
		Int("reverted", len(issues)).
		Int("tiles", set.Stats.Tiles).
		Int("collapsed", set.Stats.CollapsedPolygons+set.Stats.CollapsedHoles).
		Dur("elapsed", res.Duration).
		Msg("band finished")
	return res
}
