// Package relief turns a continuous raster, such as elevation, into
// zoom-banded vector tiles of relief classes.
//
// A run quantizes the raster once into equal-width classes, then processes
// each zoom band on its own: small regions are sieved away, the remaining
// regions are traced into polygons, the polygons are simplified with shared
// borders kept identical, and the result is cut into vector tiles for the
// band's zoom levels. The band tile sets are merged into one archive, which
// a sink from the archive package writes atomically.
//
// # Basic Usage
//
//	planner, err := relief.NewZoomBandPlanner(0, 14, []relief.ZoomBand{
//	    {ZoomMin: 0, ZoomMax: 6, SieveThreshold: 64, SimplifyTolerance: 1200},
//	    {ZoomMin: 7, ZoomMax: 14, SieveThreshold: 8, SimplifyTolerance: 20},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, err := relief.New(planner, relief.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := p.Run(ctx, grid)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d tiles, partial=%v\n", res.Archive.Len(), res.Partial)
//
// # Zoom Bands
//
// Bands must partition [minZoom, maxZoom] exactly. A gap or overlap is
// rejected with a *BandConfigError, which also matches *ConfigError:
//
//	_, err := relief.NewZoomBandPlanner(0, 14, []relief.ZoomBand{
//	    {ZoomMin: 0, ZoomMax: 5},
//	    {ZoomMin: 7, ZoomMax: 14},
//	})
//	// err: invalid band table: gap at zoom 6 (band 1)
//
// # Failures
//
// Bands run concurrently and fail independently. A failed band is listed
// in Result.Bands with a *StageError naming its zoom range, the stage and,
// for tile building, the zoom level. The archive keeps every other band
// and Result.Partial is set. Rings that could not be simplified without
// becoming invalid are kept as traced and reported as *TopologyError.
//
// # Configuration
//
// LoadConfig reads a TOML file:
//
//	min_zoom = 0
//	max_zoom = 14
//	levels = 8
//
//	[[bands]]
//	zoom_min = 0
//	zoom_max = 6
//	sieve_threshold = 64
//	simplify_tolerance = 1200.0
//
//	[[bands]]
//	zoom_min = 7
//	zoom_max = 14
//	sieve_threshold = 8
//	simplify_tolerance = 20.0
//
//	[quantize]
//	fallback_min = 0.0
//	fallback_max = 1.0
//
//	[tiles]
//	grid = "webmercator"
//	max_tiles_per_zoom = 100000
//
//	[archive]
//	path = "relief.pmtiles"
package relief
