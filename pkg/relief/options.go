package relief

import (
	"runtime"

	"github.com/beetlebugorg/reliefvt/internal/raster"
	"github.com/beetlebugorg/reliefvt/internal/tiles"
	"github.com/rs/zerolog"
)

// Types shared with the internal stages.
type (
	Grid            = raster.Grid
	Affine          = raster.Affine
	ValueRange      = raster.ValueRange
	QuantizeOptions = raster.QuantizeOptions
	QuantizeStats   = raster.QuantizeStats
	TileGrid        = tiles.TileGrid
	Encoder         = tiles.Encoder
	MVTEncoder      = tiles.MVTEncoder
)

// WebMercator is the EPSG:3857 tile grid.
var WebMercator = tiles.WebMercator

// NewGrid allocates a zero-filled raster.
func NewGrid(width, height int, transform Affine) *Grid {
	return raster.NewGrid(width, height, transform)
}

// NorthUp returns the transform of an unrotated raster with square cells.
func NorthUp(originX, originY, cellSize float64) Affine {
	return raster.NorthUp(originX, originY, cellSize)
}

// Options configures a Pipeline.
type Options struct {
	// Levels is the number of relief classes, at least 2.
	Levels int
	// Quantize sets an explicit or fallback value range.
	Quantize QuantizeOptions
	// PreserveSharedBorders keeps borders between adjacent classes
	// identical on both sides after simplification.
	PreserveSharedBorders bool

	// Grid is the tile grid in the raster's planar coordinates.
	Grid TileGrid
	// Extent and Buffer are in tile units; zero selects the defaults.
	Extent   uint32
	Buffer   uint32
	NoBuffer bool

	// Workers bounds concurrently processed bands. TileWorkers bounds
	// concurrent tiles within a band and encoding during the merge.
	// Zero means NumCPU.
	Workers     int
	TileWorkers int
	// MaxTilesPerZoom fails a band at any zoom needing more tiles.
	// Zero means no limit.
	MaxTilesPerZoom int

	// Encoder turns tiles into payloads. Nil selects MVTEncoder with Layer.
	Encoder Encoder
	Layer   string

	Name        string
	Description string

	Logger zerolog.Logger
}

// DefaultOptions returns options for Web Mercator input with shared-border
// preservation and gzipped MVT output.
func DefaultOptions() Options {
	return Options{
		Levels:                8,
		PreserveSharedBorders: true,
		Grid:                  tiles.WebMercator,
		Workers:               runtime.NumCPU(),
		Encoder:               tiles.MVTEncoder{Layer: tiles.DefaultLayer, Gzip: true},
		Layer:                 tiles.DefaultLayer,
		Name:                  "relief",
		Logger:                zerolog.Nop(),
	}
}

func (o Options) validate() error {
	if o.Levels < 2 || o.Levels > raster.MaxLevels {
		return &ConfigError{Field: "levels", Reason: "must be between 2 and 32768"}
	}
	if err := o.Quantize.Validate(); err != nil {
		return err
	}
	if err := o.Grid.Validate(); err != nil {
		return err
	}
	if o.Workers < 0 || o.TileWorkers < 0 {
		return &ConfigError{Field: "workers", Reason: "must not be negative"}
	}
	if o.MaxTilesPerZoom < 0 {
		return &ConfigError{Field: "max_tiles_per_zoom", Reason: "must not be negative"}
	}
	return nil
}

func (o Options) encoder() Encoder {
	if o.Encoder != nil {
		return o.Encoder
	}
	layer := o.Layer
	if layer == "" {
		layer = tiles.DefaultLayer
	}
	return tiles.MVTEncoder{Layer: layer}
}
