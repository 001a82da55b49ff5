package relief

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/beetlebugorg/reliefvt/internal/tiles"
	"github.com/rs/zerolog"
)

// TilesConfig controls tile cutting and encoding.
type TilesConfig struct {
	Extent   uint32
	Buffer   uint32
	NoBuffer bool
	Workers  int
	// MaxTilesPerZoom of zero means no limit.
	MaxTilesPerZoom int
	Layer           string
	Gzip            bool
	Grid            TileGrid
}

// ArchiveConfig names the output.
type ArchiveConfig struct {
	// Format is mbtiles, pmtiles or dir. Empty infers it from Path.
	Format      string
	Path        string
	Name        string
	Description string
}

// Config is the file form of a pipeline setup.
type Config struct {
	MinZoom               int
	MaxZoom               int
	Levels                int
	PreserveSharedBorders bool
	Workers               int
	Quantize              QuantizeOptions
	Bands                 []ZoomBand
	Tiles                 TilesConfig
	Archive               ArchiveConfig
}

// DefaultConfig returns a Web Mercator setup covering zooms 0-14 in three
// bands, with tolerances in meters.
func DefaultConfig() Config {
	return Config{
		MinZoom:               0,
		MaxZoom:               14,
		Levels:                8,
		PreserveSharedBorders: true,
		Workers:               runtime.NumCPU(),
		Bands: []ZoomBand{
			{ZoomMin: 0, ZoomMax: 6, SieveThreshold: 64, SimplifyTolerance: 1200},
			{ZoomMin: 7, ZoomMax: 10, SieveThreshold: 16, SimplifyTolerance: 150},
			{ZoomMin: 11, ZoomMax: 14, SieveThreshold: 4, SimplifyTolerance: 10},
		},
		Tiles: TilesConfig{
			Extent: tiles.DefaultExtent,
			Buffer: tiles.DefaultBuffer,
			Layer:  tiles.DefaultLayer,
			Gzip:   true,
			Grid:   tiles.WebMercator,
		},
		Archive: ArchiveConfig{
			Format: "mbtiles",
			Path:   "relief.mbtiles",
			Name:   "relief",
		},
	}
}

type fileBand struct {
	ZoomMin           int     `toml:"zoom_min"`
	ZoomMax           int     `toml:"zoom_max"`
	SieveThreshold    int     `toml:"sieve_threshold"`
	SimplifyTolerance float64 `toml:"simplify_tolerance"`
}

type fileQuantize struct {
	Min         *float64 `toml:"min,omitempty"`
	Max         *float64 `toml:"max,omitempty"`
	FallbackMin *float64 `toml:"fallback_min,omitempty"`
	FallbackMax *float64 `toml:"fallback_max,omitempty"`
}

type fileTiles struct {
	Extent          int64   `toml:"extent"`
	Buffer          int64   `toml:"buffer"`
	Workers         int     `toml:"workers"`
	MaxTilesPerZoom int     `toml:"max_tiles_per_zoom"`
	Layer           string  `toml:"layer"`
	Gzip            bool    `toml:"gzip"`
	Grid            string  `toml:"grid"`
	OriginX         float64 `toml:"origin_x"`
	OriginY         float64 `toml:"origin_y"`
	Size            float64 `toml:"size"`
}

type fileArchive struct {
	Format      string `toml:"format"`
	Path        string `toml:"path"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

type fileConfig struct {
	MinZoom               int          `toml:"min_zoom"`
	MaxZoom               int          `toml:"max_zoom"`
	Levels                int          `toml:"levels"`
	PreserveSharedBorders bool         `toml:"preserve_shared_borders"`
	Workers               int          `toml:"workers"`
	Quantize              fileQuantize `toml:"quantize"`
	Bands                 []fileBand   `toml:"bands"`
	Tiles                 fileTiles    `toml:"tiles"`
	Archive               fileArchive  `toml:"archive"`
}

// LoadConfig reads a TOML file over DefaultConfig and validates it.
func LoadConfig(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return applyConfig(raw, meta)
}

// ParseConfig is LoadConfig for TOML text.
func ParseConfig(text string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return applyConfig(raw, meta)
}

func applyConfig(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, &ConfigError{Field: keys[0], Reason: "unknown key (" + strings.Join(keys, ", ") + ")"}
	}

	cfg := DefaultConfig()

	if meta.IsDefined("min_zoom") {
		cfg.MinZoom = raw.MinZoom
	}
	if meta.IsDefined("max_zoom") {
		cfg.MaxZoom = raw.MaxZoom
	}
	if meta.IsDefined("levels") {
		cfg.Levels = raw.Levels
	}
	if meta.IsDefined("preserve_shared_borders") {
		cfg.PreserveSharedBorders = raw.PreserveSharedBorders
	}
	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}

	if meta.IsDefined("bands") {
		cfg.Bands = make([]ZoomBand, len(raw.Bands))
		for i, b := range raw.Bands {
			cfg.Bands[i] = ZoomBand{
				ZoomMin:           b.ZoomMin,
				ZoomMax:           b.ZoomMax,
				SieveThreshold:    b.SieveThreshold,
				SimplifyTolerance: b.SimplifyTolerance,
			}
		}
	}

	q := raw.Quantize
	switch hasMin, hasMax := q.Min != nil, q.Max != nil; {
	case hasMin && hasMax:
		cfg.Quantize.Range = &ValueRange{Min: *q.Min, Max: *q.Max}
	case hasMin || hasMax:
		return Config{}, &ConfigError{Field: "quantize", Reason: "min and max must be set together"}
	}
	switch hasMin, hasMax := q.FallbackMin != nil, q.FallbackMax != nil; {
	case hasMin && hasMax:
		cfg.Quantize.Fallback = &ValueRange{Min: *q.FallbackMin, Max: *q.FallbackMax}
	case hasMin || hasMax:
		return Config{}, &ConfigError{Field: "quantize", Reason: "fallback_min and fallback_max must be set together"}
	}

	t := raw.Tiles
	if meta.IsDefined("tiles", "extent") {
		if t.Extent <= 0 || t.Extent > 1<<16 {
			return Config{}, &ConfigError{Field: "tiles.extent", Reason: "must be in (0, 65536]"}
		}
		cfg.Tiles.Extent = uint32(t.Extent)
	}
	if meta.IsDefined("tiles", "buffer") {
		if t.Buffer < 0 {
			return Config{}, &ConfigError{Field: "tiles.buffer", Reason: "must not be negative"}
		}
		cfg.Tiles.Buffer = uint32(t.Buffer)
		cfg.Tiles.NoBuffer = t.Buffer == 0
	}
	if meta.IsDefined("tiles", "workers") {
		cfg.Tiles.Workers = t.Workers
	}
	if meta.IsDefined("tiles", "max_tiles_per_zoom") {
		cfg.Tiles.MaxTilesPerZoom = t.MaxTilesPerZoom
	}
	if meta.IsDefined("tiles", "layer") {
		cfg.Tiles.Layer = strings.TrimSpace(t.Layer)
	}
	if meta.IsDefined("tiles", "gzip") {
		cfg.Tiles.Gzip = t.Gzip
	}
	if meta.IsDefined("tiles", "grid") {
		switch strings.ToLower(strings.TrimSpace(t.Grid)) {
		case "webmercator", "epsg:3857":
			cfg.Tiles.Grid = tiles.WebMercator
		case "custom":
			cfg.Tiles.Grid = TileGrid{OriginX: t.OriginX, OriginY: t.OriginY, Size: t.Size}
		default:
			return Config{}, &ConfigError{Field: "tiles.grid", Reason: fmt.Sprintf("unknown grid %q", t.Grid)}
		}
	}

	a := raw.Archive
	if meta.IsDefined("archive", "format") {
		cfg.Archive.Format = strings.ToLower(strings.TrimSpace(a.Format))
	}
	if meta.IsDefined("archive", "path") {
		cfg.Archive.Path = strings.TrimSpace(a.Path)
	}
	if meta.IsDefined("archive", "name") {
		cfg.Archive.Name = a.Name
	}
	if meta.IsDefined("archive", "description") {
		cfg.Archive.Description = a.Description
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the band table and every option without running
// anything.
func (c Config) Validate() error {
	if _, err := c.Planner(); err != nil {
		return err
	}
	return c.Options(zerolog.Nop()).validate()
}

// Planner builds the band planner for the configured bands.
func (c Config) Planner() (*ZoomBandPlanner, error) {
	return NewZoomBandPlanner(c.MinZoom, c.MaxZoom, c.Bands)
}

// Options converts the config into pipeline options.
func (c Config) Options(logger zerolog.Logger) Options {
	return Options{
		Levels:                c.Levels,
		Quantize:              c.Quantize,
		PreserveSharedBorders: c.PreserveSharedBorders,
		Grid:                  c.Tiles.Grid,
		Extent:                c.Tiles.Extent,
		Buffer:                c.Tiles.Buffer,
		NoBuffer:              c.Tiles.NoBuffer,
		Workers:               c.Workers,
		TileWorkers:           c.Tiles.Workers,
		MaxTilesPerZoom:       c.Tiles.MaxTilesPerZoom,
		Encoder:               tiles.MVTEncoder{Layer: c.Tiles.Layer, Gzip: c.Tiles.Gzip},
		Layer:                 c.Tiles.Layer,
		Name:                  c.Archive.Name,
		Description:           c.Archive.Description,
		Logger:                logger,
	}
}

// Encode writes c as TOML that LoadConfig reads back unchanged.
func (c Config) Encode(w io.Writer) error {
	raw := fileConfig{
		MinZoom:               c.MinZoom,
		MaxZoom:               c.MaxZoom,
		Levels:                c.Levels,
		PreserveSharedBorders: c.PreserveSharedBorders,
		Workers:               c.Workers,
		Tiles: fileTiles{
			Extent:          int64(c.Tiles.Extent),
			Buffer:          int64(c.Tiles.Buffer),
			Workers:         c.Tiles.Workers,
			MaxTilesPerZoom: c.Tiles.MaxTilesPerZoom,
			Layer:           c.Tiles.Layer,
			Gzip:            c.Tiles.Gzip,
			Grid:            "custom",
			OriginX:         c.Tiles.Grid.OriginX,
			OriginY:         c.Tiles.Grid.OriginY,
			Size:            c.Tiles.Grid.Size,
		},
		Archive: fileArchive(c.Archive),
	}
	if c.Tiles.NoBuffer {
		raw.Tiles.Buffer = 0
	}
	if c.Tiles.Grid == tiles.WebMercator {
		raw.Tiles.Grid = "webmercator"
	}
	for _, b := range c.Bands {
		raw.Bands = append(raw.Bands, fileBand{
			ZoomMin:           b.ZoomMin,
			ZoomMax:           b.ZoomMax,
			SieveThreshold:    b.SieveThreshold,
			SimplifyTolerance: b.SimplifyTolerance,
		})
	}
	if r := c.Quantize.Range; r != nil {
		raw.Quantize.Min, raw.Quantize.Max = &r.Min, &r.Max
	}
	if r := c.Quantize.Fallback; r != nil {
		raw.Quantize.FallbackMin, raw.Quantize.FallbackMax = &r.Min, &r.Max
	}

	enc := toml.NewEncoder(w)
	enc.Indent = ""
	return enc.Encode(raw)
}
