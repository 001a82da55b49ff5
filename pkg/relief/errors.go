package relief

import (
	"fmt"

	"github.com/beetlebugorg/reliefvt/internal/archive"
	"github.com/beetlebugorg/reliefvt/internal/geometry"
	"github.com/beetlebugorg/reliefvt/internal/raster"
	"github.com/beetlebugorg/reliefvt/internal/tiles"
)

// Error types raised by the pipeline stages. Match them with errors.As.
type (
	ConfigError          = raster.ConfigError
	DegenerateRangeError = raster.DegenerateRangeError
	InvalidGridError     = raster.InvalidGridError
	TopologyError        = geometry.TopologyError
	ZoomError            = tiles.ZoomError
	TooManyTilesError    = tiles.TooManyTilesError
	CollisionError       = archive.CollisionError
	IOError              = archive.IOError
)

// Band table problems reported by BandConfigError.
const (
	KindGap     = "gap"
	KindOverlap = "overlap"
	KindBounds  = "bounds"
	KindInvalid = "invalid"
)

// BandConfigError indicates a band table that does not partition the
// global zoom range. From and To are the offending zoom levels; Band is
// the index of the band in zoom order, or -1 for the table as a whole.
// It also matches *ConfigError.
type BandConfigError struct {
	Kind   string
	From   int
	To     int
	Band   int
	Reason string
}

func (e *BandConfigError) Error() string {
	return "invalid band table: " + e.describe()
}

func (e *BandConfigError) describe() string {
	var where string
	if e.From == e.To {
		where = fmt.Sprintf("zoom %d", e.From)
	} else {
		where = fmt.Sprintf("zooms %d-%d", e.From, e.To)
	}
	msg := fmt.Sprintf("%s at %s", e.Kind, where)
	if e.Band >= 0 {
		msg = fmt.Sprintf("%s (band %d)", msg, e.Band)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *BandConfigError) Unwrap() error {
	return &raster.ConfigError{Field: "bands", Reason: e.describe()}
}

// Pipeline stages named by StageError.
const (
	StageSieve      = "sieve"
	StagePolygonize = "polygonize"
	StageSimplify   = "simplify"
	StageBuild      = "build"
)

// StageError reports the band, zoom and stage at which a band failed.
// Zoom is -1 when the failure is not tied to one zoom level.
type StageError struct {
	Band    int
	ZoomMin int
	ZoomMax int
	Zoom    int
	Stage   string
	Err     error
}

func (e *StageError) Error() string {
	if e.Zoom >= 0 {
		return fmt.Sprintf("band %d [%d-%d] %s at zoom %d: %v", e.Band, e.ZoomMin, e.ZoomMax, e.Stage, e.Zoom, e.Err)
	}
	return fmt.Sprintf("band %d [%d-%d] %s: %v", e.Band, e.ZoomMin, e.ZoomMax, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
