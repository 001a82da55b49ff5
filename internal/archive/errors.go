package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/beetlebugorg/reliefvt/internal/tiles"
	"github.com/paulmach/orb/maptile"
)

// CollisionError indicates two bands claim the same zoom level. Bands own
// disjoint zoom ranges, so this is always a defect upstream.
type CollisionError struct {
	Bands [2]int
	// Zoom is the lowest shared zoom and Ranges holds each band's
	// [min, max].
	Zoom   int
	Ranges [2][2]int
	// Coord is the first tile either band has at Zoom. It is set only when
	// HasCoord; a band may claim a zoom without producing tiles there.
	Coord    maptile.Tile
	HasCoord bool
}

func (e *CollisionError) Error() string {
	msg := fmt.Sprintf("band %d [%d-%d] and band %d [%d-%d] overlap at zoom %d",
		e.Bands[0], e.Ranges[0][0], e.Ranges[0][1], e.Bands[1], e.Ranges[1][0], e.Ranges[1][1], e.Zoom)
	if e.HasCoord {
		msg += " (tile " + tiles.FormatTile(e.Coord) + ")"
	}
	return msg
}

// IOError indicates a failure while writing or publishing an archive.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the commit could succeed.
// Cancellation, missing directories and permission problems are not.
func (e *IOError) Retryable() bool {
	switch {
	case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded):
		return false
	case errors.Is(e.Err, fs.ErrPermission), errors.Is(e.Err, fs.ErrNotExist):
		return false
	}
	return true
}
