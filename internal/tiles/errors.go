package tiles

import (
	"fmt"
)

// ZoomError indicates a failure while building one zoom level of a band.
type ZoomError struct {
	Band int
	Zoom int
	Err  error
}

func (e *ZoomError) Error() string {
	return fmt.Sprintf("band %d zoom %d: %v", e.Band, e.Zoom, e.Err)
}

func (e *ZoomError) Unwrap() error {
	return e.Err
}

// TooManyTilesError indicates a zoom level whose tile range exceeds the
// configured limit.
type TooManyTilesError struct {
	Zoom  int
	Tiles int
	Limit int
}

func (e *TooManyTilesError) Error() string {
	return fmt.Sprintf("zoom %d needs %d tiles, limit is %d", e.Zoom, e.Tiles, e.Limit)
}
