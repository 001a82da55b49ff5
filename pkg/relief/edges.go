package relief

import (
	"fmt"

	"github.com/beetlebugorg/reliefvt/internal/tiles"
)

// EdgeTiles returns the tiles on the border of the raster's tile
// rectangle at each zoom in [zoomMin, zoomMax], as sorted "z/x/y" strings.
// An edge-fill step uses them to find raster tiles that are only partly
// covered by data.
func EdgeTiles(grid TileGrid, transform Affine, width, height, zoomMin, zoomMax int) ([]string, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if zoomMin < 0 || zoomMax > tiles.MaxZoom || zoomMin > zoomMax {
		return nil, &ConfigError{Field: "zoom", Reason: fmt.Sprintf("range %d-%d outside [0, %d]", zoomMin, zoomMax, tiles.MaxZoom)}
	}
	if width <= 0 || height <= 0 {
		return nil, &InvalidGridError{Reason: fmt.Sprintf("dimensions %dx%d must be positive", width, height)}
	}
	set := tiles.BoundaryTilesRange(grid, transform, width, height, zoomMin, zoomMax)
	return tiles.FormatTiles(set), nil
}
