package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Output formats understood by NewSink.
const (
	FormatMBTiles = "mbtiles"
	FormatPMTiles = "pmtiles"
	FormatDir     = "dir"
)

// Sink persists an archive. Commit is all-or-nothing: the archive is
// written to a staging location beside the target and moved into place
// only when complete, so readers never observe a partial archive.
type Sink interface {
	Commit(ctx context.Context, a *Archive) error
	Path() string
}

// NewSink returns the sink for format writing to path. An empty format is
// inferred from the path extension.
func NewSink(format, path string, logger zerolog.Logger) (Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("sink: empty output path")
	}
	if format == "" {
		format = FormatFromPath(path)
	}
	switch strings.ToLower(format) {
	case FormatMBTiles:
		return &MBTilesSink{path: path, logger: logger}, nil
	case FormatPMTiles:
		return &PMTilesSink{path: path, logger: logger}, nil
	case FormatDir:
		return &DirSink{path: path, logger: logger}, nil
	}
	return nil, fmt.Errorf("sink: unknown format %q", format)
}

// FormatFromPath guesses the output format from a file extension.
// Anything without a known extension is written as a directory tree.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mbtiles":
		return FormatMBTiles
	case ".pmtiles":
		return FormatPMTiles
	}
	return FormatDir
}

// stagingPath returns a unique hidden sibling of path.
func stagingPath(path string) string {
	dir, base := filepath.Split(filepath.Clean(path))
	return filepath.Join(dir, "."+base+"."+uuid.NewString()+".staging")
}

// publish moves a finished staging file over path.
func publish(staging, path string) error {
	if err := os.Rename(staging, path); err != nil {
		return &IOError{Op: "publish", Path: path, Err: err}
	}
	return nil
}

// checkContext aborts a commit before anything is published.
func checkContext(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return &IOError{Op: "commit", Path: path, Err: err}
	}
	return nil
}
