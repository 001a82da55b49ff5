package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
)

// DirSink writes {z}/{x}/{y}.<format> files plus metadata.json. The tree
// is built in a staging directory and swapped in with renames.
type DirSink struct {
	path   string
	logger zerolog.Logger
}

// Path returns the output directory.
func (s *DirSink) Path() string {
	return s.path
}

// Commit writes every tile of a beneath the sink directory.
func (s *DirSink) Commit(ctx context.Context, a *Archive) (err error) {
	if err := checkContext(ctx, s.path); err != nil {
		return err
	}
	staging := stagingPath(s.path)
	defer func() {
		if err != nil {
			os.RemoveAll(staging)
		}
	}()

	ext := a.meta.Format
	if ext == "" {
		ext = "pbf"
	}
	for i, e := range a.entries {
		if i%1024 == 0 {
			if err := checkContext(ctx, s.path); err != nil {
				return err
			}
		}
		dir := filepath.Join(staging, strconv.Itoa(int(e.Coord.Z)), strconv.Itoa(int(e.Coord.X)))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &IOError{Op: "mkdir", Path: dir, Err: err}
		}
		name := filepath.Join(dir, strconv.Itoa(int(e.Coord.Y))+"."+ext)
		if err := os.WriteFile(name, e.Payload, 0o644); err != nil {
			return &IOError{Op: "write", Path: name, Err: err}
		}
	}

	doc, err := json.MarshalIndent(a.TileJSON(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata.json: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: staging, Err: err}
	}
	meta := filepath.Join(staging, "metadata.json")
	if err := os.WriteFile(meta, doc, 0o644); err != nil {
		return &IOError{Op: "write", Path: meta, Err: err}
	}

	if err := checkContext(ctx, s.path); err != nil {
		return err
	}
	if err := s.swap(staging); err != nil {
		return err
	}
	s.logger.Info().Str("path", s.path).Int("tiles", a.Len()).Msg("tile directory committed")
	return nil
}

// swap replaces the target directory with staging. An existing target is
// moved aside first and removed once the new tree is in place.
func (s *DirSink) swap(staging string) error {
	var old string
	if _, err := os.Stat(s.path); err == nil {
		old = stagingPath(s.path) + ".old"
		if err := os.Rename(s.path, old); err != nil {
			return &IOError{Op: "move aside", Path: s.path, Err: err}
		}
	}
	if err := publish(staging, s.path); err != nil {
		if old != "" {
			os.Rename(old, s.path)
		}
		return err
	}
	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			s.logger.Warn().Err(err).Str("path", old).Msg("failed to remove previous tile directory")
		}
	}
	return nil
}
