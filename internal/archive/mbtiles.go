package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/beetlebugorg/reliefvt/internal/tiles"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

var mbtilesSchema = []string{
	`CREATE TABLE metadata (name TEXT, value TEXT)`,
	`CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`,
	`CREATE UNIQUE INDEX name ON metadata (name)`,
	`CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)`,
}

// MBTilesSink writes an MBTiles 1.3 SQLite database. Rows use the TMS
// scheme, so tile_row counts from the bottom.
type MBTilesSink struct {
	path   string
	logger zerolog.Logger
}

// Path returns the output file.
func (s *MBTilesSink) Path() string {
	return s.path
}

// Commit writes a to a staging database and renames it over the target.
func (s *MBTilesSink) Commit(ctx context.Context, a *Archive) (err error) {
	if err := checkContext(ctx, s.path); err != nil {
		return err
	}
	staging := stagingPath(s.path)
	defer func() {
		if err != nil {
			os.Remove(staging)
			os.Remove(staging + "-journal")
		}
	}()

	if err := s.write(ctx, staging, a); err != nil {
		return err
	}
	if err := checkContext(ctx, s.path); err != nil {
		return err
	}
	if err := publish(staging, s.path); err != nil {
		return err
	}
	s.logger.Info().Str("path", s.path).Int("tiles", a.Len()).Msg("mbtiles committed")
	return nil
}

func (s *MBTilesSink) write(ctx context.Context, staging string, a *Archive) error {
	db, err := sql.Open("sqlite", staging)
	if err != nil {
		return &IOError{Op: "open", Path: staging, Err: err}
	}
	defer db.Close()

	for _, stmt := range mbtilesSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return &IOError{Op: "create schema", Path: staging, Err: err}
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &IOError{Op: "begin", Path: staging, Err: err}
	}
	defer tx.Rollback()

	ins, err := tx.PrepareContext(ctx, `INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return &IOError{Op: "prepare", Path: staging, Err: err}
	}
	defer ins.Close()
	for _, e := range a.entries {
		if _, err := ins.ExecContext(ctx, int(e.Coord.Z), int(e.Coord.X), int(tiles.FlipY(e.Coord)), e.Payload); err != nil {
			return &IOError{Op: "insert tile " + tiles.FormatTile(e.Coord), Path: staging, Err: err}
		}
	}

	rows, err := mbtilesMetadata(a)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(rows))
	for name := range rows {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metadata (name, value) VALUES (?, ?)`, name, rows[name]); err != nil {
			return &IOError{Op: "insert metadata " + name, Path: staging, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &IOError{Op: "commit", Path: staging, Err: err}
	}
	if err := db.Close(); err != nil {
		return &IOError{Op: "close", Path: staging, Err: err}
	}
	return nil
}

// mbtilesMetadata builds the metadata table rows.
func mbtilesMetadata(a *Archive) (map[string]string, error) {
	m := a.meta
	rows := map[string]string{
		"name":        m.Name,
		"description": m.Description,
		"format":      m.Format,
		"type":        "overlay",
		"version":     "1",
		"minzoom":     strconv.Itoa(m.MinZoom),
		"maxzoom":     strconv.Itoa(m.MaxZoom),
	}
	if m.HasLonLat {
		b := m.LonLatBounds
		rows["bounds"] = fmt.Sprintf("%g,%g,%g,%g", b.Min[0], b.Min[1], b.Max[0], b.Max[1])
		c, z := m.Center()
		rows["center"] = fmt.Sprintf("%g,%g,%d", c[0], c[1], z)
	}

	doc := a.TileJSON()
	vector := map[string]any{"vector_layers": doc["vector_layers"], "bands": doc["bands"]}
	data, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("encode mbtiles json metadata: %w", err)
	}
	rows["json"] = string(data)
	return rows, nil
}
