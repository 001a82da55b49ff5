package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"sort"

	"github.com/protomaps/go-pmtiles/pmtiles"
	"github.com/rs/zerolog"
)

const (
	pmtilesHeaderSize = 127
	// The header and root directory must fit in the first 16 KiB.
	pmtilesRootLimit = 16384 - pmtilesHeaderSize
)

// PMTilesSink writes a clustered PMTiles v3 archive.
type PMTilesSink struct {
	path   string
	logger zerolog.Logger
}

// Path returns the output file.
func (s *PMTilesSink) Path() string {
	return s.path
}

// pmtilesLayout is an archive laid out in tile id order with identical
// payloads stored once.
type pmtilesLayout struct {
	entries   []pmtiles.EntryV3
	blobs     [][]byte
	dataSize  uint64
	addressed uint64
}

func layoutPMTiles(a *Archive) pmtilesLayout {
	type idEntry struct {
		id   uint64
		data []byte
	}
	ordered := make([]idEntry, len(a.entries))
	for i, e := range a.entries {
		ordered[i] = idEntry{id: pmtiles.ZxyToID(uint8(e.Coord.Z), e.Coord.X, e.Coord.Y), data: e.Payload}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })

	var l pmtilesLayout
	offsets := make(map[[16]byte]pmtiles.EntryV3)
	for _, e := range ordered {
		h := fnv.New128a()
		h.Write(e.data)
		var sum [16]byte
		copy(sum[:], h.Sum(nil))
		l.addressed++

		if prev, ok := offsets[sum]; ok {
			last := &l.entries[len(l.entries)-1]
			if last.Offset == prev.Offset && last.TileID+uint64(last.RunLength) == e.id {
				last.RunLength++
				continue
			}
			l.entries = append(l.entries, pmtiles.EntryV3{TileID: e.id, Offset: prev.Offset, Length: prev.Length, RunLength: 1})
			continue
		}
		entry := pmtiles.EntryV3{TileID: e.id, Offset: l.dataSize, Length: uint32(len(e.data)), RunLength: 1}
		offsets[sum] = entry
		l.entries = append(l.entries, entry)
		l.blobs = append(l.blobs, e.data)
		l.dataSize += uint64(len(e.data))
	}
	return l
}

// directories serializes the root directory and, when it would not fit in
// the first 16 KiB, a run of leaf directories it points to.
func directories(entries []pmtiles.EntryV3) (root, leaves []byte) {
	root = pmtiles.SerializeEntries(entries, pmtiles.NoCompression)
	if len(root) <= pmtilesRootLimit {
		return root, nil
	}
	for leafSize := 4096; ; leafSize *= 2 {
		var rootEntries []pmtiles.EntryV3
		leaves = leaves[:0]
		for i := 0; i < len(entries); i += leafSize {
			end := min(i+leafSize, len(entries))
			leaf := pmtiles.SerializeEntries(entries[i:end], pmtiles.NoCompression)
			rootEntries = append(rootEntries, pmtiles.EntryV3{
				TileID: entries[i].TileID,
				Offset: uint64(len(leaves)),
				Length: uint32(len(leaf)),
			})
			leaves = append(leaves, leaf...)
		}
		root = pmtiles.SerializeEntries(rootEntries, pmtiles.NoCompression)
		if len(root) <= pmtilesRootLimit {
			return root, leaves
		}
	}
}

func e7(v float64) int32 {
	return int32(math.Round(v * 1e7))
}

func pmtilesHeader(a *Archive, l pmtilesLayout, root, metadata, leaves []byte) pmtiles.HeaderV3 {
	m := a.meta
	var h pmtiles.HeaderV3
	h.SpecVersion = 3
	h.RootOffset = pmtilesHeaderSize
	h.RootLength = uint64(len(root))
	h.MetadataOffset = h.RootOffset + h.RootLength
	h.MetadataLength = uint64(len(metadata))
	h.LeafDirectoryOffset = h.MetadataOffset + h.MetadataLength
	h.LeafDirectoryLength = uint64(len(leaves))
	h.TileDataOffset = h.LeafDirectoryOffset + h.LeafDirectoryLength
	h.TileDataLength = l.dataSize
	h.AddressedTilesCount = l.addressed
	h.TileEntriesCount = uint64(len(l.entries))
	h.TileContentsCount = uint64(len(l.blobs))
	h.Clustered = true
	h.InternalCompression = pmtiles.NoCompression
	h.TileCompression = pmtiles.NoCompression
	if m.Compression == "gzip" {
		h.TileCompression = pmtiles.Gzip
	}
	h.TileType = pmtiles.UnknownTileType
	if m.Format == "pbf" {
		h.TileType = pmtiles.Mvt
	}
	h.MinZoom = uint8(m.MinZoom)
	h.MaxZoom = uint8(m.MaxZoom)
	b := m.LonLatBounds
	if !m.HasLonLat {
		b.Min[0], b.Min[1], b.Max[0], b.Max[1] = -180, -85, 180, 85
	}
	h.MinLonE7, h.MinLatE7 = e7(b.Min[0]), e7(b.Min[1])
	h.MaxLonE7, h.MaxLatE7 = e7(b.Max[0]), e7(b.Max[1])
	c := b.Center()
	h.CenterZoom = uint8(m.MinZoom)
	h.CenterLonE7, h.CenterLatE7 = e7(c[0]), e7(c[1])
	return h
}

// Commit writes a to a staging file and renames it over the target.
func (s *PMTilesSink) Commit(ctx context.Context, a *Archive) (err error) {
	if err := checkContext(ctx, s.path); err != nil {
		return err
	}

	l := layoutPMTiles(a)
	root, leaves := directories(l.entries)
	metadata, err := json.Marshal(a.TileJSON())
	if err != nil {
		return fmt.Errorf("encode pmtiles metadata: %w", err)
	}
	header := pmtiles.SerializeHeader(pmtilesHeader(a, l, root, metadata, leaves))

	staging := stagingPath(s.path)
	f, err := os.Create(staging)
	if err != nil {
		return &IOError{Op: "create", Path: staging, Err: err}
	}
	closed := false
	defer func() {
		if err != nil {
			if !closed {
				f.Close()
			}
			os.Remove(staging)
		}
	}()

	w := bufio.NewWriter(f)
	for _, part := range [][]byte{header, root, metadata, leaves} {
		if _, err := w.Write(part); err != nil {
			return &IOError{Op: "write", Path: staging, Err: err}
		}
	}
	for i, blob := range l.blobs {
		if i%1024 == 0 {
			if err := checkContext(ctx, s.path); err != nil {
				return err
			}
		}
		if _, err := w.Write(blob); err != nil {
			return &IOError{Op: "write", Path: staging, Err: err}
		}
	}
	if err := w.Flush(); err != nil {
		return &IOError{Op: "flush", Path: staging, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &IOError{Op: "sync", Path: staging, Err: err}
	}
	closed = true
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: staging, Err: err}
	}
	if err := checkContext(ctx, s.path); err != nil {
		return err
	}
	if err := publish(staging, s.path); err != nil {
		return err
	}

	s.logger.Info().
		Str("path", s.path).
		Uint64("addressed", l.addressed).
		Int("contents", len(l.blobs)).
		Msg("pmtiles committed")
	return nil
}
