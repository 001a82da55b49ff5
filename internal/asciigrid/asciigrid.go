// Package asciigrid reads ESRI ASCII grid rasters, optionally gzipped.
//
// The header is a run of "key value" lines (ncols, nrows, xllcorner or
// xllcenter, yllcorner or yllcenter, cellsize, and optionally
// NODATA_value), followed by nrows*ncols whitespace-separated samples,
// top row first.
package asciigrid

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/beetlebugorg/reliefvt/internal/raster"
)

// MaxCells is the largest ncols*nrows Read accepts.
const MaxCells = 1 << 30

// ErrSyntax indicates malformed grid text.
type ErrSyntax struct {
	Line   int
	Reason string
}

func (e *ErrSyntax) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("ascii grid line %d: %s", e.Line, e.Reason)
	}
	return "ascii grid: " + e.Reason
}

// Header is the parsed grid header.
type Header struct {
	Cols, Rows int
	// XLL and YLL locate the lower-left corner of the lower-left cell.
	XLL, YLL  float64
	CellSize  float64
	NoData    float64
	HasNoData bool
}

// Transform returns the north-up transform of the grid.
func (h Header) Transform() raster.Affine {
	return raster.NorthUp(h.XLL, h.YLL+float64(h.Rows)*h.CellSize, h.CellSize)
}

// ReadFile reads a grid from path, decompressing it when the name ends
// in ".gz".
func ReadFile(path string) (*raster.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	g, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return g, nil
}

// Read parses a grid.
func Read(r io.Reader) (*raster.Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	h, pending, line, err := readHeader(sc)
	if err != nil {
		return nil, err
	}

	g := raster.NewGrid(h.Cols, h.Rows, h.Transform())
	g.NoData, g.HasNoData = h.NoData, h.HasNoData

	n := 0
	add := func(tok string) error {
		if n >= len(g.Samples) {
			return &ErrSyntax{Line: line, Reason: fmt.Sprintf("more than %d samples", len(g.Samples))}
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return &ErrSyntax{Line: line, Reason: fmt.Sprintf("bad sample %q", tok)}
		}
		g.Samples[n] = v
		n++
		return nil
	}

	for _, tok := range pending {
		if err := add(tok); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		line++
		for _, tok := range strings.Fields(sc.Text()) {
			if err := add(tok); err != nil {
				return nil, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if n != len(g.Samples) {
		return nil, &ErrSyntax{Reason: fmt.Sprintf("have %d samples, want %d", n, len(g.Samples))}
	}
	return g, nil
}

// readHeader consumes header lines. The first data line is returned as
// pending tokens since the header has no terminator.
func readHeader(sc *bufio.Scanner) (h Header, pending []string, line int, err error) {
	seen := map[string]float64{}
	var center bool

	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		key := strings.ToLower(fields[0])
		if _, numErr := strconv.ParseFloat(key, 64); numErr == nil {
			pending = fields
			break
		}
		if len(fields) != 2 {
			return h, nil, line, &ErrSyntax{Line: line, Reason: fmt.Sprintf("header %q wants one value", fields[0])}
		}
		v, perr := strconv.ParseFloat(fields[1], 64)
		if perr != nil {
			return h, nil, line, &ErrSyntax{Line: line, Reason: fmt.Sprintf("header %s: bad value %q", fields[0], fields[1])}
		}
		switch key {
		case "xllcenter", "yllcenter":
			center = true
			key = strings.Replace(key, "center", "corner", 1)
		case "ncols", "nrows", "xllcorner", "yllcorner", "cellsize", "nodata_value":
		default:
			return h, nil, line, &ErrSyntax{Line: line, Reason: fmt.Sprintf("unknown header %q", fields[0])}
		}
		seen[key] = v
	}
	if err := sc.Err(); err != nil {
		return h, nil, line, err
	}

	for _, k := range []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize"} {
		if _, ok := seen[k]; !ok {
			return h, nil, line, &ErrSyntax{Reason: "missing header " + k}
		}
	}
	cols, rows := seen["ncols"], seen["nrows"]
	if !(cols >= 1 && rows >= 1) || cols != math.Trunc(cols) || rows != math.Trunc(rows) {
		return h, nil, line, &ErrSyntax{Reason: fmt.Sprintf("bad dimensions %gx%g", cols, rows)}
	}
	if cols*rows > MaxCells {
		return h, nil, line, &ErrSyntax{Reason: fmt.Sprintf("dimensions %gx%g exceed %d cells", cols, rows, MaxCells)}
	}
	h.Cols, h.Rows = int(cols), int(rows)
	h.CellSize = seen["cellsize"]
	if h.CellSize <= 0 {
		return h, nil, line, &ErrSyntax{Reason: fmt.Sprintf("cellsize %g must be positive", h.CellSize)}
	}
	h.XLL, h.YLL = seen["xllcorner"], seen["yllcorner"]
	if center {
		h.XLL -= h.CellSize / 2
		h.YLL -= h.CellSize / 2
	}
	h.NoData, h.HasNoData = seen["nodata_value"]
	return h, pending, line, nil
}
