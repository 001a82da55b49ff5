package relief

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/beetlebugorg/reliefvt/internal/tiles"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitGrid is a four-unit square world, so zoom z has 4^z tiles.
var unitGrid = TileGrid{OriginX: 0, OriginY: 4, Size: 4}

// testGrid covers unitGrid with 16x16 cells: value 0 on the left, 10 on
// the right, and a single 10 cell at (2, 2) inside the left half.
func testGrid() *Grid {
	g := NewGrid(16, 16, NorthUp(0, 4, 0.25))
	for row := 0; row < 16; row++ {
		for col := 8; col < 16; col++ {
			g.Set(col, row, 10)
		}
	}
	g.Set(2, 2, 10)
	return g
}

func testPlanner(t *testing.T) *ZoomBandPlanner {
	t.Helper()
	p, err := NewZoomBandPlanner(0, 3, []ZoomBand{
		{ZoomMin: 0, ZoomMax: 1, SieveThreshold: 4, SimplifyTolerance: 0.3},
		{ZoomMin: 2, ZoomMax: 3},
	})
	require.NoError(t, err)
	return p
}

func testOptions() Options {
	return Options{
		Levels:                2,
		PreserveSharedBorders: true,
		Grid:                  unitGrid,
		Workers:               2,
		TileWorkers:           2,
		Encoder:               tiles.MVTEncoder{},
		Name:                  "test",
		Logger:                zerolog.Nop(),
	}
}

func TestPipeline_Run(t *testing.T) {
	t.Parallel()

	p, err := New(testPlanner(t), testOptions())
	require.NoError(t, err)

	res, err := p.Run(context.Background(), testGrid())
	require.NoError(t, err)
	require.NotNil(t, res.Archive)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.Partial)
	assert.NoError(t, res.Err())
	assert.Empty(t, res.Failed())

	assert.Equal(t, 0.0, res.Quantize.Min)
	assert.Equal(t, 10.0, res.Quantize.Max)
	assert.Equal(t, 5.0, res.Quantize.Interval)

	require.Len(t, res.Bands, 2)
	low, high := res.Bands[0], res.Bands[1]
	assert.Equal(t, 1, low.Sieve.Merged, "single cell is sieved at low zoom")
	assert.Equal(t, 2, low.Features)
	assert.Equal(t, 0, high.Sieve.Merged)
	assert.Equal(t, 3, high.Features, "single cell survives at high zoom")
	assert.Equal(t, high.VerticesBefore, high.VerticesAfter, "zero tolerance keeps every vertex")

	a := res.Archive
	assert.Equal(t, 1+4+16+64, a.Len())
	m := a.Metadata()
	assert.Equal(t, 0, m.MinZoom)
	assert.Equal(t, 3, m.MaxZoom)
	assert.Equal(t, "test", m.Name)
	assert.Equal(t, testGrid().Extent(), m.Bounds)

	payload, ok := a.Tile(maptile.New(0, 0, 0))
	require.True(t, ok)
	layers, err := mvt.Unmarshal(payload)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, tiles.DefaultLayer, layers[0].Name)
	assert.Len(t, layers[0].Features, 2)
}

func TestPipeline_Deterministic(t *testing.T) {
	t.Parallel()

	p, err := New(testPlanner(t), testOptions())
	require.NoError(t, err)

	first, err := p.Run(context.Background(), testGrid())
	require.NoError(t, err)
	second, err := p.Run(context.Background(), testGrid())
	require.NoError(t, err)

	assert.Equal(t, first.Archive.Entries(), second.Archive.Entries())
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestPipeline_PartialFailure(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.MaxTilesPerZoom = 16
	p, err := New(testPlanner(t), opts)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), testGrid())
	require.NoError(t, err)
	assert.True(t, res.Partial)

	require.True(t, res.Bands[0].OK())
	failed := res.Failed()
	require.Len(t, failed, 1)

	var serr *StageError
	require.True(t, errors.As(failed[0].Err, &serr))
	assert.Equal(t, 1, serr.Band)
	assert.Equal(t, 2, serr.ZoomMin)
	assert.Equal(t, 3, serr.ZoomMax)
	assert.Equal(t, 3, serr.Zoom)
	assert.Equal(t, StageBuild, serr.Stage)

	var limit *TooManyTilesError
	require.True(t, errors.As(res.Err(), &limit))
	assert.Equal(t, 64, limit.Tiles)

	assert.Equal(t, 1+4, res.Archive.Len())
	assert.Equal(t, 1, res.Archive.Metadata().MaxZoom)
}

func TestPipeline_AllBandsFail(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.MaxTilesPerZoom = 1
	p, err := New(testPlanner(t), opts)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), testGrid())
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.Archive)
	assert.Len(t, res.Failed(), 2)

	var serr *StageError
	require.True(t, errors.As(err, &serr))
}

func TestPipeline_DegenerateRange(t *testing.T) {
	t.Parallel()

	flat := NewGrid(4, 4, NorthUp(0, 4, 1))
	for i := range flat.Samples {
		flat.Samples[i] = 7
	}

	p, err := New(testPlanner(t), testOptions())
	require.NoError(t, err)
	_, err = p.Run(context.Background(), flat)
	var derr *DegenerateRangeError
	require.True(t, errors.As(err, &derr), "got %v", err)
	assert.Equal(t, 7.0, derr.Value)

	opts := testOptions()
	opts.Quantize.Fallback = &ValueRange{Min: 0, Max: 14}
	p, err = New(testPlanner(t), opts)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), flat)
	require.NoError(t, err)
	assert.True(t, res.Quantize.UsedFallback)
}

func TestPipeline_NoDataOnly(t *testing.T) {
	t.Parallel()

	g := NewGrid(2, 2, NorthUp(0, 4, 2))
	for i := range g.Samples {
		g.Samples[i] = math.NaN()
	}
	p, err := New(testPlanner(t), testOptions())
	require.NoError(t, err)
	_, err = p.Run(context.Background(), g)

	var derr *DegenerateRangeError
	require.True(t, errors.As(err, &derr))
	assert.True(t, derr.Empty)
}

func TestPipeline_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := New(testPlanner(t), testOptions())
	require.NoError(t, err)
	_, err = p.Run(ctx, testGrid())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, testOptions())
	assert.Error(t, err)

	opts := testOptions()
	opts.Levels = 1
	_, err = New(testPlanner(t), opts)
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "levels", cerr.Field)

	opts = testOptions()
	opts.Quantize.Range = &ValueRange{Min: 10, Max: 0}
	_, err = New(testPlanner(t), opts)
	require.True(t, errors.As(err, &cerr), "got %v", err)
	assert.Equal(t, "range", cerr.Field)

	opts = testOptions()
	opts.Grid = TileGrid{}
	_, err = New(testPlanner(t), opts)
	assert.Error(t, err)

	_, err = New(testPlanner(t), DefaultOptions())
	assert.NoError(t, err)
}

func TestEdgeTiles(t *testing.T) {
	t.Parallel()

	got, err := EdgeTiles(unitGrid, NorthUp(0, 4, 0.25), 16, 16, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"0/0/0", "1/0/0", "1/0/1", "1/1/0", "1/1/1"}, got)

	got, err = EdgeTiles(unitGrid, NorthUp(0, 4, 0.25), 16, 16, 2, 2)
	require.NoError(t, err)
	assert.Len(t, got, 12)

	_, err = EdgeTiles(unitGrid, NorthUp(0, 4, 0.25), 16, 16, 3, 2)
	assert.Error(t, err)
	_, err = EdgeTiles(unitGrid, NorthUp(0, 4, 0.25), 0, 16, 0, 2)
	assert.Error(t, err)
}
