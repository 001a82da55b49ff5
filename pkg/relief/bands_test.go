package relief

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewZoomBandPlanner_Accepts(t *testing.T) {
	t.Parallel()

	p, err := NewZoomBandPlanner(0, 14, []ZoomBand{
		{ZoomMin: 7, ZoomMax: 14, SieveThreshold: 4, SimplifyTolerance: 1},
		{ZoomMin: 0, ZoomMax: 6, SieveThreshold: 32, SimplifyTolerance: 10},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, p.MinZoom())
	assert.Equal(t, 14, p.MaxZoom())
	assert.Equal(t, 2, p.Len())

	bands := p.Bands()
	require.Len(t, bands, 2)
	assert.Equal(t, ZoomBand{ID: 0, ZoomMin: 0, ZoomMax: 6, SieveThreshold: 32, SimplifyTolerance: 10}, bands[0])
	assert.Equal(t, "band 1 [7-14]", bands[1].String())

	bands[0].ZoomMax = 99
	assert.Equal(t, 6, p.Bands()[0].ZoomMax, "Bands returns a copy")

	for z, want := range map[int]int{0: 0, 6: 0, 7: 1, 14: 1} {
		b, ok := p.BandFor(z)
		require.True(t, ok, "zoom %d", z)
		assert.Equal(t, want, b.ID, "zoom %d", z)
	}
	_, ok := p.BandFor(15)
	assert.False(t, ok)
	_, ok = p.BandFor(-1)
	assert.False(t, ok)
}

func TestNewZoomBandPlanner_SingleZoomBands(t *testing.T) {
	t.Parallel()

	p, err := NewZoomBandPlanner(3, 5, []ZoomBand{{ZoomMin: 3, ZoomMax: 3}, {ZoomMin: 4, ZoomMax: 4}, {ZoomMin: 5, ZoomMax: 5}})
	require.NoError(t, err)
	b, ok := p.BandFor(4)
	require.True(t, ok)
	assert.Equal(t, 1, b.ID)
}

func TestNewZoomBandPlanner_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		min, max int
		bands    []ZoomBand
		kind     string
		from, to int
	}{
		{"gap", 0, 14, []ZoomBand{{ZoomMin: 0, ZoomMax: 5}, {ZoomMin: 7, ZoomMax: 14}}, KindGap, 6, 6},
		{"overlap", 0, 14, []ZoomBand{{ZoomMin: 0, ZoomMax: 6}, {ZoomMin: 5, ZoomMax: 14}}, KindOverlap, 5, 6},
		{"duplicate", 0, 6, []ZoomBand{{ZoomMin: 0, ZoomMax: 6}, {ZoomMin: 0, ZoomMax: 6}}, KindOverlap, 0, 6},
		{"leading gap", 0, 14, []ZoomBand{{ZoomMin: 2, ZoomMax: 14}}, KindGap, 0, 1},
		{"trailing gap", 0, 14, []ZoomBand{{ZoomMin: 0, ZoomMax: 10}}, KindGap, 11, 14},
		{"past max", 0, 14, []ZoomBand{{ZoomMin: 0, ZoomMax: 16}}, KindBounds, 0, 16},
		{"inverted band", 0, 14, []ZoomBand{{ZoomMin: 0, ZoomMax: 14}, {ZoomMin: 9, ZoomMax: 8}}, KindInvalid, 9, 8},
		{"negative threshold", 0, 1, []ZoomBand{{ZoomMin: 0, ZoomMax: 1, SieveThreshold: -1}}, KindInvalid, 0, 1},
		{"negative tolerance", 0, 1, []ZoomBand{{ZoomMin: 0, ZoomMax: 1, SimplifyTolerance: -0.5}}, KindInvalid, 0, 1},
		{"global inverted", 5, 2, []ZoomBand{{ZoomMin: 2, ZoomMax: 5}}, KindBounds, 5, 2},
		{"global too deep", 0, 31, []ZoomBand{{ZoomMin: 0, ZoomMax: 31}}, KindBounds, 0, 31},
		{"no bands", 0, 3, nil, KindGap, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewZoomBandPlanner(tt.min, tt.max, tt.bands)
			require.Error(t, err)

			var berr *BandConfigError
			require.True(t, errors.As(err, &berr), "got %T", err)
			assert.Equal(t, tt.kind, berr.Kind)
			assert.Equal(t, tt.from, berr.From)
			assert.Equal(t, tt.to, berr.To)

			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "band errors are configuration errors")
			assert.Equal(t, "bands", cerr.Field)
		})
	}
}

func TestBandConfigError_Message(t *testing.T) {
	t.Parallel()

	_, err := NewZoomBandPlanner(0, 14, []ZoomBand{{ZoomMin: 0, ZoomMax: 5}, {ZoomMin: 7, ZoomMax: 14}})
	assert.EqualError(t, err, "invalid band table: gap at zoom 6 (band 1)")

	_, err = NewZoomBandPlanner(0, 14, []ZoomBand{{ZoomMin: 0, ZoomMax: 6}, {ZoomMin: 5, ZoomMax: 14}})
	assert.EqualError(t, err, "invalid band table: overlap at zooms 5-6 (band 1)")
}
