package raster

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridOf(width, height int, values ...float64) *Grid {
	g := NewGrid(width, height, NorthUp(0, float64(height), 1))
	copy(g.Samples, values)
	return g
}

func TestQuantize_EqualWidthClasses(t *testing.T) {
	t.Parallel()

	g := gridOf(4, 1, 0, 5, 10, 15)
	cr, stats, err := Quantize(g, 4, QuantizeOptions{})
	require.NoError(t, err)

	if diff := cmp.Diff([]int16{0, 1, 2, 3}, cr.Classes); diff != "" {
		t.Errorf("classes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0.0, stats.Min)
	assert.Equal(t, 15.0, stats.Max)
	assert.InDelta(t, 3.75, stats.Interval, 1e-12)
	assert.Equal(t, 4, stats.ValidCells)
	assert.Equal(t, 0, stats.NoDataCells)
	assert.Equal(t, []int{1, 1, 1, 1}, stats.Histogram)
	assert.False(t, stats.UsedFallback)
}

func TestQuantize_NoDataStaysUnclassified(t *testing.T) {
	t.Parallel()

	g := gridOf(5, 1, 1, -9999, math.NaN(), 3, math.Inf(1))
	g.NoData = -9999
	g.HasNoData = true

	cr, stats, err := Quantize(g, 2, QuantizeOptions{})
	require.NoError(t, err)

	want := []int16{0, NoDataClass, NoDataClass, 1, NoDataClass}
	if diff := cmp.Diff(want, cr.Classes); diff != "" {
		t.Errorf("classes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, stats.ValidCells)
	assert.Equal(t, 3, stats.NoDataCells)
	assert.Equal(t, []int{1, 1}, stats.Histogram)
}

func TestQuantize_ExplicitRangeClamps(t *testing.T) {
	t.Parallel()

	g := gridOf(4, 1, -5, 0, 9.99, 20)
	cr, _, err := Quantize(g, 5, QuantizeOptions{Range: &ValueRange{Min: 0, Max: 10}})
	require.NoError(t, err)

	if diff := cmp.Diff([]int16{0, 0, 4, 4}, cr.Classes); diff != "" {
		t.Errorf("classes mismatch (-want +got):\n%s", diff)
	}
}

func TestQuantize_DegenerateRange(t *testing.T) {
	t.Parallel()

	g := gridOf(3, 1, 7, 7, 7)

	_, _, err := Quantize(g, 4, QuantizeOptions{})
	var degenerate *DegenerateRangeError
	require.True(t, errors.As(err, &degenerate), "got %v", err)
	assert.Equal(t, 7.0, degenerate.Value)
	assert.False(t, degenerate.Empty)

	cr, stats, err := Quantize(g, 4, QuantizeOptions{Fallback: &ValueRange{Min: 0, Max: 8}})
	require.NoError(t, err)
	assert.True(t, stats.UsedFallback)
	if diff := cmp.Diff([]int16{3, 3, 3}, cr.Classes); diff != "" {
		t.Errorf("classes mismatch (-want +got):\n%s", diff)
	}
}

func TestQuantize_NoValidCells(t *testing.T) {
	t.Parallel()

	g := gridOf(2, 1, math.NaN(), math.NaN())
	_, _, err := Quantize(g, 4, QuantizeOptions{})

	var degenerate *DegenerateRangeError
	require.True(t, errors.As(err, &degenerate))
	assert.True(t, degenerate.Empty)
}

func TestQuantize_RejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		grid  *Grid
		level int
		opts  QuantizeOptions
		check func(t *testing.T, err error)
	}{
		{
			name:  "one level",
			grid:  gridOf(2, 1, 0, 1),
			level: 1,
			check: func(t *testing.T, err error) {
				var cfg *ConfigError
				require.True(t, errors.As(err, &cfg))
				assert.Equal(t, "levels", cfg.Field)
			},
		},
		{
			name:  "inverted range",
			grid:  gridOf(2, 1, 0, 1),
			level: 4,
			opts:  QuantizeOptions{Range: &ValueRange{Min: 5, Max: 1}},
			check: func(t *testing.T, err error) {
				var cfg *ConfigError
				require.True(t, errors.As(err, &cfg))
			},
		},
		{
			name:  "short sample slice",
			grid:  &Grid{Width: 2, Height: 2, Transform: NorthUp(0, 2, 1), Samples: []float64{1}},
			level: 4,
			check: func(t *testing.T, err error) {
				var bad *InvalidGridError
				require.True(t, errors.As(err, &bad))
			},
		},
		{
			name:  "singular transform",
			grid:  &Grid{Width: 1, Height: 1, Samples: []float64{1}},
			level: 4,
			check: func(t *testing.T, err error) {
				var bad *InvalidGridError
				require.True(t, errors.As(err, &bad))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Quantize(tt.grid, tt.level, tt.opts)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestQuantizeOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		opts  QuantizeOptions
		field string
	}{
		{"unset", QuantizeOptions{}, ""},
		{"range", QuantizeOptions{Range: &ValueRange{Min: 0, Max: 10}}, ""},
		{"flat range", QuantizeOptions{Range: &ValueRange{Min: 3, Max: 3}}, ""},
		{"inverted range", QuantizeOptions{Range: &ValueRange{Min: 5, Max: 1}}, "range"},
		{"infinite range", QuantizeOptions{Range: &ValueRange{Min: math.Inf(-1), Max: 1}}, "range"},
		{"nan range", QuantizeOptions{Range: &ValueRange{Min: 0, Max: math.NaN()}}, "range"},
		{"fallback", QuantizeOptions{Fallback: &ValueRange{Min: -1, Max: 1}}, ""},
		{"flat fallback", QuantizeOptions{Fallback: &ValueRange{Min: 2, Max: 2}}, "fallback"},
		{"inverted fallback", QuantizeOptions{Fallback: &ValueRange{Min: 2, Max: 1}}, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfg *ConfigError
			require.True(t, errors.As(err, &cfg), "got %v", err)
			assert.Equal(t, tt.field, cfg.Field)
		})
	}

	// A bad fallback is rejected even when the data would not need it.
	_, _, err := Quantize(gridOf(2, 1, 0, 1), 2, QuantizeOptions{Fallback: &ValueRange{Min: 1, Max: 0}})
	var cfg *ConfigError
	require.True(t, errors.As(err, &cfg))
	assert.Equal(t, "fallback", cfg.Field)
}

func TestQuantize_ClassesAlwaysInRange(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		levels := 2 + rng.Intn(30)
		g := NewGrid(16, 16, NorthUp(0, 16, 1))
		for i := range g.Samples {
			g.Samples[i] = rng.NormFloat64() * 1e3
		}
		g.Samples[rng.Intn(len(g.Samples))] = math.NaN()

		cr, _, err := Quantize(g, levels, QuantizeOptions{})
		require.NoError(t, err)
		for i, c := range cr.Classes {
			if math.IsNaN(g.Samples[i]) {
				assert.Equal(t, NoDataClass, c)
				continue
			}
			if c < 0 || int(c) >= levels {
				t.Fatalf("trial %d: cell %d class %d outside [0,%d)", trial, i, c, levels)
			}
		}
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		want int
	}{
		{"minimum", 0, 0},
		{"inside", 4.9, 1},
		{"boundary", 5, 2},
		{"maximum", 10, 3},
		{"below", -1, 0},
		{"above", 100, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.v, 0, 2.5, 4); got != tt.want {
				t.Errorf("ClassOf(%v) = %d, want %d", tt.v, got, tt.want)
			}
		})
	}
}
