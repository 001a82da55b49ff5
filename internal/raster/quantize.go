package raster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ValueRange is a closed interval of sample values.
type ValueRange struct {
	Min float64
	Max float64
}

// QuantizeOptions tunes how the class interval is derived.
type QuantizeOptions struct {
	// Range overrides the observed min/max. Values outside it are clamped
	// to the first or last class.
	Range *ValueRange

	// Fallback is used only when every valid cell holds the same value.
	// Without it such a grid is rejected with DegenerateRangeError.
	Fallback *ValueRange
}

// Validate checks the configured intervals without looking at any data.
// Range must be finite with Max >= Min; an equal Range is reported as
// degenerate by Quantize. Fallback must be finite and strictly increasing.
func (o QuantizeOptions) Validate() error {
	if r := o.Range; r != nil && (!isFinite(r.Min) || !isFinite(r.Max) || r.Max < r.Min) {
		return badInterval("range", r)
	}
	if fb := o.Fallback; fb != nil && (!isFinite(fb.Min) || !isFinite(fb.Max) || !(fb.Max > fb.Min)) {
		return badInterval("fallback", fb)
	}
	return nil
}

func badInterval(field string, r *ValueRange) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf("[%g, %g] is not a finite increasing interval", r.Min, r.Max)}
}

// QuantizeStats describes a completed quantization.
type QuantizeStats struct {
	Min          float64
	Max          float64
	Interval     float64
	Levels       int
	ValidCells   int
	NoDataCells  int
	UsedFallback bool
	// Histogram counts valid cells per class.
	Histogram []int
}

// Quantize assigns every valid cell of g one of levels equal-width classes.
//
// The interval is (max-min)/levels where min and max come from the valid
// cells unless opts.Range is set. A value v maps to
// floor((v-min)/interval) clamped to [0, levels-1], so the maximum lands in
// the last class. Nodata cells map to NoDataClass.
//
// Example:
//
//	g := raster.NewGrid(4, 1, raster.NorthUp(0, 1, 1))
//	copy(g.Samples, []float64{0, 5, 10, 15})
//	cr, _, _ := raster.Quantize(g, 4, raster.QuantizeOptions{})
//	// cr.Classes == []int16{0, 1, 2, 3}
func Quantize(g *Grid, levels int, opts QuantizeOptions) (*ClassRaster, QuantizeStats, error) {
	stats := QuantizeStats{Levels: levels}
	if levels < 2 {
		return nil, stats, &ConfigError{Field: "levels", Reason: fmt.Sprintf("need at least 2 levels, got %d", levels)}
	}
	if levels > MaxLevels {
		return nil, stats, &ConfigError{Field: "levels", Reason: fmt.Sprintf("at most %d levels supported, got %d", MaxLevels, levels)}
	}
	if err := g.Validate(); err != nil {
		return nil, stats, err
	}
	if err := opts.Validate(); err != nil {
		return nil, stats, err
	}

	valid := make([]float64, 0, len(g.Samples))
	for _, v := range g.Samples {
		if !g.IsNoData(v) {
			valid = append(valid, v)
		}
	}
	stats.ValidCells = len(valid)
	stats.NoDataCells = len(g.Samples) - len(valid)

	lo, hi, fallback, err := valueRange(valid, opts)
	if err != nil {
		return nil, stats, err
	}
	stats.Min, stats.Max, stats.UsedFallback = lo, hi, fallback
	stats.Interval = (hi - lo) / float64(levels)

	cr := NewClassRaster(g.Width, g.Height, g.Transform, levels)
	for i, v := range g.Samples {
		if g.IsNoData(v) {
			cr.Classes[i] = NoDataClass
			continue
		}
		cr.Classes[i] = int16(ClassOf(v, lo, stats.Interval, levels))
	}
	stats.Histogram = cr.Histogram()
	return cr, stats, nil
}

func valueRange(valid []float64, opts QuantizeOptions) (lo, hi float64, fallback bool, err error) {
	if r := opts.Range; r != nil {
		if r.Max == r.Min {
			return 0, 0, false, &DegenerateRangeError{Value: r.Min}
		}
		return r.Min, r.Max, false, nil
	}

	if len(valid) == 0 {
		return 0, 0, false, &DegenerateRangeError{Empty: true}
	}
	lo, hi = floats.Min(valid), floats.Max(valid)
	if hi > lo {
		return lo, hi, false, nil
	}

	fb := opts.Fallback
	if fb == nil {
		return 0, 0, false, &DegenerateRangeError{Value: lo}
	}
	return fb.Min, fb.Max, true, nil
}

// ClassOf maps v to its class for the given range start and interval.
// The result is always within [0, levels-1].
func ClassOf(v, min, interval float64, levels int) int {
	f := math.Floor((v - min) / interval)
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > float64(levels-1):
		return levels - 1
	}
	return int(f)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
