package tiles

import (
	"testing"

	"github.com/beetlebugorg/reliefvt/internal/geometry"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

// gridFeatures lays out n x n unit squares.
func gridFeatures(n int) []geometry.Feature {
	features := make([]geometry.Feature, 0, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			fx, fy := float64(x), float64(y)
			features = append(features, geometry.Feature{
				ID:      uint64(len(features) + 1),
				Class:   (x + y) % 3,
				Polygon: box(fx, fy, fx+1, fy+1),
			})
		}
	}
	return features
}

func linearQuery(features []geometry.Feature, b orb.Bound) []int {
	var out []int
	for i, f := range features {
		if f.Bound().Intersects(b) {
			out = append(out, i)
		}
	}
	return out
}

func TestFeatureIndex_MatchesLinearScan(t *testing.T) {
	features := gridFeatures(20)
	idx := newFeatureIndex(features)

	for _, q := range []orb.Bound{
		{Min: orb.Point{2.5, 2.5}, Max: orb.Point{4.5, 3.5}},
		{Min: orb.Point{-1, -1}, Max: orb.Point{0.5, 0.5}},
		{Min: orb.Point{19.5, 19.5}, Max: orb.Point{30, 30}},
	} {
		assert.Equal(t, linearQuery(features, q), idx.Query(q), "query %v", q)
	}
	assert.Empty(t, idx.Query(orb.Bound{Min: orb.Point{50, 50}, Max: orb.Point{60, 60}}))
	assert.Nil(t, newFeatureIndex(nil).Query(orb.Bound{Max: orb.Point{1, 1}}))
}

// BenchmarkFeatureIndex_Rtree benchmarks tile-sized queries with the R-tree index.
func BenchmarkFeatureIndex_Rtree(b *testing.B) {
	features := gridFeatures(100)
	idx := newFeatureIndex(features)
	q := orb.Bound{Min: orb.Point{40, 40}, Max: orb.Point{50, 50}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Query(q)
	}
}

// BenchmarkFeatureIndex_Linear benchmarks the same queries with a linear scan.
func BenchmarkFeatureIndex_Linear(b *testing.B) {
	features := gridFeatures(100)
	q := orb.Bound{Min: orb.Point{40, 40}, Max: orb.Point{50, 50}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = linearQuery(features, q)
	}
}
