package geometry

import (
	"testing"

	"github.com/beetlebugorg/reliefvt/internal/raster"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staircase builds a size x size raster split along its diagonal.
func staircase(size int) *raster.ClassRaster {
	cr := raster.NewClassRaster(size, size, raster.NorthUp(0, float64(size), 1), 2)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			if col > row {
				cr.Set(col, row, 1)
			}
		}
	}
	return cr
}

type segmentKey [2]orb.Point

// sharedSegments collects undirected segments of f whose endpoints both
// appear in shared.
func sharedSegments(f Feature, shared map[orb.Point]bool) map[segmentKey]bool {
	out := make(map[segmentKey]bool)
	for _, r := range f.Polygon {
		for i := 0; i+1 < len(r); i++ {
			a, b := r[i], r[i+1]
			if !shared[a] || !shared[b] {
				continue
			}
			if lessPoint(b, a) {
				a, b = b, a
			}
			out[segmentKey{a, b}] = true
		}
	}
	return out
}

func commonPoints(a, b Feature) map[orb.Point]bool {
	inA := make(map[orb.Point]bool)
	for _, r := range a.Polygon {
		for _, p := range r {
			inA[p] = true
		}
	}
	out := make(map[orb.Point]bool)
	for _, r := range b.Polygon {
		for _, p := range r {
			if inA[p] {
				out[p] = true
			}
		}
	}
	return out
}

func TestSimplify_ZeroToleranceCopies(t *testing.T) {
	t.Parallel()

	features, err := Polygonize(staircase(6), 0)
	require.NoError(t, err)

	out, issues := Simplify(features, SimplifyOptions{Tolerance: 0, PreserveSharedBorders: true})
	assert.Empty(t, issues)
	if diff := cmp.Diff(features, out); diff != "" {
		t.Errorf("features changed (-want +got):\n%s", diff)
	}

	out[0].Polygon[0][0] = orb.Point{-1, -1}
	assert.NotEqual(t, orb.Point{-1, -1}, features[0].Polygon[0][0], "output must not alias input")
}

func TestSimplify_SharedBorderStaysIdentical(t *testing.T) {
	t.Parallel()

	const size = 12
	features, err := Polygonize(staircase(size), 0)
	require.NoError(t, err)
	require.Len(t, features, 2)

	out, issues := Simplify(features, SimplifyOptions{Tolerance: 1.5, PreserveSharedBorders: true})
	require.Len(t, out, 2)
	assert.Empty(t, issues)

	common := commonPoints(out[0], out[1])
	a, b := sharedSegments(out[0], common), sharedSegments(out[1], common)
	assert.NotEmpty(t, a)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("shared border differs between neighbours (-first +second):\n%s", diff)
	}
	assert.Less(t, CountVertices(out), CountVertices(features))

	for i := range out {
		assert.NoError(t, ValidateFeature(&out[i]))
		assert.Equal(t, features[i].ID, out[i].ID)
		assert.Equal(t, features[i].Class, out[i].Class)
	}
}

func TestSimplify_IndependentKeepsFeaturesValid(t *testing.T) {
	t.Parallel()

	features, err := Polygonize(staircase(10), 3)
	require.NoError(t, err)

	out, _ := Simplify(features, SimplifyOptions{Tolerance: 1.5})
	require.Len(t, out, len(features))
	for i := range out {
		assert.NoError(t, ValidateFeature(&out[i]))
		assert.Equal(t, 3, out[i].Band)
	}
}

func TestSimplify_RevertsCollapsedRings(t *testing.T) {
	t.Parallel()

	cr := raster.NewClassRaster(3, 3, raster.NorthUp(0, 3, 1), 2)
	cr.Set(1, 1, 1)
	features, err := Polygonize(cr, 2)
	require.NoError(t, err)

	for _, shared := range []bool{true, false} {
		out, issues := Simplify(features, SimplifyOptions{Tolerance: 10, PreserveSharedBorders: shared})
		require.Len(t, out, 2)
		assert.NotEmpty(t, issues, "shared=%v", shared)
		for _, issue := range issues {
			assert.Equal(t, 2, issue.Band)
			assert.Contains(t, issue.Error(), "simplification reverted")
		}
		for i := range out {
			assert.NoError(t, ValidateFeature(&out[i]), "shared=%v feature %d", shared, i)
		}
		assert.Len(t, out[1].Polygon[0], 5, "the island keeps its four corners")
	}
}

func TestSimplifyChain_ClosedLoopKeepsAnchor(t *testing.T) {
	loop := []orb.Point{{0, 0}, {1, 0.01}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}
	got := simplifyChain(loop, 0.1)

	assert.Equal(t, loop[0], got[0])
	assert.Equal(t, loop[0], got[len(got)-1])
	assert.Len(t, got, 5)
}
