package geometry

import (
	"testing"

	"github.com/beetlebugorg/reliefvt/internal/raster"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classRaster(width, height int, classes ...int16) *raster.ClassRaster {
	cr := raster.NewClassRaster(width, height, raster.NorthUp(0, float64(height), 1), 8)
	copy(cr.Classes, classes)
	return cr
}

func pointSet(r orb.Ring) map[orb.Point]bool {
	set := make(map[orb.Point]bool, len(r))
	for _, p := range r {
		set[p] = true
	}
	return set
}

func TestPolygonize_SingleCell(t *testing.T) {
	t.Parallel()

	features, err := Polygonize(classRaster(1, 1, 2), 5)
	require.NoError(t, err)
	require.Len(t, features, 1)

	f := features[0]
	assert.Equal(t, uint64(1), f.ID)
	assert.Equal(t, 2, f.Class)
	assert.Equal(t, 5, f.Band)
	require.Len(t, f.Polygon, 1)
	assert.Len(t, f.Polygon[0], 5)
	assert.Equal(t, orb.CCW, f.Polygon[0].Orientation())
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, f.Bound())
}

func TestPolygonize_HoleSharesBorder(t *testing.T) {
	t.Parallel()

	cr := classRaster(3, 3,
		0, 0, 0,
		0, 1, 0,
		0, 0, 0,
	)
	features, err := Polygonize(cr, 0)
	require.NoError(t, err)
	require.Len(t, features, 2)

	outer, inner := features[0], features[1]
	assert.Equal(t, 0, outer.Class)
	assert.Equal(t, 1, inner.Class)
	require.Len(t, outer.Polygon, 2)
	require.Len(t, inner.Polygon, 1)

	assert.Equal(t, orb.CCW, outer.Polygon[0].Orientation())
	assert.Equal(t, orb.CW, outer.Polygon[1].Orientation())
	assert.Equal(t, pointSet(inner.Polygon[0]), pointSet(outer.Polygon[1]))
	assert.InDelta(t, 8.0, planar.Area(outer.Polygon), 1e-9)

	for _, f := range features {
		assert.NoError(t, ValidateFeature(&f))
	}
}

func TestPolygonize_HoleTouchesExteriorAtCorner(t *testing.T) {
	t.Parallel()

	cr := classRaster(3, 3,
		0, 0, 0,
		0, 1, 0,
		0, 0, 1,
	)
	features, err := Polygonize(cr, 0)
	require.NoError(t, err)
	require.Len(t, features, 3, "diagonal cells of class 1 are separate regions")

	f := features[0]
	require.Len(t, f.Polygon, 2)
	assert.Len(t, f.Polygon[0], 7)
	assert.Len(t, f.Polygon[1], 5)
	assert.True(t, pointSet(f.Polygon[0])[orb.Point{2, 1}])
	assert.True(t, pointSet(f.Polygon[1])[orb.Point{2, 1}])
	assert.NoError(t, ValidatePolygon(f.Polygon))
}

func TestPolygonize_CollinearCornersKeptAtJunctions(t *testing.T) {
	t.Parallel()

	// The bottom edge of the top row changes neighbour at x=1.
	cr := classRaster(2, 2,
		0, 0,
		1, 2,
	)
	features, err := Polygonize(cr, 0)
	require.NoError(t, err)
	require.Len(t, features, 3)

	top := features[0]
	assert.Len(t, top.Polygon[0], 6)
	assert.True(t, pointSet(top.Polygon[0])[orb.Point{1, 1}])
}

func TestPolygonize_SkipsNoData(t *testing.T) {
	t.Parallel()

	cr := classRaster(3, 1, 1, raster.NoDataClass, 1)
	features, err := Polygonize(cr, 0)
	require.NoError(t, err)
	require.Len(t, features, 2)
	for _, f := range features {
		assert.Equal(t, 1, f.Class)
		assert.InDelta(t, 1.0, planar.Area(f.Polygon), 1e-9)
	}

	empty := classRaster(2, 1, raster.NoDataClass, raster.NoDataClass)
	features, err = Polygonize(empty, 0)
	require.NoError(t, err)
	assert.Empty(t, features)
}

func TestPolygonize_AreaMatchesCellCount(t *testing.T) {
	t.Parallel()

	cr := classRaster(5, 4,
		0, 0, 1, 1, 2,
		0, 1, 1, 2, 2,
		3, 3, 1, 2, 0,
		3, 0, 0, 0, 0,
	)
	features, err := Polygonize(cr, 0)
	require.NoError(t, err)

	total := 0.0
	for _, f := range features {
		total += planar.Area(f.Polygon)
		assert.NoError(t, ValidatePolygon(f.Polygon), "feature %d", f.ID)
	}
	assert.InDelta(t, 20.0, total, 1e-9)
}

func TestPolygonize_AppliesTransform(t *testing.T) {
	t.Parallel()

	cr := raster.NewClassRaster(2, 1, raster.NorthUp(100, 50, 10), 2)
	features, err := Polygonize(cr, 0)
	require.NoError(t, err)
	require.Len(t, features, 1)

	assert.Equal(t, orb.Bound{Min: orb.Point{100, 40}, Max: orb.Point{120, 50}}, features[0].Bound())
	assert.Len(t, features[0].Polygon[0], 5)
}

func TestPolygonize_RejectsBadShape(t *testing.T) {
	t.Parallel()

	cr := &raster.ClassRaster{Width: 2, Height: 2, Transform: raster.NorthUp(0, 2, 1), Classes: []int16{0}}
	_, err := Polygonize(cr, 0)
	assert.Error(t, err)
}
