package tiles

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTile() *VectorTile {
	return &VectorTile{
		Coord:  maptile.New(1, 2, 3),
		Extent: 4096,
		Features: []TileFeature{
			{Class: 0, Geometry: orb.MultiPolygon{box(0, 0, 2048, 4096)}},
			{Class: 3, Geometry: orb.MultiPolygon{box(2048, 0, 4096, 4096)}},
		},
	}
}

func TestMVTEncoder_Encode(t *testing.T) {
	t.Parallel()

	enc := MVTEncoder{Layer: "contours"}
	data, err := enc.Encode(sampleTile())
	require.NoError(t, err)
	require.NotEmpty(t, data)

	layers, err := mvt.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "contours", layers[0].Name)
	assert.Equal(t, uint32(4096), layers[0].Extent)
	require.Len(t, layers[0].Features, 2)
	assert.EqualValues(t, 0, layers[0].Features[0].Properties[ClassAttribute])
	assert.EqualValues(t, 3, layers[0].Features[1].Properties[ClassAttribute])
}

func TestMVTEncoder_Gzip(t *testing.T) {
	t.Parallel()

	enc := MVTEncoder{Gzip: true}
	data, err := enc.Encode(sampleTile())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, data[:2])

	layers, err := mvt.UnmarshalGzipped(data)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, DefaultLayer, layers[0].Name)
}

func TestMVTEncoder_Describe(t *testing.T) {
	assert.Equal(t, "pbf", MVTEncoder{}.Format())
	assert.Equal(t, "none", MVTEncoder{}.Compression())
	assert.Equal(t, "gzip", MVTEncoder{Gzip: true}.Compression())
	assert.Equal(t, DefaultLayer, MVTEncoder{}.LayerName())
}
