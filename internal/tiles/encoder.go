package tiles

import (
	"fmt"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
)

// DefaultLayer names the single layer written into every tile.
const DefaultLayer = "relief"

// ClassAttribute is the feature property carrying the class index.
const ClassAttribute = "class"

// Encoder serializes a tile into the bytes stored in an archive.
type Encoder interface {
	Encode(t *VectorTile) ([]byte, error)
	// Format names the payload type, e.g. "pbf".
	Format() string
	// Compression names the payload compression, "gzip" or "none".
	Compression() string
}

// MVTEncoder writes Mapbox Vector Tiles with one layer and one feature per
// class.
type MVTEncoder struct {
	Layer string
	Gzip  bool
}

// Encode implements Encoder.
func (e MVTEncoder) Encode(t *VectorTile) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, f := range t.Features {
		gf := geojson.NewFeature(f.Geometry)
		gf.Properties[ClassAttribute] = f.Class
		fc.Append(gf)
	}

	layer := mvt.NewLayer(e.LayerName(), fc)
	layer.Version = 2
	if t.Extent > 0 {
		layer.Extent = t.Extent
	}
	layers := mvt.Layers{layer}

	var data []byte
	var err error
	if e.Gzip {
		data, err = mvt.MarshalGzipped(layers)
	} else {
		data, err = mvt.Marshal(layers)
	}
	if err != nil {
		return nil, fmt.Errorf("encode tile %s: %w", FormatTile(t.Coord), err)
	}
	return data, nil
}

// LayerName returns the configured layer or DefaultLayer.
func (e MVTEncoder) LayerName() string {
	if e.Layer == "" {
		return DefaultLayer
	}
	return e.Layer
}

// Format implements Encoder.
func (e MVTEncoder) Format() string {
	return "pbf"
}

// Compression implements Encoder.
func (e MVTEncoder) Compression() string {
	if e.Gzip {
		return "gzip"
	}
	return "none"
}
