package tiles

import (
	"sort"

	"github.com/beetlebugorg/reliefvt/internal/geometry"
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// featureIndex provides fast bound queries over a band's features.
type featureIndex struct {
	rtree    *rtreego.Rtree
	minSize  float64
	features []geometry.Feature
}

// indexedFeature wraps a feature position for R-tree storage.
type indexedFeature struct {
	idx  int
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial interface.
func (f *indexedFeature) Bounds() rtreego.Rect {
	return f.rect
}

func newFeatureIndex(features []geometry.Feature) *featureIndex {
	fi := &featureIndex{
		rtree:    rtreego.NewTree(2, 25, 50),
		features: features,
	}
	if len(features) == 0 {
		return fi
	}

	all := features[0].Bound()
	for _, f := range features[1:] {
		all = all.Union(f.Bound())
	}
	// Point-sized boxes need a non-zero extent for the tree.
	fi.minSize = (all.Max[0] - all.Min[0] + all.Max[1] - all.Min[1]) * 1e-9
	if fi.minSize <= 0 {
		fi.minSize = 1e-9
	}
	for i, f := range features {
		fi.rtree.Insert(&indexedFeature{idx: i, rect: geometry.BoundRect(f.Bound(), fi.minSize)})
	}
	return fi
}

// Query returns the positions of features whose bound intersects b, in
// ascending order.
func (fi *featureIndex) Query(b orb.Bound) []int {
	if len(fi.features) == 0 {
		return nil
	}
	hits := fi.rtree.SearchIntersect(geometry.BoundRect(b, fi.minSize))
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*indexedFeature).idx)
	}
	sort.Ints(out)
	return out
}
