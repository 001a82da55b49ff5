package relief

import (
	"fmt"
	"sort"

	"github.com/beetlebugorg/reliefvt/internal/tiles"
)

// ZoomBand is a contiguous zoom range with its own generalization settings.
type ZoomBand struct {
	// ID is assigned by the planner in zoom order, starting at 0.
	ID      int
	ZoomMin int
	ZoomMax int
	// SieveThreshold is the minimum region area in cells. Regions below it
	// are merged into a neighbour. Values of 0 or 1 disable the sieve.
	SieveThreshold int
	// SimplifyTolerance is the Douglas-Peucker tolerance in planar units.
	SimplifyTolerance float64
}

func (b ZoomBand) String() string {
	return fmt.Sprintf("band %d [%d-%d]", b.ID, b.ZoomMin, b.ZoomMax)
}

// Contains reports whether z falls in the band.
func (b ZoomBand) Contains(z int) bool {
	return z >= b.ZoomMin && z <= b.ZoomMax
}

// ZoomBandPlanner is a validated band table that partitions
// [MinZoom, MaxZoom] with no gap and no overlap. It is immutable and safe
// to share between goroutines.
type ZoomBandPlanner struct {
	minZoom int
	maxZoom int
	bands   []ZoomBand
}

// NewZoomBandPlanner validates bands against [minZoom, maxZoom]. Bands may
// be given in any order; they are sorted by ZoomMin and numbered.
func NewZoomBandPlanner(minZoom, maxZoom int, bands []ZoomBand) (*ZoomBandPlanner, error) {
	if minZoom < 0 || maxZoom > tiles.MaxZoom || minZoom > maxZoom {
		return nil, &BandConfigError{Kind: KindBounds, Band: -1, From: minZoom, To: maxZoom,
			Reason: fmt.Sprintf("global zoom range [%d, %d] outside [0, %d]", minZoom, maxZoom, tiles.MaxZoom)}
	}
	if len(bands) == 0 {
		return nil, &BandConfigError{Kind: KindGap, Band: -1, From: minZoom, To: maxZoom, Reason: "no bands"}
	}

	sorted := make([]ZoomBand, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ZoomMin < sorted[j].ZoomMin })

	for i := range sorted {
		b := &sorted[i]
		b.ID = i
		switch {
		case b.ZoomMin > b.ZoomMax:
			return nil, &BandConfigError{Kind: KindInvalid, Band: i, From: b.ZoomMin, To: b.ZoomMax, Reason: "zoom_min exceeds zoom_max"}
		case b.SieveThreshold < 0:
			return nil, &BandConfigError{Kind: KindInvalid, Band: i, From: b.ZoomMin, To: b.ZoomMax, Reason: "negative sieve threshold"}
		case b.SimplifyTolerance < 0:
			return nil, &BandConfigError{Kind: KindInvalid, Band: i, From: b.ZoomMin, To: b.ZoomMax, Reason: "negative simplify tolerance"}
		}
	}

	first, last := sorted[0], sorted[len(sorted)-1]
	if first.ZoomMin < minZoom || last.ZoomMax > maxZoom {
		return nil, &BandConfigError{Kind: KindBounds, Band: -1, From: first.ZoomMin, To: last.ZoomMax,
			Reason: fmt.Sprintf("bands leave global range [%d, %d]", minZoom, maxZoom)}
	}
	if first.ZoomMin > minZoom {
		return nil, &BandConfigError{Kind: KindGap, Band: 0, From: minZoom, To: first.ZoomMin - 1}
	}
	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		switch {
		case next.ZoomMin <= prev.ZoomMax:
			return nil, &BandConfigError{Kind: KindOverlap, Band: i, From: next.ZoomMin, To: min(prev.ZoomMax, next.ZoomMax)}
		case next.ZoomMin > prev.ZoomMax+1:
			return nil, &BandConfigError{Kind: KindGap, Band: i, From: prev.ZoomMax + 1, To: next.ZoomMin - 1}
		}
	}
	if last.ZoomMax < maxZoom {
		return nil, &BandConfigError{Kind: KindGap, Band: len(sorted) - 1, From: last.ZoomMax + 1, To: maxZoom}
	}

	return &ZoomBandPlanner{minZoom: minZoom, maxZoom: maxZoom, bands: sorted}, nil
}

// Bands returns the bands in zoom order.
func (p *ZoomBandPlanner) Bands() []ZoomBand {
	out := make([]ZoomBand, len(p.bands))
	copy(out, p.bands)
	return out
}

// BandFor returns the band covering zoom z.
func (p *ZoomBandPlanner) BandFor(z int) (ZoomBand, bool) {
	i := sort.Search(len(p.bands), func(i int) bool { return p.bands[i].ZoomMax >= z })
	if i < len(p.bands) && p.bands[i].Contains(z) {
		return p.bands[i], true
	}
	return ZoomBand{}, false
}

func (p *ZoomBandPlanner) MinZoom() int { return p.minZoom }
func (p *ZoomBandPlanner) MaxZoom() int { return p.maxZoom }
func (p *ZoomBandPlanner) Len() int     { return len(p.bands) }
