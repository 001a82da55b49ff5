package geometry

import (
	"fmt"
)

// ErrInvalidGeometry indicates a ring or polygon that is not a valid simple polygon.
type ErrInvalidGeometry struct {
	Ring   int
	Reason string
}

func (e *ErrInvalidGeometry) Error() string {
	if e.Ring >= 0 {
		return fmt.Sprintf("invalid geometry (ring %d): %s", e.Ring, e.Reason)
	}
	return fmt.Sprintf("invalid geometry: %s", e.Reason)
}

// TopologyError reports a feature whose simplified rings were rejected and
// restored to their input vertices. It is informational; the feature is kept.
type TopologyError struct {
	Band      int
	FeatureID uint64
	Class     int
	Ring      int
	Reason    string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("band %d feature %d (class %d) ring %d: simplification reverted: %s",
		e.Band, e.FeatureID, e.Class, e.Ring, e.Reason)
}
