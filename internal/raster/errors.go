package raster

import (
	"fmt"
)

// ConfigError indicates a parameter outside its valid domain.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// DegenerateRangeError indicates that no usable value range exists for quantization.
type DegenerateRangeError struct {
	// Value is the single valid value found in the grid. Unused when Empty.
	Value float64
	// Empty is set when the grid holds no valid cells at all.
	Empty bool
}

func (e *DegenerateRangeError) Error() string {
	if e.Empty {
		return "degenerate value range: grid has no valid cells"
	}
	return fmt.Sprintf("degenerate value range: every valid cell equals %g (set an explicit or fallback range)", e.Value)
}

// InvalidGridError indicates a grid whose shape or transform cannot be processed.
type InvalidGridError struct {
	Reason string
}

func (e *InvalidGridError) Error() string {
	return fmt.Sprintf("invalid grid: %s", e.Reason)
}
