// Package lidar holds the shared point-cloud value types used by the
// packet decoding layer and its consumers.
package lidar

import "math"

// Point is a single laser return in the sensor-local Cartesian frame.
// X/Y/Z are metres. Returns rejected by the decoder's distance or azimuth
// window are emitted as sentinels: all three coordinates NaN, Ring -1, and
// intensity either NaN or 0 depending on the sensor family convention.
type Point struct {
	X, Y, Z   float64
	Intensity float64 // raw 8-bit reflectivity; NaN on rejected points for some models
	Ring      int     // beam ring index bottom-to-top, -1 when unknown or rejected
}

// Finite reports whether the point carries real geometry. The decoder
// guarantees that X, Y and Z are either all finite or all NaN, so checking
// one coordinate is sufficient.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X)
}
