package parse

import (
	"math"
	"sync"
)

// The projection path looks angles up in precomputed sine/cosine tables
// indexed by integer centi-degrees. Building the two 36000-entry tables
// costs a few milliseconds, so they are process-global and built once on
// first use; afterwards they are read-only and safely shared by every
// decoder instance.

const rotationUnits = 36000 // centi-degrees per revolution

type trigTables struct {
	sin [rotationUnits]float64
	cos [rotationUnits]float64
}

var trig = sync.OnceValue(func() *trigTables {
	t := &trigTables{}
	for i := 0; i < rotationUnits; i++ {
		rad := float64(i) * 0.01 * math.Pi / 180
		t.sin[i] = math.Sin(rad)
		t.cos[i] = math.Cos(rad)
	}
	return t
})

// wrapAngle normalises an integer centi-degree angle into [0, 36000) so it
// can index the tables. Works for negative inputs.
func wrapAngle(a int) int {
	return ((a % rotationUnits) + rotationUnits) % rotationUnits
}
