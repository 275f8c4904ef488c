package sim

import (
	"armservo/kinematics"
	"math"
	"time"
)

// Sweep is the demo trajectory: each vision joint swings through +-pi/2 at its
// own period (30 s, 36 s and 40 s). The base joint stays put.
func Sweep(base float64, elapsed time.Duration) kinematics.JointAngles {
	t := elapsed.Seconds()
	return kinematics.JointAngles{
		base,
		math.Pi / 2 * math.Sin(math.Pi/15*t),
		math.Pi / 2 * math.Sin(math.Pi/18*t),
		math.Pi / 2 * math.Sin(math.Pi/20*t),
	}
}
