// Package angles recovers the three vision-observable joint angles from 3D
// marker positions by undoing one joint rotation at a time.
package angles

import (
	"armservo/utils"
	"math"

	"github.com/golang/geo/r3"
)

// Marker indexes along the chain.
const (
	Base = iota
	Shoulder
	Elbow
	Wrist
)

// Extract returns (q1, q2, q3) for positions ordered base, shoulder, elbow,
// wrist. Consecutive joint axes must be mutually orthogonal (X, Y, X)
// as in the kinematics model; this is not a general pose solver.
func Extract(positions [4]r3.Vector) [3]float64 {
	upper := positions[Elbow].Sub(positions[Shoulder])
	joint2 := -math.Atan2(upper.Y, upper.Z)

	derotated := rotateAll(positions, func(v r3.Vector) r3.Vector {
		return utils.RotateAboutX(-joint2, v)
	})

	upper = derotated[Elbow].Sub(derotated[Shoulder])
	joint3 := math.Atan2(upper.X, upper.Z)

	derotated = rotateAll(derotated, func(v r3.Vector) r3.Vector {
		return utils.RotateAboutY(-joint3, v)
	})

	forearm := derotated[Wrist].Sub(derotated[Elbow])
	joint4 := -math.Atan2(forearm.Y, forearm.Z)

	return [3]float64{joint2, joint3, joint4}
}

func rotateAll(positions [4]r3.Vector, rotate func(r3.Vector) r3.Vector) [4]r3.Vector {
	var out [4]r3.Vector
	for i, p := range positions {
		out[i] = rotate(p)
	}
	return out
}
