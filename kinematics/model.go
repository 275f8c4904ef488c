// Package kinematics holds the closed-form model of the four joint arm: forward
// kinematics, the analytic Jacobian and its pseudo-inverse.
package kinematics

import (
	"math"

	"github.com/golang/geo/r3"
)

// Link geometry of the arm. Not configurable.
const (
	ShoulderHeight = 2.5 // base joint to shoulder joint, along +Z
	UpperArmLength = 3.5 // shoulder to elbow
	ForearmLength  = 3.0 // elbow to end effector
)

// NumJoints is the number of joints in the chain, base included.
const NumJoints = 4

// BaseJoint is the index of the vertical-axis joint held outside the vision loop.
const BaseJoint = 0

// JointAngles is q0..q3 in radians. q0 rotates about the vertical axis.
type JointAngles [NumJoints]float64

// FromVision builds a full joint vector from the externally held base angle and
// the three vision-derived angles.
func FromVision(base float64, vision [3]float64) JointAngles {
	return JointAngles{base, vision[0], vision[1], vision[2]}
}

// Vision returns q1..q3.
func (q JointAngles) Vision() [3]float64 {
	return [3]float64{q[1], q[2], q[3]}
}

// Slice returns the angles as a slice, for DoCommand payloads.
func (q JointAngles) Slice() []float64 {
	return []float64{q[0], q[1], q[2], q[3]}
}

type trig struct {
	s0, c0, s1, c1, s2, c2, s3, c3 float64
}

func newTrig(q JointAngles) trig {
	var t trig
	t.s0, t.c0 = math.Sincos(q[0])
	t.s1, t.c1 = math.Sincos(q[1])
	t.s2, t.c2 = math.Sincos(q[2])
	t.s3, t.c3 = math.Sincos(q[3])
	return t
}

// a and b are the horizontal components of the upper arm direction.
func (t trig) a() float64 { return t.c0*t.s2 + t.s0*t.s1*t.c2 }
func (t trig) b() float64 { return t.s0*t.s2 - t.c0*t.s1*t.c2 }

// Forward returns the end effector position for the given joint angles.
func Forward(q JointAngles) r3.Vector {
	t := newTrig(q)
	a, b := t.a(), t.b()
	return r3.Vector{
		X: UpperArmLength*a + ForearmLength*(t.s0*t.c1*t.s3+t.c3*a),
		Y: UpperArmLength*b + ForearmLength*(t.c3*b-t.c0*t.c1*t.s3),
		Z: UpperArmLength*t.c1*t.c2 + ForearmLength*(t.c1*t.c2*t.c3-t.s1*t.s3) + ShoulderHeight,
	}
}

// JointPositions returns the positions of the base, shoulder, elbow and wrist
// markers, in the frame centred on the base joint. The wrist marker is the end
// effector.
func JointPositions(q JointAngles) [NumJoints]r3.Vector {
	t := newTrig(q)
	elbow := r3.Vector{
		X: UpperArmLength * t.a(),
		Y: UpperArmLength * t.b(),
		Z: UpperArmLength*t.c1*t.c2 + ShoulderHeight,
	}
	return [NumJoints]r3.Vector{
		{},
		{Z: ShoulderHeight},
		elbow,
		Forward(q),
	}
}

// Reach is the farthest the end effector can be from the shoulder joint.
func Reach() float64 {
	return UpperArmLength + ForearmLength
}
