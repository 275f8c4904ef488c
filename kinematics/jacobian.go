package kinematics

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Jacobian is d(x,y,z)/d(q0..q3).
type Jacobian [3][NumJoints]float64

// PseudoInverse is the 4x3 Moore-Penrose inverse of a Jacobian.
type PseudoInverse [NumJoints][3]float64

var errSVDFailed = errors.New("jacobian SVD factorization failed")

// ComputeJacobian returns the analytic Jacobian of Forward at q.
func ComputeJacobian(q JointAngles) Jacobian {
	t := newTrig(q)
	a, b := t.a(), t.b()
	// upper arm plus the forearm's projection onto it
	k := UpperArmLength + ForearmLength*t.c3

	var j Jacobian
	j[0][0] = -k*b + ForearmLength*t.c0*t.c1*t.s3
	j[0][1] = k*t.s0*t.c1*t.c2 - ForearmLength*t.s0*t.s1*t.s3
	j[0][2] = k * (t.c0*t.c2 - t.s0*t.s1*t.s2)
	j[0][3] = ForearmLength * (t.s0*t.c1*t.c3 - t.s3*a)

	j[1][0] = k*a + ForearmLength*t.s0*t.c1*t.s3
	j[1][1] = -k*t.c0*t.c1*t.c2 + ForearmLength*t.c0*t.s1*t.s3
	j[1][2] = k * (t.s0*t.c2 + t.c0*t.s1*t.s2)
	j[1][3] = -ForearmLength * (t.s3*b + t.c0*t.c1*t.c3)

	j[2][0] = 0
	j[2][1] = -k*t.s1*t.c2 - ForearmLength*t.c1*t.s3
	j[2][2] = -k * t.c1 * t.s2
	j[2][3] = -ForearmLength * (t.c1*t.c2*t.s3 + t.s1*t.c3)
	return j
}

// WithFixed returns a copy with the given joint columns zeroed, so nothing
// downstream commands motion of a joint it does not own.
func (j Jacobian) WithFixed(joints ...int) Jacobian {
	for _, col := range joints {
		if col < 0 || col >= NumJoints {
			continue
		}
		for row := range j {
			j[row][col] = 0
		}
	}
	return j
}

// Dense copies the Jacobian into a gonum matrix.
func (j Jacobian) Dense() *mat.Dense {
	data := make([]float64, 0, 3*NumJoints)
	for _, row := range j {
		data = append(data, row[:]...)
	}
	return mat.NewDense(3, NumJoints, data)
}

// ComputePseudoInverse returns the Moore-Penrose inverse of j through a thin
// SVD. Singular values below the cutoff are treated as zero, so rank deficient
// inputs still give a bounded result.
func ComputePseudoInverse(j Jacobian) (PseudoInverse, error) {
	var out PseudoInverse

	var svd mat.SVD
	if ok := svd.Factorize(j.Dense(), mat.SVDThin); !ok {
		return out, errSVDFailed
	}
	values := svd.Values(nil)
	if len(values) == 0 || values[0] == 0 {
		return out, nil
	}
	cutoff := float64(NumJoints) * values[0] * 2.220446049250313e-16

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// pinv = V * diag(1/s) * U^T
	for r := 0; r < NumJoints; r++ {
		for c := 0; c < 3; c++ {
			var sum float64
			for k, s := range values {
				if s <= cutoff {
					continue
				}
				sum += v.At(r, k) * u.At(c, k) / s
			}
			out[r][c] = sum
		}
	}
	return out, nil
}

// Apply returns j * dq, the end effector velocity for joint velocity dq.
func (j Jacobian) Apply(dq JointAngles) r3.Vector {
	var out [3]float64
	for row := range j {
		for col, v := range j[row] {
			out[row] += v * dq[col]
		}
	}
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}
}

// Apply returns p * v, the joint velocity that best produces v.
func (p PseudoInverse) Apply(v r3.Vector) JointAngles {
	in := [3]float64{v.X, v.Y, v.Z}
	var out JointAngles
	for row := range p {
		for col, x := range p[row] {
			out[row] += x * in[col]
		}
	}
	return out
}

// MaxAbs is the largest absolute entry, used to spot exploding inverses.
func (p PseudoInverse) MaxAbs() float64 {
	var m float64
	for _, row := range p {
		for _, x := range row {
			m = math.Max(m, math.Abs(x))
		}
	}
	return m
}
