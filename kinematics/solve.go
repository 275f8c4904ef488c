package kinematics

import (
	"armservo/utils"
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/optimize"
)

// ErrUnreachable is returned when no configuration with the given base angle
// brings the end effector within tolerance of the target.
var ErrUnreachable = errors.New("target is not reachable")

// SolveResult is a numerical inverse kinematics solution.
type SolveResult struct {
	Angles   JointAngles
	Residual float64 // distance from Forward(Angles) to the target
	Status   optimize.Status
}

// Solve searches for joint angles that put the end effector at target with
// the base joint held at seed's base angle. The search starts from seed.
// A residual above tolerance is reported as ErrUnreachable alongside the
// closest configuration found.
func Solve(target r3.Vector, seed JointAngles, tolerance float64) (SolveResult, error) {
	base := seed[BaseJoint]
	residual := func(x []float64) float64 {
		q := FromVision(base, [3]float64{x[0], x[1], x[2]})
		return Forward(q).Sub(target).Norm2()
	}

	problem := optimize.Problem{
		Func: residual,
	}
	settings := &optimize.Settings{
		FuncEvaluations: 20000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Iterations: 200,
		},
	}

	v := seed.Vision()
	result, err := optimize.Minimize(problem, v[:], settings, &optimize.NelderMead{})
	if err != nil {
		return SolveResult{}, fmt.Errorf("inverse kinematics failed: %w", err)
	}

	q := FromVision(base, [3]float64{result.X[0], result.X[1], result.X[2]})
	for i := 1; i < NumJoints; i++ {
		q[i] = utils.WrapAngleRad(q[i])
	}
	out := SolveResult{
		Angles:   q,
		Residual: Forward(q).Sub(target).Norm(),
		Status:   result.Status,
	}
	if out.Residual > tolerance {
		return out, fmt.Errorf("%w: closest approach %.3f", ErrUnreachable, out.Residual)
	}
	return out, nil
}
