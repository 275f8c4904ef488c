// Package control drives the arm's end effector toward a target with
// resolved-rate PD control through the Jacobian pseudo-inverse.
package control

import (
	"armservo/kinematics"
	"armservo/utils"
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
)

// Fixed controller gains, applied equally on every axis.
const (
	Kp = 10.0
	Kd = 0.1
)

var (
	// ErrNonPositiveTimeDelta is returned when a cycle's time is not after the previous one.
	ErrNonPositiveTimeDelta = errors.New("control cycle time did not advance")
	// ErrUninitialized is returned when Step runs before Reset.
	ErrUninitialized = errors.New("controller has not been started")
)

// Options tune the controller. The zero value is the plain resolved-rate law.
type Options struct {
	// MaxJointSpeed clamps each commanded joint speed, in rad/s. Zero disables it.
	MaxJointSpeed float64
	// MaxCycleGap is the longest dt treated as a continuous run. A longer gap
	// re-seeds the history and commands no motion for that cycle. Zero
	// disables the check.
	MaxCycleGap time.Duration
}

// Result describes one control cycle.
type Result struct {
	Command  kinematics.JointAngles
	Error    r3.Vector
	Velocity kinematics.JointAngles
	Dt       time.Duration
	// Gain is the largest pseudo-inverse entry. It grows without bound near
	// a singular configuration.
	Gain float64
	// Reseeded is set when the cycle only re-seeded the history after a long
	// gap. Command is then the input q.
	Reseeded bool
}

// Controller holds the error history between cycles. It is not safe for
// concurrent use; the control loop owns it.
type Controller struct {
	opts Options

	started bool
	// seeded is false until a cycle has recorded an error to difference against
	seeded    bool
	startTime time.Time
	prevTime  time.Time
	prevError r3.Vector
}

// NewController returns a controller whose first cycle is measured from start.
func NewController(start time.Time, opts Options) *Controller {
	c := &Controller{opts: opts}
	c.Reset(start)
	return c
}

// Reset clears the error history and measures the next cycle from now. The
// first cycle after a reset has no derivative term.
func (c *Controller) Reset(now time.Time) {
	c.started = true
	c.seeded = false
	c.startTime = now
	c.prevTime = now
	c.prevError = r3.Vector{}
}

// StartTime is when the controller was last reset.
func (c *Controller) StartTime() time.Time {
	return c.startTime
}

// Step returns the next joint command that moves the end effector at q toward
// target. The base joint is passed through untouched. On error the history
// is left as it was and the caller should skip the cycle.
func (c *Controller) Step(q kinematics.JointAngles, target r3.Vector, now time.Time) (Result, error) {
	if c == nil || !c.started {
		return Result{}, ErrUninitialized
	}
	dt := now.Sub(c.prevTime)
	if dt <= 0 {
		return Result{}, fmt.Errorf("%w: dt=%v", ErrNonPositiveTimeDelta, dt)
	}

	errVec := target.Sub(kinematics.Forward(q))

	jac := kinematics.ComputeJacobian(q).WithFixed(kinematics.BaseJoint)
	pinv, err := kinematics.ComputePseudoInverse(jac)
	if err != nil {
		return Result{}, err
	}

	res := Result{Error: errVec, Dt: dt, Gain: pinv.MaxAbs()}
	if c.opts.MaxCycleGap > 0 && dt > c.opts.MaxCycleGap {
		// a gap this long is not one control step
		res.Reseeded = true
		res.Command = q
		c.prevError = errVec
		c.prevTime = now
		c.seeded = true
		return res, nil
	}

	seconds := dt.Seconds()
	var derivative r3.Vector
	if c.seeded {
		derivative = errVec.Sub(c.prevError).Mul(1 / seconds)
	}

	res.Velocity = pinv.Apply(errVec.Mul(Kp).Add(derivative.Mul(Kd)))
	res.Velocity[kinematics.BaseJoint] = 0
	if c.opts.MaxJointSpeed > 0 {
		for i, v := range res.Velocity {
			res.Velocity[i] = utils.Clamp(v, -c.opts.MaxJointSpeed, c.opts.MaxJointSpeed)
		}
	}

	res.Command = q
	for i := range res.Command {
		if i == kinematics.BaseJoint {
			continue
		}
		res.Command[i] += seconds * res.Velocity[i]
	}

	c.prevError = errVec
	c.prevTime = now
	c.seeded = true
	return res, nil
}
