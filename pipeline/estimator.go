// Package pipeline turns a synchronized pair of camera frames into a joint
// angle estimate: detect markers in each view, fuse the views into 3D, then
// extract the vision-observable joint angles.
package pipeline

import (
	"armservo/angles"
	"armservo/fusion"
	"armservo/kinematics"
	"armservo/markers"
	"armservo/utils"
	"fmt"
	"image"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
)

// DefaultPixelsPerUnit is the simulated cameras' scale: the 2.5 unit base to
// shoulder link spans 65 px.
const DefaultPixelsPerUnit = 26.0

// Config configures both views.
type Config struct {
	YZ            markers.ViewConfig
	XZ            markers.ViewConfig
	PixelsPerUnit float64
}

// DefaultConfig returns colour mode detection for both simulated cameras.
func DefaultConfig() Config {
	return Config{
		YZ:            markers.DefaultViewConfig(),
		XZ:            markers.DefaultViewConfig(),
		PixelsPerUnit: DefaultPixelsPerUnit,
	}
}

// Estimate is one pipeline result.
type Estimate struct {
	Angles kinematics.JointAngles
	// Positions are the fused joints in arm units, base at the origin.
	Positions [kinematics.NumJoints]r3.Vector
	// EndEffector is the forward kinematics of Angles.
	EndEffector r3.Vector
	YZ, XZ      fusion.View
	Time        time.Time
}

// ToMap renders the estimate for DoCommand payloads.
func (e Estimate) ToMap() map[string]interface{} {
	positions := make([]interface{}, len(e.Positions))
	for i, p := range e.Positions {
		positions[i] = utils.VectorToMap(p)
	}
	yz := make([]interface{}, len(e.YZ))
	xz := make([]interface{}, len(e.XZ))
	for i := range e.YZ {
		yz[i] = e.YZ[i].ToMap()
		xz[i] = e.XZ[i].ToMap()
	}
	return map[string]interface{}{
		"joint_angles_rad": e.Angles.Slice(),
		"joint_positions":  positions,
		"end_effector":     utils.VectorToMap(e.EndEffector),
		"yz_markers":       yz,
		"xz_markers":       xz,
		"timestamp":        e.Time.Format(time.RFC3339Nano),
	}
}

// Estimator runs the vision pipeline. Detect calls from one goroutine at a time.
type Estimator struct {
	yz, xz        *markers.ViewDetector
	pixelsPerUnit float64
	logger        logging.Logger
}

// NewEstimator builds the detectors for both views.
func NewEstimator(cfg Config, logger logging.Logger) (*Estimator, error) {
	yz, err := markers.NewViewDetector(cfg.YZ, logger)
	if err != nil {
		return nil, fmt.Errorf("yz view: %w", err)
	}
	xz, err := markers.NewViewDetector(cfg.XZ, logger)
	if err != nil {
		return nil, fmt.Errorf("xz view: %w", err)
	}
	ppu := cfg.PixelsPerUnit
	if ppu <= 0 {
		ppu = DefaultPixelsPerUnit
	}
	return &Estimator{yz: yz, xz: xz, pixelsPerUnit: ppu, logger: logger}, nil
}

// Estimate processes one frame pair. base is the externally held base joint
// angle; the fused positions are de-rotated by it before angle extraction.
func (e *Estimator) Estimate(yzImg, xzImg image.Image, base float64, now time.Time) (Estimate, error) {
	var est Estimate

	yz, err := e.yz.Detect(yzImg)
	if err != nil {
		return est, fmt.Errorf("detecting yz markers: %w", err)
	}
	xz, err := e.xz.Detect(xzImg)
	if err != nil {
		return est, fmt.Errorf("detecting xz markers: %w", err)
	}
	est.YZ, est.XZ = yz, xz

	fused, err := fusion.Fuse(yz, xz)
	if err != nil {
		return est, err
	}
	est.Positions = fusion.ToUnits(fused, e.pixelsPerUnit)

	var local [kinematics.NumJoints]r3.Vector
	for i, p := range est.Positions {
		local[i] = utils.RotateAboutZ(-base, p)
	}
	est.Angles = kinematics.FromVision(base, angles.Extract(local))
	est.EndEffector = kinematics.Forward(est.Angles)
	est.Time = now

	e.logger.Debugf("estimated joint angles %v, end effector %v", est.Angles, est.EndEffector)
	return est, nil
}
