package models

import (
	"armservo/control"
	"armservo/markers"
	"armservo/pipeline"
	"armservo/utils"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/robot/framesystem"
	genericservice "go.viam.com/rdk/services/generic"
	rdk_utils "go.viam.com/utils"
)

var (
	VisualServo = resource.NewModel("viam", "arm-visual-servo", "visual-servo")

	errNoEstimate = errors.New("no joint angle estimate yet")
	errNoTarget   = errors.New("no target yet")
)

const maxControlRateHz = 100

// Pseudo-inverse gain above which the arm is reported as near singular.
const singularGain = 50

func init() {
	resource.RegisterService(genericservice.API, VisualServo,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newVisualServo,
		},
	)
}

type Config struct {
	YZCameraName string  `json:"yz_camera_name" yaml:"yz_camera_name"`
	XZCameraName string  `json:"xz_camera_name" yaml:"xz_camera_name"`
	ArmName      string  `json:"arm_name" yaml:"arm_name"`
	BaseAngleRad float64 `json:"base_angle_rad,omitempty" yaml:"base_angle_rad,omitempty"`

	VisionRateHz  float64 `json:"vision_rate_hz,omitempty" yaml:"vision_rate_hz,omitempty"`
	ControlRateHz float64 `json:"control_rate_hz,omitempty" yaml:"control_rate_hz,omitempty"`
	TargetRateHz  float64 `json:"target_rate_hz,omitempty" yaml:"target_rate_hz,omitempty"`

	MarkerMode    string            `json:"marker_mode,omitempty" yaml:"marker_mode,omitempty"`
	BasePixel     []float64         `json:"base_pixel,omitempty" yaml:"base_pixel,omitempty"`
	ShoulderPixel []float64         `json:"shoulder_pixel,omitempty" yaml:"shoulder_pixel,omitempty"`
	PixelsPerUnit float64           `json:"pixels_per_unit,omitempty" yaml:"pixels_per_unit,omitempty"`
	Colors        *markers.ColorSet `json:"colors,omitempty" yaml:"colors,omitempty"`

	TargetComponentName string    `json:"target_component_name,omitempty" yaml:"target_component_name,omitempty"`
	TargetScale         float64   `json:"target_scale,omitempty" yaml:"target_scale,omitempty"`
	InitialTarget       []float64 `json:"initial_target,omitempty" yaml:"initial_target,omitempty"`

	MaxJointSpeedRadS float64 `json:"max_joint_speed_rad_s,omitempty" yaml:"max_joint_speed_rad_s,omitempty"`
	MaxCycleGapSec    float64 `json:"max_cycle_gap_sec,omitempty" yaml:"max_cycle_gap_sec,omitempty"`

	EnableOnStart bool `json:"enable_on_start" yaml:"enable_on_start"`
}

// Validate ensures all parts of the config are valid and important fields exist.
// Returns implicit required (first return) and optional (second return) dependencies based on the config.
// The path is the JSON path in your robot's config (not the `Config` struct) to the
// resource being validated; e.g. "services.0".
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.YZCameraName == "" {
		return nil, nil, errors.New("yz_camera_name is required")
	}
	if cfg.XZCameraName == "" {
		return nil, nil, errors.New("xz_camera_name is required")
	}
	if cfg.ArmName == "" {
		return nil, nil, errors.New("arm_name is required")
	}
	if cfg.VisionRateHz == 0 {
		cfg.VisionRateHz = 30
	}
	if cfg.ControlRateHz == 0 {
		cfg.ControlRateHz = 20
	}
	if cfg.TargetRateHz == 0 {
		cfg.TargetRateHz = 10
	}
	if err := utils.ValidateRate("vision_rate_hz", cfg.VisionRateHz, 0); err != nil {
		return nil, nil, err
	}
	if err := utils.ValidateRate("control_rate_hz", cfg.ControlRateHz, maxControlRateHz); err != nil {
		return nil, nil, err
	}
	if err := utils.ValidateRate("target_rate_hz", cfg.TargetRateHz, 0); err != nil {
		return nil, nil, err
	}
	vision := cfg.vision()
	if err := vision.Validate(); err != nil {
		return nil, nil, err
	}
	cfg.MarkerMode, cfg.BasePixel, cfg.ShoulderPixel, cfg.PixelsPerUnit = vision.MarkerMode, vision.BasePixel, vision.ShoulderPixel, vision.PixelsPerUnit
	if err := utils.ValidateFinite("base_angle_rad", cfg.BaseAngleRad); err != nil {
		return nil, nil, err
	}
	if cfg.TargetScale == 0 {
		cfg.TargetScale = 1
	}
	if cfg.InitialTarget != nil {
		if len(cfg.InitialTarget) != 3 {
			return nil, nil, errors.New("initial_target must have exactly 3 values")
		}
		if err := utils.ValidateFinite("initial_target", cfg.InitialTarget...); err != nil {
			return nil, nil, err
		}
	}
	if cfg.MaxJointSpeedRadS < 0 {
		return nil, nil, errors.New("max_joint_speed_rad_s must be greater than or equal to 0")
	}
	if cfg.MaxCycleGapSec < 0 {
		return nil, nil, errors.New("max_cycle_gap_sec must be greater than or equal to 0")
	}
	if cfg.MaxCycleGapSec == 0 {
		cfg.MaxCycleGapSec = 1.0
	}
	return []string{cfg.YZCameraName, cfg.XZCameraName, cfg.ArmName}, nil, nil
}

func (cfg *Config) vision() pipeline.VisionAttributes {
	return pipeline.VisionAttributes{
		MarkerMode:    cfg.MarkerMode,
		BasePixel:     cfg.BasePixel,
		ShoulderPixel: cfg.ShoulderPixel,
		PixelsPerUnit: cfg.PixelsPerUnit,
		Colors:        cfg.Colors,
	}
}

func (cfg *Config) controllerOptions() control.Options {
	return control.Options{
		MaxJointSpeed: cfg.MaxJointSpeedRadS,
		MaxCycleGap:   time.Duration(cfg.MaxCycleGapSec * float64(time.Second)),
	}
}

type visualServo struct {
	resource.AlwaysRebuild
	name resource.Name

	logger logging.Logger
	cfg    *Config

	yzCam camera.Camera
	xzCam camera.Camera
	arm   resource.Resource

	// Only set when a target component is configured
	frameSystemService framesystem.Service

	estimator *pipeline.Estimator

	// Written by the vision and target producers, read by the control loop
	estimate   utils.Latest[pipeline.Estimate]
	target     utils.Latest[r3.Vector]
	lastResult utils.Latest[control.Result]

	controlMu  sync.Mutex
	controller *control.Controller

	skippedCycles atomic.Int64

	workerMu sync.Mutex
	worker   *rdk_utils.StoppableWorkers
}

func newVisualServo(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}

	return NewVisualServo(ctx, deps, rawConf.ResourceName(), conf, logger)
}

func NewVisualServo(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	configJSON, _ := json.MarshalIndent(conf, "", "  ")
	logger.Debugf("Creating visual servo with the following config:\n%s", configJSON)

	yzCam, err := camera.FromDependencies(deps, conf.YZCameraName)
	if err != nil {
		return nil, fmt.Errorf("failed to get yz camera: %w", err)
	}
	xzCam, err := camera.FromDependencies(deps, conf.XZCameraName)
	if err != nil {
		return nil, fmt.Errorf("failed to get xz camera: %w", err)
	}
	arm, err := deps.GetResource(resource.NewName(generic.API, conf.ArmName))
	if err != nil {
		return nil, fmt.Errorf("failed to get arm resource: %w", err)
	}

	estimator, err := pipeline.NewEstimator(conf.vision().Config(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create estimator: %w", err)
	}

	s := &visualServo{
		name:       name,
		logger:     logger,
		cfg:        conf,
		yzCam:      yzCam,
		xzCam:      xzCam,
		arm:        arm,
		estimator:  estimator,
		controller: control.NewController(time.Now(), conf.controllerOptions()),
	}

	if conf.TargetComponentName != "" {
		s.frameSystemService, err = framesystem.FromDependencies(deps)
		if err != nil {
			return nil, fmt.Errorf("failed to get frame system service: %w", err)
		}
	}
	if conf.InitialTarget != nil {
		s.target.Store(r3.Vector{X: conf.InitialTarget[0], Y: conf.InitialTarget[1], Z: conf.InitialTarget[2]})
	}

	if conf.EnableOnStart {
		s.start()
	}
	return s, nil
}

func (s *visualServo) Name() resource.Name {
	return s.name
}

// Close implements resource.Resource.
func (s *visualServo) Close(ctx context.Context) error {
	s.stop()
	return nil
}

func (s *visualServo) running() bool {
	s.workerMu.Lock()
	defer s.workerMu.Unlock()
	return s.worker != nil
}

func (s *visualServo) start() bool {
	s.workerMu.Lock()
	defer s.workerMu.Unlock()
	if s.worker != nil {
		return false
	}
	s.resetController(time.Now())
	s.worker = rdk_utils.NewBackgroundStoppableWorkers()
	s.worker.Add(s.visionLoop)
	s.worker.Add(s.controlLoop)
	if s.frameSystemService != nil {
		s.worker.Add(s.targetLoop)
	}
	s.logger.Infof("Visual servo started: vision %.1f Hz, control %.1f Hz", s.cfg.VisionRateHz, s.cfg.ControlRateHz)
	return true
}

func (s *visualServo) stop() bool {
	s.workerMu.Lock()
	defer s.workerMu.Unlock()
	if s.worker == nil {
		return false
	}
	s.worker.Stop()
	s.worker = nil
	s.logger.Info("Visual servo stopped")
	return true
}

func (s *visualServo) resetController(now time.Time) {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	s.controller.Reset(now)
}

func (s *visualServo) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	s.logger.Debugf("DoCommand: %+v", cmd)
	switch cmd["command"] {
	case "set-target":
		target, err := parseVector(cmd["target"])
		if err != nil {
			return nil, fmt.Errorf("invalid target: %w", err)
		}
		s.target.Store(target)
		s.logger.Infof("Target set to %v", target)
		return map[string]interface{}{"target": utils.VectorToMap(target)}, nil

	case "clear-target":
		s.target.Clear()
		s.logger.Info("Target cleared")
		return map[string]interface{}{"status": "cleared"}, nil

	case "get-state":
		return s.state(), nil

	case "start":
		if !s.start() {
			return map[string]interface{}{"status": "already running"}, nil
		}
		return map[string]interface{}{"status": "started"}, nil

	case "stop":
		if !s.stop() {
			return map[string]interface{}{"status": "not running"}, nil
		}
		return map[string]interface{}{"status": "stopped"}, nil

	case "reset-controller":
		s.resetController(time.Now())
		return map[string]interface{}{"status": "reset"}, nil

	default:
		return nil, fmt.Errorf("invalid command: %v", cmd["command"])
	}
}

func (s *visualServo) state() map[string]interface{} {
	out := map[string]interface{}{
		"running":        s.running(),
		"skipped_cycles": s.skippedCycles.Load(),
	}
	s.controlMu.Lock()
	out["controller_reset_at"] = s.controller.StartTime().Format(time.RFC3339Nano)
	s.controlMu.Unlock()
	est, haveEstimate := s.estimate.Load()
	if haveEstimate {
		out["estimate"] = est.ToMap()
		out["estimate_age_sec"] = time.Since(s.estimate.UpdatedAt()).Seconds()
		out["end_effector"] = utils.VectorToMap(est.EndEffector)
	}
	if target, ok := s.target.Load(); ok {
		out["target"] = utils.VectorToMap(target)
		if haveEstimate {
			out["error_distance"] = target.Sub(est.EndEffector).Norm()
		}
	}
	if res, ok := s.lastResult.Load(); ok {
		out["last_error"] = utils.VectorToSlice(res.Error)
		out["last_command_rad"] = res.Command.Slice()
		out["last_velocity_rad_s"] = res.Velocity.Slice()
	}
	return out
}

func (s *visualServo) visionLoop(ctx context.Context) {
	ticker := time.NewTicker(utils.RateToInterval(s.cfg.VisionRateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.updateEstimate(ctx); err != nil {
				s.logger.Warnf("Failed to estimate joint angles: %v", err)
			}
		}
	}
}

// updateEstimate runs the pipeline on one frame pair.
func (s *visualServo) updateEstimate(ctx context.Context) error {
	yzImg, xzImg, err := pipeline.GrabPair(ctx, s.yzCam, s.xzCam)
	if err != nil {
		return err
	}
	est, err := s.estimator.Estimate(yzImg, xzImg, s.cfg.BaseAngleRad, time.Now())
	if err != nil {
		return err
	}
	s.estimate.Store(est)
	return nil
}

func (s *visualServo) controlLoop(ctx context.Context) {
	ticker := time.NewTicker(utils.RateToInterval(s.cfg.ControlRateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.controlStep(ctx, now); err != nil {
				s.skippedCycles.Add(1)
				if errors.Is(err, errNoEstimate) || errors.Is(err, errNoTarget) {
					s.logger.Debugf("Skipping control cycle: %v", err)
					continue
				}
				s.logger.Warnf("Skipping control cycle: %v", err)
			}
		}
	}
}

// controlStep runs one controller cycle against the latest estimate and
// target and sends the result to the arm. Skipped cycles restart the
// controller's history at now.
func (s *visualServo) controlStep(ctx context.Context, now time.Time) error {
	est, ok := s.estimate.Load()
	if !ok {
		s.resetController(now)
		return errNoEstimate
	}
	target, ok := s.target.Load()
	if !ok {
		s.resetController(now)
		return errNoTarget
	}

	s.controlMu.Lock()
	res, err := s.controller.Step(est.Angles, target, now)
	if errors.Is(err, control.ErrUninitialized) {
		s.controller.Reset(now)
	}
	s.controlMu.Unlock()
	if err != nil {
		return err
	}
	if res.Reseeded {
		s.logger.Warnf("Control cycle gap of %v, derivative term reseeded", res.Dt)
	}
	if res.Gain > singularGain {
		s.logger.Warnf("Arm is near a singular configuration (gain %.1f)", res.Gain)
	}
	s.lastResult.Store(res)

	s.logger.Debugf("Error %v, commanding %v", res.Error, res.Command)
	_, err = s.arm.DoCommand(ctx, map[string]interface{}{
		"command":       cmdSetJointPositions,
		keyPositionsRad: res.Command.Slice(),
	})
	if err != nil {
		return fmt.Errorf("failed to send joint command: %w", err)
	}
	return nil
}

func (s *visualServo) targetLoop(ctx context.Context) {
	ticker := time.NewTicker(utils.RateToInterval(s.cfg.TargetRateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.updateTarget(ctx); err != nil {
				s.logger.Errorf("Failed to update target: %v", err)
			}
		}
	}
}

// updateTarget reads the target component's position from the frame system.
func (s *visualServo) updateTarget(ctx context.Context) error {
	pose, err := s.frameSystemService.GetPose(ctx, s.cfg.TargetComponentName, "", []*referenceframe.LinkInFrame{}, map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("failed to get pose for component %s: %w", s.cfg.TargetComponentName, err)
	}
	target := pose.Pose().Point().Mul(s.cfg.TargetScale)
	if err := utils.ValidateVector("target", target); err != nil {
		return err
	}
	s.target.Store(target)
	return nil
}
