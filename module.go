package armservo

import (
	"armservo/markers"
	"armservo/pipeline"
	"armservo/utils"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"
	rdk_utils "go.viam.com/utils"
)

var (
	JointEstimator = resource.NewModel("viam", "arm-visual-servo", "joint-estimator")
)

func init() {
	resource.RegisterService(genericservice.API, JointEstimator,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newJointEstimator,
		},
	)
}

type Config struct {
	YZCameraName string  `json:"yz_camera_name" yaml:"yz_camera_name"`
	XZCameraName string  `json:"xz_camera_name" yaml:"xz_camera_name"`
	BaseAngleRad float64 `json:"base_angle_rad,omitempty" yaml:"base_angle_rad,omitempty"`
	UpdateRateHz float64 `json:"update_rate_hz,omitempty" yaml:"update_rate_hz,omitempty"`

	MarkerMode    string            `json:"marker_mode,omitempty" yaml:"marker_mode,omitempty"`
	BasePixel     []float64         `json:"base_pixel,omitempty" yaml:"base_pixel,omitempty"`
	ShoulderPixel []float64         `json:"shoulder_pixel,omitempty" yaml:"shoulder_pixel,omitempty"`
	PixelsPerUnit float64           `json:"pixels_per_unit,omitempty" yaml:"pixels_per_unit,omitempty"`
	Colors        *markers.ColorSet `json:"colors,omitempty" yaml:"colors,omitempty"`

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
	if cfg.UpdateRateHz == 0 {
		cfg.UpdateRateHz = 30
	}
	if err := utils.ValidateRate("update_rate_hz", cfg.UpdateRateHz, 0); err != nil {
		return nil, nil, err
	}
	if err := utils.ValidateFinite("base_angle_rad", cfg.BaseAngleRad); err != nil {
		return nil, nil, err
	}
	vision := cfg.vision()
	if err := vision.Validate(); err != nil {
		return nil, nil, err
	}
	cfg.MarkerMode, cfg.BasePixel, cfg.ShoulderPixel, cfg.PixelsPerUnit = vision.MarkerMode, vision.BasePixel, vision.ShoulderPixel, vision.PixelsPerUnit
	return []string{cfg.YZCameraName, cfg.XZCameraName}, nil, nil
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

// jointEstimator runs only the vision half: it publishes the latest joint
// angle estimate without driving anything.
type jointEstimator struct {
	resource.AlwaysRebuild

	name resource.Name

	logger logging.Logger
	cfg    *Config

	yzCam     camera.Camera
	xzCam     camera.Camera
	estimator *pipeline.Estimator

	// Serializes pipeline runs between the loop and DoCommand
	estimateMu sync.Mutex
	latest     utils.Latest[pipeline.Estimate]

	worker *rdk_utils.StoppableWorkers
}

func newJointEstimator(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}

	return NewJointEstimator(ctx, deps, rawConf.ResourceName(), conf, logger)
}

func NewJointEstimator(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	yzCam, err := camera.FromDependencies(deps, conf.YZCameraName)
	if err != nil {
		return nil, fmt.Errorf("failed to get yz camera: %w", err)
	}
	xzCam, err := camera.FromDependencies(deps, conf.XZCameraName)
	if err != nil {
		return nil, fmt.Errorf("failed to get xz camera: %w", err)
	}
	estimator, err := pipeline.NewEstimator(conf.vision().Config(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create estimator: %w", err)
	}

	s := &jointEstimator{
		name:      name,
		logger:    logger,
		cfg:       conf,
		yzCam:     yzCam,
		xzCam:     xzCam,
		estimator: estimator,
	}

	if conf.EnableOnStart {
		s.worker = rdk_utils.NewBackgroundStoppableWorkers(s.estimationLoop)
		s.logger.Info("Joint estimator started")
	}

	return s, nil
}

func (s *jointEstimator) Name() resource.Name {
	return s.name
}

// DoCommand answers get-joint-angles with the latest estimate. Without a
// running loop it estimates from a fresh frame pair.
func (s *jointEstimator) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "get-joint-angles":
		est, ok := s.latest.Load()
		if !ok || s.worker == nil {
			var err error
			est, err = s.estimate(ctx)
			if err != nil {
				return nil, err
			}
		}
		return est.ToMap(), nil
	default:
		return nil, fmt.Errorf("invalid command: %v", cmd["command"])
	}
}

func (s *jointEstimator) Close(context.Context) error {
	if s.worker != nil {
		s.worker.Stop()
	}
	return nil
}

func (s *jointEstimator) estimate(ctx context.Context) (pipeline.Estimate, error) {
	s.estimateMu.Lock()
	defer s.estimateMu.Unlock()

	yzImg, xzImg, err := pipeline.GrabPair(ctx, s.yzCam, s.xzCam)
	if err != nil {
		return pipeline.Estimate{}, err
	}
	est, err := s.estimator.Estimate(yzImg, xzImg, s.cfg.BaseAngleRad, time.Now())
	if err != nil {
		return pipeline.Estimate{}, err
	}
	s.latest.Store(est)
	return est, nil
}

func (s *jointEstimator) estimationLoop(ctx context.Context) {
	s.logger.Infof("Starting estimation loop at %.1f Hz", s.cfg.UpdateRateHz)
	ticker := time.NewTicker(utils.RateToInterval(s.cfg.UpdateRateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.estimate(ctx); err != nil {
				s.logger.Warnf("Failed to estimate joint angles: %v", err)
			}
		}
	}
}
