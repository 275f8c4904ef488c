package models

import (
	"armservo/sim"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/spatialmath"
	rutils "go.viam.com/rdk/utils"
)

var (
	ArmViewCamera = resource.NewModel("viam", "arm-visual-servo", "arm-view-camera")
)

const viewSourceName = "color"

func init() {
	resource.RegisterComponent(camera.API, ArmViewCamera,
		resource.Registration[camera.Camera, *ArmViewCameraConfig]{
			Constructor: newArmViewCamera,
		},
	)
}

type ArmViewCameraConfig struct {
	ArmName      string `json:"arm_name" yaml:"arm_name"`
	Axis         string `json:"axis" yaml:"axis"`                                         // "yz" or "xz"
	BlackMarkers bool   `json:"black_markers,omitempty" yaml:"black_markers,omitempty"` // Draw every marker black
	MarkerRadius int    `json:"marker_radius,omitempty" yaml:"marker_radius,omitempty"`
}

// Validate ensures all parts of the config are valid and important fields exist.
// Returns implicit dependencies based on the config.
// The path is the JSON path in your robot's config (not the `Config` struct) to the
// resource being validated; e.g. "components.0".
func (cfg *ArmViewCameraConfig) Validate(path string) ([]string, []string, error) {
	if cfg.ArmName == "" {
		return nil, nil, errors.New("arm_name is required")
	}
	if _, err := sim.ParseAxis(cfg.Axis); err != nil {
		return nil, nil, err
	}
	if cfg.MarkerRadius < 0 {
		return nil, nil, errors.New("marker_radius must be greater than or equal to 0")
	}
	if cfg.MarkerRadius == 0 {
		cfg.MarkerRadius = sim.DefaultScene().MarkerRadius
	}
	return []string{cfg.ArmName}, nil, nil
}

// armViewCamera renders the simulated arm as one of the two orthogonal
// cameras would see it.
type armViewCamera struct {
	resource.AlwaysRebuild
	name   resource.Name
	logger logging.Logger
	cfg    *ArmViewCameraConfig

	arm   resource.Resource
	axis  sim.Axis
	scene sim.Scene
}

func newArmViewCamera(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (camera.Camera, error) {
	conf, err := resource.NativeConfig[*ArmViewCameraConfig](rawConf)
	if err != nil {
		return nil, err
	}
	return NewArmViewCamera(deps, rawConf.ResourceName(), conf, logger)
}

func NewArmViewCamera(deps resource.Dependencies, name resource.Name, conf *ArmViewCameraConfig, logger logging.Logger) (camera.Camera, error) {
	axis, err := sim.ParseAxis(conf.Axis)
	if err != nil {
		return nil, err
	}
	arm, err := deps.GetResource(resource.NewName(generic.API, conf.ArmName))
	if err != nil {
		return nil, fmt.Errorf("failed to get arm resource: %w", err)
	}

	scene := sim.DefaultScene()
	scene.Black = conf.BlackMarkers
	if conf.MarkerRadius > 0 {
		scene.MarkerRadius = conf.MarkerRadius
	}

	return &armViewCamera{
		name:   name,
		logger: logger,
		cfg:    conf,
		arm:    arm,
		axis:   axis,
		scene:  scene,
	}, nil
}

func (c *armViewCamera) Name() resource.Name {
	return c.name
}

func (c *armViewCamera) Close(context.Context) error {
	return nil
}

func (c *armViewCamera) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, fmt.Errorf("invalid command: %v", cmd["command"])
}

// render draws the arm at its current joint positions.
func (c *armViewCamera) render(ctx context.Context) (image.Image, error) {
	q, err := jointPositionsFrom(ctx, c.arm)
	if err != nil {
		return nil, fmt.Errorf("failed to read joint positions: %w", err)
	}
	return c.scene.Render(c.axis, q), nil
}

func (c *armViewCamera) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	return nil, nil
}

func (c *armViewCamera) Image(ctx context.Context, mimeType string, extra map[string]interface{}) ([]byte, camera.ImageMetadata, error) {
	if mimeType == "" {
		mimeType = rutils.MimeTypePNG
	}
	img, err := c.render(ctx)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}
	data, err := rimage.EncodeImage(ctx, img, mimeType)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}
	return data, camera.ImageMetadata{MimeType: mimeType}, nil
}

func (c *armViewCamera) Images(ctx context.Context, filterSourceNames []string, extra map[string]interface{}) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	img, err := c.render(ctx)
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}
	named, err := camera.NamedImageFromImage(img, viewSourceName, rutils.MimeTypePNG)
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}
	return []camera.NamedImage{named}, resource.ResponseMetadata{CapturedAt: time.Now()}, nil
}

func (c *armViewCamera) NextPointCloud(ctx context.Context, extra map[string]interface{}) (pointcloud.PointCloud, error) {
	return nil, errors.New("next point cloud not implemented")
}

func (c *armViewCamera) Properties(ctx context.Context) (camera.Properties, error) {
	return camera.Properties{
		SupportsPCD: false,
		ImageType:   camera.ColorStream,
	}, nil
}
