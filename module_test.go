package armservo

import (
	"armservo/kinematics"
	"armservo/models"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"
)

func TestConfigValidate(t *testing.T) {
	cfg := &Config{YZCameraName: "yz", XZCameraName: "xz"}
	deps, _, err := cfg.Validate("services.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"yz", "xz"}, deps)
	assert.Equal(t, 30.0, cfg.UpdateRateHz)
	assert.Equal(t, "color", cfg.MarkerMode)
	assert.Equal(t, []float64{398, 470}, cfg.ShoulderPixel)

	_, _, err = (&Config{XZCameraName: "xz"}).Validate("services.0")
	assert.ErrorContains(t, err, "yz_camera_name")
	_, _, err = (&Config{YZCameraName: "yz", XZCameraName: "xz", UpdateRateHz: -1}).Validate("services.0")
	assert.ErrorContains(t, err, "update_rate_hz")
	_, _, err = (&Config{YZCameraName: "yz", XZCameraName: "xz", UpdateRateHz: 2e9}).Validate("services.0")
	assert.ErrorContains(t, err, "update_rate_hz")
}

func TestJointEstimatorGetJointAngles(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	q := kinematics.JointAngles{0, 0.4, -0.6, 0.8}

	arm, err := models.NewSimulatedArm(generic.Named("arm"), &models.SimulatedArmConfig{InitialPositionsRad: q.Slice()}, logger)
	require.NoError(t, err)
	deps := resource.Dependencies{generic.Named("arm"): arm}
	for _, axis := range []string{"yz", "xz"} {
		cam, err := models.NewArmViewCamera(deps, camera.Named(axis), &models.ArmViewCameraConfig{ArmName: "arm", Axis: axis}, logger)
		require.NoError(t, err)
		deps[camera.Named(axis)] = cam
	}

	cfg := &Config{YZCameraName: "yz", XZCameraName: "xz"}
	_, _, err = cfg.Validate("")
	require.NoError(t, err)
	est, err := NewJointEstimator(ctx, deps, genericservice.Named("estimator"), cfg, logger)
	require.NoError(t, err)
	defer est.Close(ctx)

	resp, err := est.DoCommand(ctx, map[string]interface{}{"command": "get-joint-angles"})
	require.NoError(t, err)
	got, ok := resp["joint_angles_rad"].([]float64)
	require.True(t, ok)
	require.Len(t, got, 4)
	for i := range q {
		assert.InDelta(t, q[i], got[i], 0.05)
	}

	_, err = est.DoCommand(ctx, map[string]interface{}{"command": "calibrate"})
	assert.ErrorContains(t, err, "invalid command")
}
