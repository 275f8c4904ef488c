package models

import (
	"armservo/kinematics"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"
)

type simRig struct {
	arm   resource.Resource
	deps  resource.Dependencies
	servo *visualServo
}

func newSimRig(t *testing.T, start kinematics.JointAngles, conf *Config) *simRig {
	t.Helper()
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	arm, err := NewSimulatedArm(generic.Named("arm"), &SimulatedArmConfig{InitialPositionsRad: start.Slice()}, logger)
	require.NoError(t, err)
	deps := resource.Dependencies{generic.Named("arm"): arm}

	for _, axis := range []string{"yz", "xz"} {
		camConf := &ArmViewCameraConfig{ArmName: "arm", Axis: axis}
		_, _, err := camConf.Validate("")
		require.NoError(t, err)
		cam, err := NewArmViewCamera(deps, camera.Named(axis), camConf, logger)
		require.NoError(t, err)
		deps[camera.Named(axis)] = cam
	}

	if conf == nil {
		conf = &Config{YZCameraName: "yz", XZCameraName: "xz", ArmName: "arm"}
	}
	_, _, err = conf.Validate("")
	require.NoError(t, err)
	res, err := NewVisualServo(ctx, deps, genericservice.Named("servo"), conf, logger)
	require.NoError(t, err)
	t.Cleanup(func() { res.Close(ctx) })

	servo, ok := res.(*visualServo)
	require.True(t, ok)
	return &simRig{arm: arm, deps: deps, servo: servo}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{YZCameraName: "yz", XZCameraName: "xz", ArmName: "arm"}
	deps, _, err := cfg.Validate("services.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"yz", "xz", "arm"}, deps)
	assert.Equal(t, 30.0, cfg.VisionRateHz)
	assert.Equal(t, 20.0, cfg.ControlRateHz)
	assert.Equal(t, "color", cfg.MarkerMode)
	assert.Equal(t, []float64{398, 535}, cfg.BasePixel)
	assert.Equal(t, 1.0, cfg.MaxCycleGapSec)
	assert.Equal(t, 1.0, cfg.TargetScale)

	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		msg    string
	}{
		{"missing camera", func(c *Config) { c.YZCameraName = "" }, "yz_camera_name"},
		{"missing arm", func(c *Config) { c.ArmName = "" }, "arm_name"},
		{"control too fast", func(c *Config) { c.ControlRateHz = 250 }, "control_rate_hz"},
		{"bad mode", func(c *Config) { c.MarkerMode = "sonar" }, "marker_mode"},
		{"bad target", func(c *Config) { c.InitialTarget = []float64{1, 2} }, "initial_target"},
		{"bad pixel", func(c *Config) { c.BasePixel = []float64{1} }, "base_pixel"},
		{"negative speed", func(c *Config) { c.MaxJointSpeedRadS = -1 }, "max_joint_speed_rad_s"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := &Config{YZCameraName: "yz", XZCameraName: "xz", ArmName: "arm"}
			tc.mutate(c)
			_, _, err := c.Validate("services.0")
			assert.ErrorContains(t, err, tc.msg)
		})
	}
}

func TestSimulatedArmCommands(t *testing.T) {
	ctx := context.Background()
	arm, err := NewSimulatedArm(generic.Named("arm"), &SimulatedArmConfig{}, logging.NewTestLogger(t))
	require.NoError(t, err)
	defer arm.Close(ctx)

	_, err = arm.DoCommand(ctx, map[string]interface{}{
		"command":       "set-joint-positions",
		"positions_rad": []interface{}{0.0, 0.1, 0.2, 0.3},
	})
	require.NoError(t, err)

	q, err := jointPositionsFrom(ctx, arm)
	require.NoError(t, err)
	assert.Equal(t, kinematics.JointAngles{0, 0.1, 0.2, 0.3}, q)

	_, err = arm.DoCommand(ctx, map[string]interface{}{
		"command":       "set-joint-positions",
		"positions_rad": []interface{}{0.0, 0.1},
	})
	assert.Error(t, err)

	_, err = arm.DoCommand(ctx, map[string]interface{}{"command": "sweep", "enabled": true})
	require.NoError(t, err)
	_, err = arm.DoCommand(ctx, map[string]interface{}{
		"command":       "set-joint-positions",
		"positions_rad": []float64{0, 0, 0, 0},
	})
	assert.ErrorContains(t, err, "sweeping")
	_, err = arm.DoCommand(ctx, map[string]interface{}{"command": "sweep", "enabled": false})
	require.NoError(t, err)

	_, err = arm.DoCommand(ctx, map[string]interface{}{"command": "dance"})
	assert.ErrorContains(t, err, "invalid command")
}

func TestSimulatedArmRejectsUnboundedSweepRate(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewSimulatedArm(generic.Named("arm"), &SimulatedArmConfig{SweepRateHz: 2e9}, logger)
	assert.ErrorContains(t, err, "sweep_rate_hz")
	_, err = NewSimulatedArm(generic.Named("arm"), &SimulatedArmConfig{SweepRateHz: -1}, logger)
	assert.ErrorContains(t, err, "sweep_rate_hz")

	conf := &Config{YZCameraName: "yz", XZCameraName: "xz", ArmName: "arm", VisionRateHz: 2e9}
	_, _, err = conf.Validate("services.0")
	assert.ErrorContains(t, err, "vision_rate_hz")
}

func TestArmViewCameraRendersArm(t *testing.T) {
	rig := newSimRig(t, kinematics.JointAngles{}, nil)
	cam := rig.deps[camera.Named("yz")].(camera.Camera)

	imgs, _, err := cam.Images(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	img, err := imgs[0].Image(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())

	_, _, err = (&ArmViewCameraConfig{ArmName: "arm", Axis: "xy"}).Validate("")
	assert.Error(t, err)
}

func TestServoSkipsUntilEstimateAndTarget(t *testing.T) {
	rig := newSimRig(t, kinematics.JointAngles{}, nil)
	ctx := context.Background()

	err := rig.servo.controlStep(ctx, time.Now())
	assert.True(t, errors.Is(err, errNoEstimate))

	require.NoError(t, rig.servo.updateEstimate(ctx))
	err = rig.servo.controlStep(ctx, time.Now())
	assert.True(t, errors.Is(err, errNoTarget))
}

func TestServoDrivesArmToTarget(t *testing.T) {
	start := kinematics.JointAngles{0, 0.3, 0.4, 0.6}
	rig := newSimRig(t, start, nil)
	ctx := context.Background()

	target := kinematics.Forward(kinematics.JointAngles{0, 0.45, 0.55, 0.75})
	_, err := rig.servo.DoCommand(ctx, map[string]interface{}{
		"command": "set-target",
		"target":  []interface{}{target.X, target.Y, target.Z},
	})
	require.NoError(t, err)

	now := time.Now()
	rig.servo.resetController(now)
	initial := target.Sub(kinematics.Forward(start)).Norm()
	for i := 0; i < 80; i++ {
		require.NoError(t, rig.servo.updateEstimate(ctx))
		now = now.Add(50 * time.Millisecond)
		require.NoError(t, rig.servo.controlStep(ctx, now))
	}

	q, err := jointPositionsFrom(ctx, rig.arm)
	require.NoError(t, err)
	final := target.Sub(kinematics.Forward(q)).Norm()
	assert.Less(t, final, initial/5)
	assert.Equal(t, 0.0, q[0])

	state, err := rig.servo.DoCommand(ctx, map[string]interface{}{"command": "get-state"})
	require.NoError(t, err)
	assert.Contains(t, state, "estimate")
	assert.Contains(t, state, "last_command_rad")
	assert.Contains(t, state, "estimate_age_sec")
	assert.Len(t, state["last_error"], 3)
	assert.Equal(t, false, state["running"])
}

func TestServoFirstCommandAfterWaitingForTarget(t *testing.T) {
	start := kinematics.JointAngles{0, 0.3, 0.4, 0.6}
	// a gap limit longer than the wait, so only the skipped cycles keep the history fresh
	rig := newSimRig(t, start, &Config{
		YZCameraName:   "yz",
		XZCameraName:   "xz",
		ArmName:        "arm",
		MaxCycleGapSec: 60,
	})
	ctx := context.Background()

	now := time.Now()
	rig.servo.resetController(now)
	require.NoError(t, rig.servo.updateEstimate(ctx))
	for i := 0; i < 400; i++ {
		now = now.Add(50 * time.Millisecond)
		assert.ErrorIs(t, rig.servo.controlStep(ctx, now), errNoTarget)
	}

	target := kinematics.Forward(kinematics.JointAngles{0, 0.45, 0.55, 0.75})
	_, err := rig.servo.DoCommand(ctx, map[string]interface{}{
		"command": "set-target",
		"target":  []interface{}{target.X, target.Y, target.Z},
	})
	require.NoError(t, err)

	now = now.Add(50 * time.Millisecond)
	require.NoError(t, rig.servo.controlStep(ctx, now))
	res, ok := rig.servo.lastResult.Load()
	require.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, res.Dt)

	q, err := jointPositionsFrom(ctx, rig.arm)
	require.NoError(t, err)
	for i := range q {
		assert.Less(t, math.Abs(q[i]-start[i]), 0.15, "joint %d", i)
	}
	assert.Less(t, target.Sub(kinematics.Forward(q)).Norm(), target.Sub(kinematics.Forward(start)).Norm())
}

func TestServoStartStop(t *testing.T) {
	rig := newSimRig(t, kinematics.JointAngles{}, &Config{
		YZCameraName:  "yz",
		XZCameraName:  "xz",
		ArmName:       "arm",
		InitialTarget: []float64{0, 0, 9},
	})
	ctx := context.Background()

	target, ok := rig.servo.target.Load()
	require.True(t, ok)
	assert.Equal(t, r3.Vector{Z: 9}, target)

	resp, err := rig.servo.DoCommand(ctx, map[string]interface{}{"command": "start"})
	require.NoError(t, err)
	assert.Equal(t, "started", resp["status"])
	resp, err = rig.servo.DoCommand(ctx, map[string]interface{}{"command": "start"})
	require.NoError(t, err)
	assert.Equal(t, "already running", resp["status"])

	resp, err = rig.servo.DoCommand(ctx, map[string]interface{}{"command": "stop"})
	require.NoError(t, err)
	assert.Equal(t, "stopped", resp["status"])

	_, err = rig.servo.DoCommand(ctx, map[string]interface{}{"command": "reset-controller"})
	require.NoError(t, err)

	_, err = rig.servo.DoCommand(ctx, map[string]interface{}{"command": "set-target", "target": "up"})
	assert.Error(t, err)
	_, err = rig.servo.DoCommand(ctx, map[string]interface{}{
		"command": "set-target",
		"target":  map[string]interface{}{"x": 1.0, "y": 2.0, "z": 3.0},
	})
	require.NoError(t, err)
	target, _ = rig.servo.target.Load()
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, target)

	_, err = rig.servo.DoCommand(ctx, map[string]interface{}{"command": "clear-target"})
	require.NoError(t, err)
	_, ok = rig.servo.target.Load()
	assert.False(t, ok)
	require.NoError(t, rig.servo.updateEstimate(ctx))
	assert.ErrorIs(t, rig.servo.controlStep(ctx, time.Now()), errNoTarget)
}

func TestParseHelpers(t *testing.T) {
	v, err := parseVector([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, v)

	_, err = parseVector([]interface{}{1.0, "two", 3.0})
	assert.Error(t, err)

	_, err = parseJointAngles([]float64{0, 1, 2})
	assert.Error(t, err)
}
