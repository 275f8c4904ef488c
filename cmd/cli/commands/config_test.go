package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSimConfigDefaults(t *testing.T) {
	cfg, err := loadSimConfig("")
	require.NoError(t, err)

	assert.Equal(t, "arm", cfg.Servo.ArmName)
	assert.Equal(t, 30.0, cfg.Servo.VisionRateHz, "servo defaults are filled by Validate")
	assert.Equal(t, "color", cfg.Servo.MarkerMode)
	assert.Equal(t, 10*time.Second, cfg.Duration)
	assert.Len(t, cfg.Arm.InitialPositionsRad, 4)
}

func TestLoadSimConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
servo:
  yz_camera_name: cam-a
  xz_camera_name: cam-b
  arm_name: arm
  control_rate_hz: 50
  initial_target: [1, 2, 6]
black_markers: true
duration: 3s
`)

	cfg, err := loadSimConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "cam-a", cfg.Servo.YZCameraName)
	assert.Equal(t, 50.0, cfg.Servo.ControlRateHz)
	assert.Equal(t, []float64{1, 2, 6}, cfg.Servo.InitialTarget)
	assert.Equal(t, "black-circles", cfg.Servo.MarkerMode)
	assert.Equal(t, 3*time.Second, cfg.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.PrintEvery)
}

func TestLoadSimConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", "servo: [\n"},
		{"control rate too high", "servo:\n  control_rate_hz: 500\n"},
		{"bad target", "servo:\n  initial_target: [1, 2]\n"},
		{"negative duration", "duration: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadSimConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := loadSimConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFormatAngles(t *testing.T) {
	assert.Equal(t, "[+0.100, -2.000]", formatAngles([]float64{0.1, -2}))
	assert.Equal(t, "[]", formatAngles(nil))
}
