package commands

import (
	"armservo/kinematics"
	"armservo/models"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SimConfig is the simulate command's YAML file.
type SimConfig struct {
	Servo models.Config             `yaml:"servo"`
	Arm   models.SimulatedArmConfig `yaml:"arm"`
	// BlackMarkers draws the simulated markers black for both cameras
	BlackMarkers bool          `yaml:"black_markers"`
	Duration     time.Duration `yaml:"duration"`
	PrintEvery   time.Duration `yaml:"print_every"`
}

// defaultSimConfig servoes the arm from a bent pose toward a point in front of it.
func defaultSimConfig() SimConfig {
	start := kinematics.JointAngles{0, 0.3, 0.4, 0.6}
	return SimConfig{
		Servo: models.Config{
			YZCameraName:  "yz",
			XZCameraName:  "xz",
			ArmName:       "arm",
			InitialTarget: []float64{2.5, -2.0, 6.0},
			EnableOnStart: true,
		},
		Arm:        models.SimulatedArmConfig{InitialPositionsRad: start.Slice()},
		Duration:   10 * time.Second,
		PrintEvery: 500 * time.Millisecond,
	}
}

// loadSimConfig reads a simulate config, layering it over the defaults.
func loadSimConfig(path string) (SimConfig, error) {
	cfg := defaultSimConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if cfg.Servo.MarkerMode == "" && cfg.BlackMarkers {
		cfg.Servo.MarkerMode = "black-circles"
	}
	if _, _, err := cfg.Servo.Validate("servo"); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("invalid configuration: duration must be positive")
	}
	if cfg.PrintEvery <= 0 {
		cfg.PrintEvery = 500 * time.Millisecond
	}
	return cfg, nil
}
