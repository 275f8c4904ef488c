package commands

import (
	"armservo"
	"armservo/kinematics"
	"armservo/models"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/golang/geo/r3"
	"github.com/spf13/cobra"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"
)

var (
	simConfigPath string
	simTarget     []float64
	simSweep      bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the servo loop against the built-in simulated arm",
	Long: `Run the full pipeline in process: a simulated arm, two rendered orthogonal
cameras and the visual servo driving the arm toward a target.

With --sweep the arm follows the demo sinusoidal trajectory instead and the
joint estimator's output is compared against the true joint angles.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVarP(&simConfigPath, "config", "c", "", "YAML config file")
	simulateCmd.Flags().Float64SliceVar(&simTarget, "target", nil, "Target end effector position x,y,z")
	simulateCmd.Flags().BoolVar(&simSweep, "sweep", false, "Sweep the arm and report estimation error instead of servoing")
	rootCmd.AddCommand(simulateCmd)
}

// buildRig wires a simulated arm and both view cameras into a dependency set.
func buildRig(cfg SimConfig, logger logging.Logger) (resource.Resource, resource.Dependencies, error) {
	arm, err := models.NewSimulatedArm(generic.Named(cfg.Servo.ArmName), &cfg.Arm, logger)
	if err != nil {
		return nil, nil, err
	}
	deps := resource.Dependencies{generic.Named(cfg.Servo.ArmName): arm}
	for axis, name := range map[string]string{"yz": cfg.Servo.YZCameraName, "xz": cfg.Servo.XZCameraName} {
		cam, err := models.NewArmViewCamera(deps, camera.Named(name), &models.ArmViewCameraConfig{
			ArmName:      cfg.Servo.ArmName,
			Axis:         axis,
			BlackMarkers: cfg.BlackMarkers,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		deps[camera.Named(name)] = cam
	}
	return arm, deps, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logger := newLogger()

	cfg, err := loadSimConfig(simConfigPath)
	if err != nil {
		return err
	}
	if simTarget != nil {
		if len(simTarget) != 3 {
			return fmt.Errorf("--target needs exactly 3 values, got %d", len(simTarget))
		}
		cfg.Servo.InitialTarget = simTarget
	}

	if !simSweep {
		warnIfUnreachable(cfg)
	}

	arm, deps, err := buildRig(cfg, logger)
	if err != nil {
		return err
	}
	defer arm.Close(ctx)

	if simSweep {
		return runSweep(ctx, cfg, arm, deps, logger)
	}

	servo, err := models.NewVisualServo(ctx, deps, genericservice.Named("servo"), &cfg.Servo, logger)
	if err != nil {
		return err
	}
	defer servo.Close(ctx)

	printHeader("Servoing to %v for %v", cfg.Servo.InitialTarget, cfg.Duration)
	return every(ctx, cfg.PrintEvery, cfg.Duration, func(elapsed time.Duration) error {
		state, err := servo.DoCommand(ctx, map[string]interface{}{"command": "get-state"})
		if err != nil {
			return err
		}
		truth, err := arm.DoCommand(ctx, map[string]interface{}{"command": "get-joint-positions"})
		if err != nil {
			return err
		}
		q, _ := truth["positions_rad"].([]float64)
		fmt.Printf("%6.1fs joints %s ", elapsed.Seconds(), formatAngles(q))
		if d, ok := state["error_distance"].(float64); ok {
			printDistance("error", d)
		} else {
			yellow.Println("waiting for estimate")
		}
		return nil
	})
}

func runSweep(ctx context.Context, cfg SimConfig, arm resource.Resource, deps resource.Dependencies, logger logging.Logger) error {
	if _, err := arm.DoCommand(ctx, map[string]interface{}{"command": "sweep", "enabled": true}); err != nil {
		return err
	}

	estCfg := &armservo.Config{
		YZCameraName: cfg.Servo.YZCameraName,
		XZCameraName: cfg.Servo.XZCameraName,
		MarkerMode:   cfg.Servo.MarkerMode,
	}
	if _, _, err := estCfg.Validate("estimator"); err != nil {
		return err
	}
	estimator, err := armservo.NewJointEstimator(ctx, deps, genericservice.Named("estimator"), estCfg, logger)
	if err != nil {
		return err
	}
	defer estimator.Close(ctx)

	printHeader("Sweeping for %v", cfg.Duration)
	return every(ctx, cfg.PrintEvery, cfg.Duration, func(elapsed time.Duration) error {
		truth, err := arm.DoCommand(ctx, map[string]interface{}{"command": "get-joint-positions"})
		if err != nil {
			return err
		}
		est, err := estimator.DoCommand(ctx, map[string]interface{}{"command": "get-joint-angles"})
		if err != nil {
			yellow.Printf("%6.1fs %v\n", elapsed.Seconds(), err)
			return nil
		}
		q, _ := truth["positions_rad"].([]float64)
		got, _ := est["joint_angles_rad"].([]float64)
		fmt.Printf("%6.1fs true %s estimated %s ", elapsed.Seconds(), formatAngles(q), formatAngles(got))
		if len(q) == kinematics.NumJoints && len(got) == kinematics.NumJoints {
			var want, have kinematics.JointAngles
			copy(want[:], q)
			copy(have[:], got)
			printDistance("tip error", kinematics.Forward(want).Sub(kinematics.Forward(have)).Norm())
		} else {
			fmt.Println()
		}
		return nil
	})
}

// warnIfUnreachable flags targets the arm cannot reach without turning its base.
func warnIfUnreachable(cfg SimConfig) {
	if len(cfg.Servo.InitialTarget) != 3 {
		return
	}
	target := r3.Vector{X: cfg.Servo.InitialTarget[0], Y: cfg.Servo.InitialTarget[1], Z: cfg.Servo.InitialTarget[2]}
	seed := kinematics.JointAngles{cfg.Servo.BaseAngleRad, 0.1, 0.1, 0.1}
	if _, err := kinematics.Solve(target, seed, 0.05); err != nil {
		yellow.Printf("warning: %v; the servo will settle at the closest point\n", err)
	}
}

// every calls fn each period until total has elapsed or ctx ends.
func every(ctx context.Context, period, total time.Duration, fn func(elapsed time.Duration) error) error {
	start := time.Now()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if err := fn(elapsed); err != nil {
				return err
			}
			if elapsed >= total {
				green.Println("done")
				return nil
			}
		}
	}
}
