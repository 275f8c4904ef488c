package commands

import (
	"armservo/pipeline"
	"context"
	"fmt"
	"time"

	"github.com/erh/vmodutils"
	"github.com/erh/vmodutils/touch"
	"github.com/golang/geo/r3"
	"github.com/spf13/cobra"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/robot"
)

var (
	remoteYZ       string
	remoteXZ       string
	remoteBase     float64
	remoteMode     string
	remoteInterval time.Duration
	remoteCount    int
	remoteTarget   string
	remoteScale    float64
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Estimate joint angles from the cameras of a live machine",
	Long: `Connect to the machine described by the module environment variables,
grab frame pairs from two cameras and print the estimate for each. With
--target the estimate is compared against a component's frame system position.`,
	RunE: runRemote,
}

func init() {
	remoteCmd.Flags().StringVar(&remoteYZ, "yz", "yz-camera", "Name of the camera looking along X")
	remoteCmd.Flags().StringVar(&remoteXZ, "xz", "xz-camera", "Name of the camera looking along Y")
	remoteCmd.Flags().Float64Var(&remoteBase, "base", 0, "Known base joint angle in radians")
	remoteCmd.Flags().StringVar(&remoteMode, "mode", "color", "Marker mode: color or black-circles")
	remoteCmd.Flags().DurationVar(&remoteInterval, "interval", time.Second, "Time between estimates")
	remoteCmd.Flags().IntVarP(&remoteCount, "count", "n", 1, "Number of estimates")
	remoteCmd.Flags().StringVar(&remoteTarget, "target", "", "Component whose frame system position is the target")
	remoteCmd.Flags().Float64Var(&remoteScale, "target-scale", 1, "Scale from frame system units to arm units")
	rootCmd.AddCommand(remoteCmd)
}

func cameraFromRobot(r robot.Robot, name string) (camera.Camera, error) {
	res, err := r.ResourceByName(camera.Named(name))
	if err != nil {
		return nil, fmt.Errorf("failed to get camera %q: %w", name, err)
	}
	cam, ok := res.(camera.Camera)
	if !ok {
		return nil, fmt.Errorf("resource %q is not a camera", name)
	}
	return cam, nil
}

// targetFromFrameSystem looks up a component's position in the machine's frame system.
func targetFromFrameSystem(ctx context.Context, r robot.Robot, name string) (r3.Vector, error) {
	fsc, err := r.FrameSystemConfig(ctx)
	if err != nil {
		return r3.Vector{}, fmt.Errorf("failed to get frame system config: %w", err)
	}
	part := touch.FindPart(fsc, name)
	if part == nil {
		return r3.Vector{}, fmt.Errorf("can't find frame for %v", name)
	}
	pose, err := r.GetPose(ctx, part.FrameConfig.Name(), "", []*referenceframe.LinkInFrame{}, map[string]interface{}{})
	if err != nil {
		return r3.Vector{}, fmt.Errorf("failed to get pose: %w", err)
	}
	return pose.Pose().Point().Mul(remoteScale), nil
}

func runRemote(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger()

	attrs := pipeline.VisionAttributes{MarkerMode: remoteMode}
	if err := attrs.Validate(); err != nil {
		return err
	}
	estimator, err := pipeline.NewEstimator(attrs.Config(), logger)
	if err != nil {
		return err
	}

	robotClient, err := vmodutils.ConnectToMachineFromEnv(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to robot: %w", err)
	}
	defer robotClient.Close(ctx)

	yzCam, err := cameraFromRobot(robotClient, remoteYZ)
	if err != nil {
		return err
	}
	xzCam, err := cameraFromRobot(robotClient, remoteXZ)
	if err != nil {
		return err
	}

	for i := 0; i < remoteCount; i++ {
		if i > 0 {
			time.Sleep(remoteInterval)
		}
		yzImg, xzImg, err := pipeline.GrabPair(ctx, yzCam, xzCam)
		if err != nil {
			return err
		}
		est, err := estimator.Estimate(yzImg, xzImg, remoteBase, time.Now())
		if err != nil {
			yellow.Printf("estimate %d: %v\n", i+1, err)
			continue
		}
		printEstimate(est)
		if remoteTarget != "" {
			target, err := targetFromFrameSystem(ctx, robotClient, remoteTarget)
			if err != nil {
				yellow.Printf("target: %v\n", err)
				continue
			}
			fmt.Printf("  target %s ", formatVector(target))
			printDistance("error", target.Sub(est.EndEffector).Norm())
		}
	}
	return nil
}
