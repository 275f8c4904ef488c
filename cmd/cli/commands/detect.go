package commands

import (
	"armservo/kinematics"
	"armservo/pipeline"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

var (
	detectYZ   string
	detectXZ   string
	detectBase float64
	detectMode string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Estimate joint angles from a pair of saved camera images",
	RunE:  runDetect,
}

func init() {
	detectCmd.Flags().StringVar(&detectYZ, "yz", "", "Image from the camera looking along X")
	detectCmd.Flags().StringVar(&detectXZ, "xz", "", "Image from the camera looking along Y")
	detectCmd.Flags().Float64Var(&detectBase, "base", 0, "Known base joint angle in radians")
	detectCmd.Flags().StringVar(&detectMode, "mode", "color", "Marker mode: color or black-circles")
	detectCmd.MarkFlagRequired("yz")
	detectCmd.MarkFlagRequired("xz")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	yzImg, err := imaging.Open(detectYZ)
	if err != nil {
		return fmt.Errorf("failed to open yz image: %w", err)
	}
	xzImg, err := imaging.Open(detectXZ)
	if err != nil {
		return fmt.Errorf("failed to open xz image: %w", err)
	}

	attrs := pipeline.VisionAttributes{MarkerMode: detectMode}
	if err := attrs.Validate(); err != nil {
		return err
	}
	estimator, err := pipeline.NewEstimator(attrs.Config(), newLogger())
	if err != nil {
		return err
	}
	est, err := estimator.Estimate(yzImg, xzImg, detectBase, time.Now())
	if err != nil {
		return err
	}
	printEstimate(est)
	return nil
}

// printEstimate prints the marker pixels, joint positions and angles of an estimate.
func printEstimate(est pipeline.Estimate) {
	names := []string{"base", "shoulder", "elbow", "wrist"}
	printHeader("Markers")
	for i := range names {
		fmt.Printf("  %-9s yz %-18s xz %s\n", names[i], est.YZ[i], est.XZ[i])
	}
	printHeader("Joint positions")
	for i, p := range est.Positions {
		fmt.Printf("  %-9s %s\n", names[i], formatVector(p))
	}
	printHeader("Joint angles")
	fmt.Printf("  %s\n", formatAngles(est.Angles.Slice()))
	fmt.Print("  end effector ")
	green.Println(formatVector(est.EndEffector))
	printDistance("  wrist residual", est.Positions[kinematics.NumJoints-1].Sub(est.EndEffector).Norm())
}
