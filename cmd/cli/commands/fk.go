package commands

import (
	"armservo/kinematics"
	"armservo/utils"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/spf13/cobra"
)

var (
	fkBase    float64
	fkDegrees bool
)

var fkCmd = &cobra.Command{
	Use:   "fk <shoulder> <elbow> <wrist>",
	Short: "Print forward kinematics for a set of joint angles",
	Args:  cobra.ExactArgs(3),
	RunE:  runFK,
}

func init() {
	fkCmd.Flags().Float64Var(&fkBase, "base", 0, "Base joint angle")
	fkCmd.Flags().BoolVar(&fkDegrees, "degrees", false, "Angles are given in degrees")
	rootCmd.AddCommand(fkCmd)
}

func runFK(cmd *cobra.Command, args []string) error {
	q := kinematics.JointAngles{fkBase}
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("joint %d: %w", i+1, err)
		}
		q[i+1] = v
	}
	if fkDegrees {
		for i := range q {
			q[i] = utils.DegreesToRadians(q[i])
		}
	}

	printHeader("Joint angles %s", formatAngles(q.Slice()))
	names := []string{"base", "shoulder", "elbow", "wrist"}
	for i, p := range kinematics.JointPositions(q) {
		fmt.Printf("  %-9s %s\n", names[i], formatVector(p))
	}
	tip := kinematics.Forward(q)
	fmt.Print("  end effector ")
	green.Println(formatVector(tip))
	return nil
}

var (
	ikBase      float64
	ikTolerance float64
)

var ikCmd = &cobra.Command{
	Use:   "ik <x> <y> <z>",
	Short: "Search for joint angles that reach a point with the base held fixed",
	Args:  cobra.ExactArgs(3),
	RunE:  runIK,
}

func init() {
	ikCmd.Flags().Float64Var(&ikBase, "base", 0, "Base joint angle in radians")
	ikCmd.Flags().Float64Var(&ikTolerance, "tolerance", 1e-3, "Largest acceptable end effector error")
	rootCmd.AddCommand(ikCmd)
}

func runIK(cmd *cobra.Command, args []string) error {
	var v [3]float64
	for i, arg := range args {
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("coordinate %d: %w", i+1, err)
		}
		v[i] = f
	}
	target := r3.Vector{X: v[0], Y: v[1], Z: v[2]}

	res, err := kinematics.Solve(target, kinematics.JointAngles{ikBase, 0.1, 0.1, 0.1}, ikTolerance)
	if err != nil && !errors.Is(err, kinematics.ErrUnreachable) {
		return err
	}
	printHeader("Target %s", formatVector(target))
	degrees := make([]float64, kinematics.NumJoints)
	for i, a := range res.Angles {
		degrees[i] = utils.RadiansToDegrees(a)
	}
	fmt.Printf("  joint angles %s rad\n", formatAngles(res.Angles.Slice()))
	fmt.Printf("  joint angles %s deg\n", formatAngles(degrees))
	printDistance("  residual", res.Residual)
	return err
}
