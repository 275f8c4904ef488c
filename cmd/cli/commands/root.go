// Package commands implements the armservo command line tool.
package commands

import (
	"github.com/spf13/cobra"
	"go.viam.com/rdk/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "armservo",
	Short: "Estimate and servo a four joint arm from two orthogonal cameras",
	Long: `armservo runs the dual-view joint estimation and resolved-rate servo
pipeline outside a robot: against the built-in simulation, against image
files, or against the cameras of a live machine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline debug output")
}

func newLogger() logging.Logger {
	logger := logging.NewLogger("cli")
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	return logger
}
