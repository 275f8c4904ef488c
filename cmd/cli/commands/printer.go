package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/golang/geo/r3"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// convergedDistance is the end effector error printed as converged.
const convergedDistance = 0.1

func printError(err error) {
	red.Fprintf(os.Stderr, "Error: %v\n", err)
}

func printHeader(format string, a ...any) {
	cyan.Printf(format+"\n", a...)
}

// printDistance colours an end effector error by whether it has converged.
func printDistance(label string, d float64) {
	c := yellow
	if d < convergedDistance {
		c = green
	}
	fmt.Printf("%s ", label)
	c.Printf("%.3f\n", d)
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}

func formatAngles(q []float64) string {
	s := "["
	for i, a := range q {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%+.3f", a)
	}
	return s + "]"
}
