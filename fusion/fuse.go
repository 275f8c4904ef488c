// Package fusion combines marker positions from two orthogonal views into 3D
// joint positions centred on the base joint.
//
// The yz camera looks along x: its image x is physical y and its image y is
// physical -z. The xz camera looks along y: its image x is physical x. Both
// views share the vertical axis.
package fusion

import (
	"armservo/markers"
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

var (
	// ErrBaseNotVisible is returned when a view has no base marker to centre on.
	ErrBaseNotVisible = errors.New("base marker not visible")
	// ErrJointUnobservable is returned when a joint cannot be found or inferred.
	ErrJointUnobservable = errors.New("joint not observable in either view")
)

// View is one camera's markers, ordered base, shoulder, elbow, wrist.
type View [4]markers.Position

// Fuse returns the 3D position of every joint in pixel units, base at the
// origin. A joint missing from one view is inferred from the other.
func Fuse(yz, xz View) ([4]r3.Vector, error) {
	var out [4]r3.Vector

	yzPts, err := recenter(yz)
	if err != nil {
		return out, fmt.Errorf("yz view: %w", err)
	}
	xzPts, err := recenter(xz)
	if err != nil {
		return out, fmt.Errorf("xz view: %w", err)
	}

	for i := 1; i < len(out); i++ {
		a, aok := yzPts[i], yz[i].IsFound()
		b, bok := xzPts[i], xz[i].IsFound()
		switch {
		case aok && bok:
		case aok:
			b, bok = infer(i, yzPts, xzPts, yz, xz)
		case bok:
			a, aok = infer(i, xzPts, yzPts, xz, yz)
		}
		if !aok || !bok {
			return out, fmt.Errorf("joint %d: %w", i, ErrJointUnobservable)
		}
		out[i] = r3.Vector{X: b.X, Y: a.X, Z: a.Y}
	}
	return out, nil
}

// recenter moves each found marker into a frame with the base at the origin
// and the vertical axis pointing up.
func recenter(v View) ([4]r2.Point, error) {
	var out [4]r2.Point
	base, ok := v[0].Point()
	if !ok {
		return out, ErrBaseNotVisible
	}
	for i, p := range v {
		pt, ok := p.Point()
		if !ok {
			continue
		}
		out[i] = r2.Point{X: pt.X - base.X, Y: base.Y - pt.Y}
	}
	return out, nil
}

// infer estimates joint i in the missing view. Among the other joints seen in
// both views, it picks the one whose height in the working view is closest to
// joint i's, then takes that joint's horizontal coordinate from the missing
// view and joint i's own height from the working view.
func infer(i int, working, missing [4]r2.Point, workingView, missingView View) (r2.Point, bool) {
	best := -1
	bestDist := math.Inf(1)
	for j := range working {
		if j == i || !workingView[j].IsFound() || !missingView[j].IsFound() {
			continue
		}
		if d := math.Abs(working[j].Y - working[i].Y); d < bestDist {
			best, bestDist = j, d
		}
	}
	if best < 0 {
		return r2.Point{}, false
	}
	return r2.Point{X: missing[best].X, Y: working[i].Y}, true
}

// ToUnits scales pixel-space joint positions into arm length units.
func ToUnits(positions [4]r3.Vector, pixelsPerUnit float64) [4]r3.Vector {
	if pixelsPerUnit <= 0 {
		return positions
	}
	for i := range positions {
		positions[i] = positions[i].Mul(1 / pixelsPerUnit)
	}
	return positions
}
