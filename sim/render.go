// Package sim renders the arm as seen by the two orthogonal cameras and
// generates the demo joint trajectory. It backs the simulated camera model
// and the end-to-end tests.
package sim

import (
	"armservo/kinematics"
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Axis names a camera view by the two physical axes it sees.
type Axis string

const (
	// AxisYZ looks along -X from the +X side.
	AxisYZ Axis = "yz"
	// AxisXZ looks along +Y from the -Y side.
	AxisXZ Axis = "xz"
)

// ParseAxis validates an axis name.
func ParseAxis(s string) (Axis, error) {
	switch Axis(s) {
	case AxisYZ, AxisXZ:
		return Axis(s), nil
	default:
		return "", fmt.Errorf("unknown camera axis %q, want %q or %q", s, AxisYZ, AxisXZ)
	}
}

// Scene describes how the arm is drawn.
type Scene struct {
	Width, Height int
	// BasePixel is where the base joint lands in both views.
	BasePixel     r2.Point
	PixelsPerUnit float64
	MarkerRadius  int
	// Black draws every marker black instead of one colour per joint.
	Black bool
}

// DefaultScene matches the fixed reference pixels used by marker detection.
func DefaultScene() Scene {
	return Scene{
		Width:         800,
		Height:        800,
		BasePixel:     r2.Point{X: 398, Y: 535},
		PixelsPerUnit: 26,
		MarkerRadius:  10,
	}
}

// Marker colours, base first.
var (
	MarkerColors = [kinematics.NumJoints]color.NRGBA{
		{R: 255, G: 255, A: 255},
		{B: 255, A: 255},
		{G: 255, A: 255},
		{R: 255, A: 255},
	}
	markerBlack = color.NRGBA{A: 255}
	linkGrey    = color.NRGBA{R: 128, G: 128, B: 128, A: 255}
)

// Project returns the pixel a point lands on in the given view.
func (s Scene) Project(axis Axis, p r3.Vector) r2.Point {
	horizontal := p.Y
	if axis == AxisXZ {
		horizontal = p.X
	}
	return r2.Point{
		X: s.BasePixel.X + s.PixelsPerUnit*horizontal,
		Y: s.BasePixel.Y - s.PixelsPerUnit*p.Z,
	}
}

// depth is the distance away from the camera, larger is farther.
func depth(axis Axis, p r3.Vector) float64 {
	if axis == AxisXZ {
		return p.Y
	}
	return -p.X
}

// Render draws the arm at q from one axis on a white background. Nearer
// markers are drawn over farther ones.
func (s Scene) Render(axis Axis, q kinematics.JointAngles) *image.NRGBA {
	img := imaging.New(s.Width, s.Height, color.White)
	joints := kinematics.JointPositions(q)

	for i := 1; i < len(joints); i++ {
		drawLine(img, s.Project(axis, joints[i-1]), s.Project(axis, joints[i]), linkGrey)
	}

	order := []int{0, 1, 2, 3}
	sort.SliceStable(order, func(a, b int) bool {
		return depth(axis, joints[order[a]]) > depth(axis, joints[order[b]])
	})
	for _, i := range order {
		c := MarkerColors[i]
		if s.Black {
			c = markerBlack
		}
		drawDisc(img, s.Project(axis, joints[i]), s.MarkerRadius, c)
	}
	return img
}

func drawDisc(img *image.NRGBA, centre r2.Point, radius int, c color.NRGBA) {
	cx, cy := int(centre.X+0.5), int(centre.Y+0.5)
	bounds := img.Bounds()
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) > radius*radius {
				continue
			}
			if image.Pt(x, y).In(bounds) {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

func drawLine(img *image.NRGBA, from, to r2.Point, c color.NRGBA) {
	d := to.Sub(from)
	steps := int(d.Norm()) + 1
	bounds := img.Bounds()
	for k := 0; k <= steps; k++ {
		p := from.Add(d.Mul(float64(k) / float64(steps)))
		pt := image.Pt(int(p.X+0.5), int(p.Y+0.5))
		if pt.In(bounds) {
			img.SetNRGBA(pt.X, pt.Y, c)
		}
	}
}
