package fusion

import (
	"armservo/angles"
	"armservo/kinematics"
	"armservo/markers"
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pixelsPerUnit = 26.0

var basePixel = struct{ X, Y float64 }{398, 535}

// project renders the arm's joints into both camera views.
func project(q kinematics.JointAngles) (yz, xz View) {
	for i, p := range kinematics.JointPositions(q) {
		yz[i] = markers.Found(basePixel.X+pixelsPerUnit*p.Y, basePixel.Y-pixelsPerUnit*p.Z)
		xz[i] = markers.Found(basePixel.X+pixelsPerUnit*p.X, basePixel.Y-pixelsPerUnit*p.Z)
	}
	return yz, xz
}

func TestFuseFullVisibilityAssemblesDirectly(t *testing.T) {
	yz := View{
		markers.Found(400, 500),
		markers.Found(400, 435),
		markers.Found(430, 360),
		markers.Found(470, 300),
	}
	xz := View{
		markers.Found(300, 510),
		markers.Found(300, 445),
		markers.Found(250, 370),
		markers.Found(220, 310),
	}

	got, err := Fuse(yz, xz)
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{}, got[0])
	assert.Equal(t, r3.Vector{X: 0, Y: 0, Z: 65}, got[1])
	assert.Equal(t, r3.Vector{X: -50, Y: 30, Z: 140}, got[2])
	assert.Equal(t, r3.Vector{X: -80, Y: 70, Z: 200}, got[3])
}

func TestFuseRecoversGeometry(t *testing.T) {
	q := kinematics.JointAngles{0, 0.4, -0.7, 0.9}
	yz, xz := project(q)

	got, err := Fuse(yz, xz)
	require.NoError(t, err)
	got = ToUnits(got, pixelsPerUnit)

	want := kinematics.JointPositions(q)
	for i := range want {
		assert.InDelta(t, want[i].X, got[i].X, 1e-9)
		assert.InDelta(t, want[i].Y, got[i].Y, 1e-9)
		assert.InDelta(t, want[i].Z, got[i].Z, 1e-9)
	}

	ext := angles.Extract(got)
	assert.InDelta(t, q[1], ext[0], 1e-9)
	assert.InDelta(t, q[2], ext[1], 1e-9)
	assert.InDelta(t, q[3], ext[2], 1e-9)
}

func TestFuseInfersOccludedJoint(t *testing.T) {
	q := kinematics.JointAngles{0, 0.3, 0.5, -0.4}
	yz, xz := project(q)
	full, err := Fuse(yz, xz)
	require.NoError(t, err)

	for _, tc := range []struct {
		name  string
		joint int
		xzOut bool
	}{
		{"elbow hidden in xz", 2, true},
		{"wrist hidden in xz", 3, true},
		{"elbow hidden in yz", 2, false},
		{"wrist hidden in yz", 3, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a, b := yz, xz
			if tc.xzOut {
				b[tc.joint] = markers.NotFound()
			} else {
				a[tc.joint] = markers.NotFound()
			}
			got, err := Fuse(a, b)
			require.NoError(t, err)

			p := got[tc.joint]
			assert.False(t, math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z))
			assert.Equal(t, full[tc.joint].Z, p.Z)

			// the inferred coordinate is copied from a real joint
			var inferred float64
			var column func(r3.Vector) float64
			if tc.xzOut {
				inferred, column = p.X, func(v r3.Vector) float64 { return v.X }
			} else {
				inferred, column = p.Y, func(v r3.Vector) float64 { return v.Y }
			}
			matched := false
			for j, v := range full {
				if j != tc.joint && column(v) == inferred {
					matched = true
				}
			}
			assert.True(t, matched, "inferred %v is not any other joint's coordinate", inferred)

			// untouched joints are unchanged
			for j := range full {
				if j != tc.joint {
					assert.Equal(t, full[j], got[j])
				}
			}
		})
	}
}

func TestFuseErrors(t *testing.T) {
	yz, xz := project(kinematics.JointAngles{0, 0.2, 0.2, 0.2})

	noBase := yz
	noBase[0] = markers.NotFound()
	_, err := Fuse(noBase, xz)
	assert.True(t, errors.Is(err, ErrBaseNotVisible))

	a, b := yz, xz
	a[2], b[2] = markers.NotFound(), markers.NotFound()
	_, err = Fuse(a, b)
	assert.True(t, errors.Is(err, ErrJointUnobservable))
}

func TestToUnits(t *testing.T) {
	in := [4]r3.Vector{{}, {Z: 65}, {X: 26}, {Y: -52}}
	got := ToUnits(in, pixelsPerUnit)
	assert.Equal(t, r3.Vector{Z: 2.5}, got[1])
	assert.Equal(t, r3.Vector{X: 1}, got[2])
	assert.Equal(t, r3.Vector{Y: -2}, got[3])
	assert.Equal(t, in, ToUnits(in, 0))
}
