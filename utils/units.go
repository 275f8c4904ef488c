package utils

import (
	"math"

	"github.com/golang/geo/r3"
)

// Clamp clamps a value between min and max
func Clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}

func DegreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

func RadiansToDegrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}

// WrapAngleRad wraps an angle into [-pi, pi).
func WrapAngleRad(rad float64) float64 {
	wrapped := math.Mod(rad+math.Pi, 2*math.Pi)
	if wrapped < 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// RotateAboutX applies the right-handed rotation matrix about +X:
//
//	| 1    0     0 |
//	| 0  cos -sin  |
//	| 0  sin  cos  |
func RotateAboutX(angle float64, v r3.Vector) r3.Vector {
	c, s := math.Cos(angle), math.Sin(angle)
	return r3.Vector{
		X: v.X,
		Y: c*v.Y - s*v.Z,
		Z: s*v.Y + c*v.Z,
	}
}

// RotateAboutY applies the right-handed rotation matrix about +Y:
//
//	|  cos 0 sin |
//	|   0  1  0  |
//	| -sin 0 cos |
func RotateAboutY(angle float64, v r3.Vector) r3.Vector {
	c, s := math.Cos(angle), math.Sin(angle)
	return r3.Vector{
		X: c*v.X + s*v.Z,
		Y: v.Y,
		Z: -s*v.X + c*v.Z,
	}
}

// RotateAboutZ applies the right-handed rotation matrix about +Z.
func RotateAboutZ(angle float64, v r3.Vector) r3.Vector {
	c, s := math.Cos(angle), math.Sin(angle)
	return r3.Vector{
		X: c*v.X - s*v.Y,
		Y: s*v.X + c*v.Y,
		Z: v.Z,
	}
}

// VectorToSlice flattens a vector for DoCommand payloads.
func VectorToSlice(v r3.Vector) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

func VectorToMap(v r3.Vector) map[string]interface{} {
	return map[string]interface{}{
		"x": v.X,
		"y": v.Y,
		"z": v.Z,
	}
}
