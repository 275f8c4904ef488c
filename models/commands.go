package models

import (
	"armservo/kinematics"
	"armservo/utils"
	"fmt"

	"github.com/golang/geo/r3"
)

// DoCommand names shared between the servo and the simulated arm.
const (
	cmdSetJointPositions = "set-joint-positions"
	cmdGetJointPositions = "get-joint-positions"
	keyPositionsRad      = "positions_rad"
)

// toFloats accepts a numeric list as it arrives over DoCommand, either
// native or decoded from JSON.
func toFloats(raw interface{}) ([]float64, error) {
	switch v := raw.(type) {
	case []float64:
		return v, nil
	case []interface{}:
		out := make([]float64, len(v))
		for i, x := range v {
			f, ok := x.(float64)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, not a number", i, x)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of numbers, got %T", raw)
	}
}

// parseVector reads [x, y, z] or {"x":..,"y":..,"z":..}.
func parseVector(raw interface{}) (r3.Vector, error) {
	var v r3.Vector
	if m, ok := raw.(map[string]interface{}); ok {
		for _, axis := range []struct {
			key string
			dst *float64
		}{{"x", &v.X}, {"y", &v.Y}, {"z", &v.Z}} {
			f, ok := m[axis.key].(float64)
			if !ok {
				return v, fmt.Errorf("%s must be a number", axis.key)
			}
			*axis.dst = f
		}
	} else {
		vals, err := toFloats(raw)
		if err != nil {
			return v, err
		}
		if len(vals) != 3 {
			return v, fmt.Errorf("expected 3 values, got %d", len(vals))
		}
		v = r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}
	}
	return v, utils.ValidateVector("target", v)
}

// parseJointAngles reads a full joint vector, base first.
func parseJointAngles(raw interface{}) (kinematics.JointAngles, error) {
	var q kinematics.JointAngles
	vals, err := toFloats(raw)
	if err != nil {
		return q, err
	}
	if len(vals) != kinematics.NumJoints {
		return q, fmt.Errorf("expected %d joint positions, got %d", kinematics.NumJoints, len(vals))
	}
	if err := utils.ValidateFinite(keyPositionsRad, vals...); err != nil {
		return q, err
	}
	copy(q[:], vals)
	return q, nil
}
