package utils

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
)

// ValidateFinite returns an error naming the first NaN or infinite value.
func ValidateFinite(name string, values ...float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s[%d] must be a finite number, got %v", name, i, v)
		}
	}
	return nil
}

// ValidateVector checks a 3D vector for NaN/Inf components.
func ValidateVector(name string, v r3.Vector) error {
	return ValidateFinite(name, v.X, v.Y, v.Z)
}

// ValidatePixel checks a [x, y] pixel pair from config.
func ValidatePixel(name string, px []float64) error {
	if len(px) != 2 {
		return fmt.Errorf("%s must have exactly 2 values, got %d", name, len(px))
	}
	if err := ValidateFinite(name, px...); err != nil {
		return err
	}
	if px[0] < 0 || px[1] < 0 {
		return fmt.Errorf("%s must not be negative", name)
	}
	return nil
}

// MaxRateHz bounds every loop rate.
const MaxRateHz = 1000

// minInterval is the shortest ticker interval RateToInterval returns.
const minInterval = time.Second / MaxRateHz

// ValidateRate checks an update rate in Hz against an upper bound. A maxHz of
// zero, or one above MaxRateHz, means MaxRateHz.
func ValidateRate(name string, hz, maxHz float64) error {
	if maxHz <= 0 || maxHz > MaxRateHz {
		maxHz = MaxRateHz
	}
	if math.IsNaN(hz) || hz <= 0 {
		return fmt.Errorf("%s must be greater than 0", name)
	}
	if hz > maxHz {
		return fmt.Errorf("%s must be at most %.0f", name, maxHz)
	}
	return nil
}

// RateToInterval converts an update rate to a ticker interval, never shorter
// than one millisecond.
func RateToInterval(hz float64) time.Duration {
	if math.IsNaN(hz) || hz <= 0 || hz > MaxRateHz {
		return minInterval
	}
	return time.Duration(1.0 / hz * float64(time.Second))
}
