// Package markers finds joint markers in a single camera view.
package markers

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// Position is an image-plane marker position, or the absence of one.
// The zero value is NotFound.
type Position struct {
	point r2.Point
	found bool
}

// Found returns a present position at pixel (x, y).
func Found(x, y float64) Position {
	return Position{point: r2.Point{X: x, Y: y}, found: true}
}

// FoundAt returns a present position at p.
func FoundAt(p r2.Point) Position {
	return Position{point: p, found: true}
}

// NotFound returns the absent position.
func NotFound() Position {
	return Position{}
}

// Point returns the pixel and whether the marker was found.
func (p Position) Point() (r2.Point, bool) {
	return p.point, p.found
}

// IsFound reports whether the marker was found.
func (p Position) IsFound() bool {
	return p.found
}

func (p Position) String() string {
	if !p.found {
		return "not-found"
	}
	return fmt.Sprintf("(%.1f, %.1f)", p.point.X, p.point.Y)
}

// ToMap renders the position for DoCommand payloads; absent markers map to nil.
func (p Position) ToMap() map[string]interface{} {
	if !p.found {
		return nil
	}
	return map[string]interface{}{"x": p.point.X, "y": p.point.Y}
}
