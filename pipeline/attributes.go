package pipeline

import (
	"armservo/markers"
	"armservo/utils"
	"fmt"

	"github.com/golang/geo/r2"
)

// VisionAttributes are the detection settings shared by every resource that
// runs the pipeline. They are flat in the resource config.
type VisionAttributes struct {
	MarkerMode    string            `json:"marker_mode,omitempty" yaml:"marker_mode,omitempty"`
	BasePixel     []float64         `json:"base_pixel,omitempty" yaml:"base_pixel,omitempty"`
	ShoulderPixel []float64         `json:"shoulder_pixel,omitempty" yaml:"shoulder_pixel,omitempty"`
	PixelsPerUnit float64           `json:"pixels_per_unit,omitempty" yaml:"pixels_per_unit,omitempty"`
	Colors        *markers.ColorSet `json:"colors,omitempty" yaml:"colors,omitempty"`
}

// Validate fills defaults and checks the attributes.
func (a *VisionAttributes) Validate() error {
	if a.MarkerMode == "" {
		a.MarkerMode = string(markers.ModeColor)
	}
	switch markers.Mode(a.MarkerMode) {
	case markers.ModeColor, markers.ModeBlackCircles:
	default:
		return fmt.Errorf("marker_mode must be %q or %q, got %q", markers.ModeColor, markers.ModeBlackCircles, a.MarkerMode)
	}
	if len(a.BasePixel) == 0 {
		a.BasePixel = []float64{markers.DefaultReferences.Base.X, markers.DefaultReferences.Base.Y}
	}
	if len(a.ShoulderPixel) == 0 {
		a.ShoulderPixel = []float64{markers.DefaultReferences.Shoulder.X, markers.DefaultReferences.Shoulder.Y}
	}
	if err := utils.ValidatePixel("base_pixel", a.BasePixel); err != nil {
		return err
	}
	if err := utils.ValidatePixel("shoulder_pixel", a.ShoulderPixel); err != nil {
		return err
	}
	if a.PixelsPerUnit < 0 {
		return fmt.Errorf("pixels_per_unit must not be negative, got %v", a.PixelsPerUnit)
	}
	if a.PixelsPerUnit == 0 {
		a.PixelsPerUnit = DefaultPixelsPerUnit
	}
	if a.Colors != nil {
		if err := a.Colors.Validate(); err != nil {
			return fmt.Errorf("colors: %w", err)
		}
	}
	return nil
}

// Config builds the pipeline configuration. Both views share the settings.
func (a VisionAttributes) Config() Config {
	view := markers.DefaultViewConfig()
	if a.MarkerMode != "" {
		view.Mode = markers.Mode(a.MarkerMode)
	}
	if len(a.BasePixel) == 2 {
		view.References.Base = r2.Point{X: a.BasePixel[0], Y: a.BasePixel[1]}
	}
	if len(a.ShoulderPixel) == 2 {
		view.References.Shoulder = r2.Point{X: a.ShoulderPixel[0], Y: a.ShoulderPixel[1]}
	}
	if a.Colors != nil {
		view.Colors = *a.Colors
	}
	ppu := a.PixelsPerUnit
	if ppu <= 0 {
		ppu = DefaultPixelsPerUnit
	}
	return Config{YZ: view, XZ: view, PixelsPerUnit: ppu}
}
