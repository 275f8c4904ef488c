package markers

import (
	"errors"
	"fmt"
	"image"

	"go.viam.com/rdk/logging"
)

// Mode selects how a view's markers are told apart.
type Mode string

const (
	// ModeColor finds each joint by its own marker colour.
	ModeColor Mode = "color"
	// ModeBlackCircles treats base and shoulder as fixed references and finds
	// elbow and wrist as two identical black circles.
	ModeBlackCircles Mode = "black-circles"
)

// ColorSet holds one marker per joint, base first.
type ColorSet struct {
	Base     ColorMarker `json:"base" yaml:"base"`
	Shoulder ColorMarker `json:"shoulder" yaml:"shoulder"`
	Elbow    ColorMarker `json:"elbow" yaml:"elbow"`
	Wrist    ColorMarker `json:"wrist" yaml:"wrist"`
}

// DefaultColorSet is yellow, blue, green, red from base to wrist.
func DefaultColorSet() ColorSet {
	return ColorSet{
		Base:     ColorMarker{Name: "yellow", Range: Yellow},
		Shoulder: ColorMarker{Name: "blue", Range: Blue},
		Elbow:    ColorMarker{Name: "green", Range: Green},
		Wrist:    ColorMarker{Name: "red", Range: Red},
	}
}

func (c ColorSet) markers() [4]ColorMarker {
	return [4]ColorMarker{c.Base, c.Shoulder, c.Elbow, c.Wrist}
}

// Validate checks every marker range.
func (c ColorSet) Validate() error {
	for _, m := range c.markers() {
		if err := m.Range.Validate(); err != nil {
			return fmt.Errorf("marker %q: %w", m.Name, err)
		}
		if m.Erosions < 0 || m.Dilations < 0 {
			return fmt.Errorf("marker %q: erosions and dilations must not be negative", m.Name)
		}
	}
	return nil
}

// ViewConfig configures detection for one camera view.
type ViewConfig struct {
	Mode           Mode
	Colors         ColorSet
	PairRange      RGBRange
	References     References
	Circles        CircleParams
	Disambiguation DisambiguationParams
}

// DefaultViewConfig returns a colour mode configuration for the simulated cameras.
func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		Mode:           ModeColor,
		Colors:         DefaultColorSet(),
		PairRange:      Black,
		References:     DefaultReferences,
		Circles:        DefaultCircleParams(),
		Disambiguation: DefaultDisambiguationParams(),
	}
}

// ViewDetector finds all four joint markers in one view.
type ViewDetector struct {
	cfg    ViewConfig
	pair   *PairDetector
	logger logging.Logger
}

// NewViewDetector builds a detector for one camera view.
func NewViewDetector(cfg ViewConfig, logger logging.Logger) (*ViewDetector, error) {
	d := &ViewDetector{cfg: cfg, logger: logger}
	switch cfg.Mode {
	case ModeColor:
		if err := cfg.Colors.Validate(); err != nil {
			return nil, err
		}
	case ModeBlackCircles:
		if err := cfg.PairRange.Validate(); err != nil {
			return nil, fmt.Errorf("pair range: %w", err)
		}
		d.pair = NewPairDetector(cfg.PairRange, cfg.Circles, cfg.References, cfg.Disambiguation, logger)
	default:
		return nil, fmt.Errorf("unknown marker mode %q", cfg.Mode)
	}
	return d, nil
}

// Detect returns marker positions ordered base, shoulder, elbow, wrist.
// Markers that are not visible are NotFound; that is not an error.
func (d *ViewDetector) Detect(img image.Image) ([4]Position, error) {
	var out [4]Position

	src, err := ImageToMat(img)
	if err != nil {
		if errors.Is(err, errEmptyImage) {
			return out, nil
		}
		return out, err
	}
	defer src.Close()

	switch d.cfg.Mode {
	case ModeBlackCircles:
		out[0] = FoundAt(d.cfg.References.Base)
		out[1] = FoundAt(d.cfg.References.Shoulder)
		out[2], out[3] = d.pair.Resolve(circleCandidates(src, d.cfg.PairRange, d.pair.circles))
	default:
		for i, m := range d.cfg.Colors.markers() {
			out[i] = colorCentroid(src, m)
			if !out[i].IsFound() {
				d.logger.Debugf("%s marker not found", m.Name)
			}
		}
	}
	return out, nil
}
