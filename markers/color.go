package markers

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// RGBRange is an inclusive per-channel colour threshold.
type RGBRange struct {
	Lower [3]uint8 `json:"lower" yaml:"lower"`
	Upper [3]uint8 `json:"upper" yaml:"upper"`
}

// Validate checks that every lower bound is at most its upper bound.
func (r RGBRange) Validate() error {
	for i := range r.Lower {
		if r.Lower[i] > r.Upper[i] {
			return fmt.Errorf("channel %d: lower %d is above upper %d", i, r.Lower[i], r.Upper[i])
		}
	}
	return nil
}

// Contains reports whether the pixel falls inside the range.
func (r RGBRange) Contains(red, green, blue uint8) bool {
	return red >= r.Lower[0] && red <= r.Upper[0] &&
		green >= r.Lower[1] && green <= r.Upper[1] &&
		blue >= r.Lower[2] && blue <= r.Upper[2]
}

// ColorMarker describes a uniquely coloured joint marker.
type ColorMarker struct {
	Name      string   `json:"name" yaml:"name"`
	Range     RGBRange `json:"range" yaml:"range"`
	Erosions  int      `json:"erosions,omitempty" yaml:"erosions,omitempty"`
	Dilations int      `json:"dilations,omitempty" yaml:"dilations,omitempty"`
}

var errEmptyImage = errors.New("image has no pixels")

// Default marker colours for the simulated arm.
var (
	Yellow = RGBRange{Lower: [3]uint8{100, 100, 0}, Upper: [3]uint8{255, 255, 40}}
	Blue   = RGBRange{Lower: [3]uint8{0, 0, 100}, Upper: [3]uint8{40, 40, 255}}
	Green  = RGBRange{Lower: [3]uint8{0, 100, 0}, Upper: [3]uint8{40, 255, 40}}
	Red    = RGBRange{Lower: [3]uint8{100, 0, 0}, Upper: [3]uint8{255, 40, 40}}
	Black  = RGBRange{Lower: [3]uint8{0, 0, 0}, Upper: [3]uint8{10, 10, 10}}
)

// ImageToMat copies an image into an 8-bit, 3-channel Mat in R, G, B order.
// Thresholds are expressed in the same order, so no BGR swap is needed.
// Callers own the returned Mat.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), errEmptyImage
	}
	buf := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := 0; x < w; x++ {
			buf = append(buf, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, buf)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to build mat from image: %w", err)
	}
	return mat, nil
}

// threshold returns a binary mask of the pixels inside r. Callers own the mask.
func threshold(src gocv.Mat, r RGBRange) gocv.Mat {
	mask := gocv.NewMat()
	lower := gocv.NewScalar(float64(r.Lower[0]), float64(r.Lower[1]), float64(r.Lower[2]), 0)
	upper := gocv.NewScalar(float64(r.Upper[0]), float64(r.Upper[1]), float64(r.Upper[2]), 0)
	gocv.InRangeWithScalar(src, lower, upper, &mask)
	return mask
}

// ColorCentroid thresholds img against the marker's range and returns the
// centroid of the mask, or NotFound if the mask is empty.
func ColorCentroid(img image.Image, marker ColorMarker) (Position, error) {
	src, err := ImageToMat(img)
	if err != nil {
		if errors.Is(err, errEmptyImage) {
			return NotFound(), nil
		}
		return NotFound(), err
	}
	defer src.Close()
	return colorCentroid(src, marker), nil
}

func colorCentroid(src gocv.Mat, marker ColorMarker) Position {
	mask := threshold(src, marker.Range)
	defer mask.Close()

	if marker.Erosions > 0 || marker.Dilations > 0 {
		kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 2))
		defer kernel.Close()
		for i := 0; i < marker.Erosions; i++ {
			gocv.Erode(mask, &mask, kernel)
		}
		for i := 0; i < marker.Dilations; i++ {
			gocv.Dilate(mask, &mask, kernel)
		}
	}

	m := gocv.Moments(mask, true)
	m00 := m["m00"]
	if m00 == 0 {
		return NotFound()
	}
	return Found(m["m10"]/m00, m["m01"]/m00)
}
