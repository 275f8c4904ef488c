package markers

import (
	"errors"
	"fmt"
	"image"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"
)

// CircleParams tunes the Hough gradient circle search. The defaults suit
// small, solid markers of radius up to 18 px.
type CircleParams struct {
	DP        float64 `json:"dp,omitempty" yaml:"dp,omitempty"`
	MinDist   float64 `json:"min_dist,omitempty" yaml:"min_dist,omitempty"`
	Param1    float64 `json:"param1,omitempty" yaml:"param1,omitempty"`
	Param2    float64 `json:"param2,omitempty" yaml:"param2,omitempty"`
	MinRadius int     `json:"min_radius,omitempty" yaml:"min_radius,omitempty"`
	MaxRadius int     `json:"max_radius,omitempty" yaml:"max_radius,omitempty"`

	// MergeDistance collapses candidates closer than this onto the strongest
	// one, so a single disc yields a single candidate.
	MergeDistance float64 `json:"merge_distance,omitempty" yaml:"merge_distance,omitempty"`
}

// DefaultCircleParams returns the tuning used for the black joint markers.
func DefaultCircleParams() CircleParams {
	return CircleParams{
		DP:            1.0,
		MinDist:       0.78,
		Param1:        100,
		Param2:        7,
		MinRadius:     0,
		MaxRadius:     18,
		MergeDistance: 36,
	}
}

// WithDefaults fills unset fields from DefaultCircleParams.
func (p CircleParams) WithDefaults() CircleParams {
	d := DefaultCircleParams()
	if p.DP == 0 {
		p.DP = d.DP
	}
	if p.MinDist == 0 {
		p.MinDist = d.MinDist
	}
	if p.Param1 == 0 {
		p.Param1 = d.Param1
	}
	if p.Param2 == 0 {
		p.Param2 = d.Param2
	}
	if p.MaxRadius == 0 {
		p.MaxRadius = d.MaxRadius
	}
	if p.MergeDistance == 0 {
		p.MergeDistance = 2 * float64(p.MaxRadius)
	}
	return p
}

// CircleCandidates thresholds img against r and returns one centre per
// detected disc, strongest first. An empty mask gives an
// empty slice, not an error.
func CircleCandidates(img image.Image, r RGBRange, params CircleParams) ([]r2.Point, error) {
	src, err := ImageToMat(img)
	if err != nil {
		if errors.Is(err, errEmptyImage) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()
	return circleCandidates(src, r, params), nil
}

func circleCandidates(src gocv.Mat, r RGBRange, params CircleParams) []r2.Point {
	mask := threshold(src, r)
	defer mask.Close()
	if gocv.CountNonZero(mask) == 0 {
		return nil
	}

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(mask, &circles, gocv.HoughGradient,
		params.DP, params.MinDist, params.Param1, params.Param2,
		params.MinRadius, params.MaxRadius)
	if circles.Empty() {
		return nil
	}

	points := make([]r2.Point, 0, circles.Cols())
	for i := 0; i < circles.Cols(); i++ {
		v := circles.GetVecfAt(0, i)
		points = append(points, r2.Point{X: float64(v[0]), Y: float64(v[1])})
	}
	return mergeCandidates(points, params.MergeDistance)
}

// mergeCandidates drops every point closer than dist to an earlier kept point.
// Hough output is ordered by votes, so each disc keeps its strongest centre.
func mergeCandidates(points []r2.Point, dist float64) []r2.Point {
	if dist <= 0 {
		return points
	}
	kept := points[:0:0]
	for _, p := range points {
		duplicate := false
		for _, k := range kept {
			if p.Sub(k).Norm() < dist {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, p)
		}
	}
	return kept
}
