package markers

import (
	"image"
	"sync"

	"github.com/golang/geo/r2"
	"go.viam.com/rdk/logging"
)

// References are the fixed pixel positions of the base and shoulder markers,
// which share their colour with the tracked pair.
type References struct {
	Base     r2.Point
	Shoulder r2.Point
}

// DefaultReferences are the base and shoulder pixels of the simulated cameras.
var DefaultReferences = References{
	Base:     r2.Point{X: 398, Y: 535},
	Shoulder: r2.Point{X: 398, Y: 470},
}

// DisambiguationParams bound the exclusion zone relaxation.
type DisambiguationParams struct {
	// InitialMinDistance is the starting exclusion radius around both references.
	InitialMinDistance float64 `json:"initial_min_distance,omitempty" yaml:"initial_min_distance,omitempty"`
	// Step is how much the radius shrinks per retry.
	Step float64 `json:"step,omitempty" yaml:"step,omitempty"`
	// Floor is the smallest radius tried.
	Floor float64 `json:"floor,omitempty" yaml:"floor,omitempty"`
	// MinSeparation is how far apart two candidates must be to count as distinct markers.
	MinSeparation float64 `json:"min_separation,omitempty" yaml:"min_separation,omitempty"`
}

// DefaultDisambiguationParams starts at 50 px and relaxes by 5 px down to 0.
func DefaultDisambiguationParams() DisambiguationParams {
	return DisambiguationParams{
		InitialMinDistance: 50,
		Step:               5,
		Floor:              0,
		MinSeparation:      10,
	}
}

// Disambiguate picks the first two distinct candidates outside the exclusion
// zone around both references, shrinking the zone until a pair is found or the
// floor is passed. The candidate nearer the shoulder reference is returned as
// near. The number of passes is bounded by the params.
func Disambiguate(candidates []r2.Point, refs References, p DisambiguationParams) (near, far r2.Point, ok bool) {
	if len(candidates) < 2 {
		return r2.Point{}, r2.Point{}, false
	}
	for minDist := p.InitialMinDistance; minDist >= p.Floor; minDist -= p.Step {
		if pair, found := pickPair(candidates, refs, minDist, p.MinSeparation); found {
			if pair[0].Sub(refs.Shoulder).Norm() <= pair[1].Sub(refs.Shoulder).Norm() {
				return pair[0], pair[1], true
			}
			return pair[1], pair[0], true
		}
		if p.Step <= 0 {
			break
		}
	}
	return r2.Point{}, r2.Point{}, false
}

func pickPair(candidates []r2.Point, refs References, minDist, minSeparation float64) ([2]r2.Point, bool) {
	var pair [2]r2.Point
	n := 0
	for _, c := range candidates {
		if c.Sub(refs.Base).Norm() < minDist || c.Sub(refs.Shoulder).Norm() < minDist {
			continue
		}
		if n == 1 && c.Sub(pair[0]).Norm() < minSeparation {
			continue
		}
		pair[n] = c
		n++
		if n == 2 {
			return pair, true
		}
	}
	return pair, false
}

// PairDetector finds the two same-coloured circular markers after the
// shoulder and tells them apart by distance from the shoulder.
type PairDetector struct {
	logger logging.Logger

	colorRange RGBRange
	circles    CircleParams
	refs       References
	params     DisambiguationParams

	mu       sync.Mutex
	lastGood *[2]r2.Point
}

// NewPairDetector returns a detector for markers inside colorRange.
func NewPairDetector(colorRange RGBRange, circles CircleParams, refs References, params DisambiguationParams, logger logging.Logger) *PairDetector {
	return &PairDetector{
		logger:     logger,
		colorRange: colorRange,
		circles:    circles.WithDefaults(),
		refs:       refs,
		params:     params,
	}
}

// Detect returns the near (elbow) and far (wrist) marker positions. It always
// returns positions; misses fall back as described on Resolve.
func (d *PairDetector) Detect(img image.Image) (near, far Position, err error) {
	candidates, err := CircleCandidates(img, d.colorRange, d.circles)
	if err != nil {
		return NotFound(), NotFound(), err
	}
	near, far = d.Resolve(candidates)
	return near, far, nil
}

// Resolve turns Hough candidates into the near/far pair.
//   - no candidates: both fall back to the shoulder reference
//   - one candidate: the markers overlap in this view, both take it, unless it
//     sits on a reference marker
//   - a distinct pair: disambiguated by distance to the shoulder
//   - no distinct pair after full relaxation: the last good pair, else the
//     single candidate rule
func (d *PairDetector) Resolve(candidates []r2.Point) (near, far Position) {
	switch len(candidates) {
	case 0:
		d.logger.Debugf("no circle candidates, using shoulder reference %v", d.refs.Shoulder)
		return FoundAt(d.refs.Shoulder), FoundAt(d.refs.Shoulder)
	case 1:
		return d.single(candidates[0])
	}

	n, f, ok := Disambiguate(candidates, d.refs, d.params)
	if ok {
		d.mu.Lock()
		d.lastGood = &[2]r2.Point{n, f}
		d.mu.Unlock()
		return FoundAt(n), FoundAt(f)
	}

	d.mu.Lock()
	last := d.lastGood
	d.mu.Unlock()
	if last != nil {
		d.logger.Warnf("could not separate %d circle candidates, reusing last good pair %v, %v", len(candidates), last[0], last[1])
		return FoundAt(last[0]), FoundAt(last[1])
	}
	d.logger.Warnf("could not separate %d circle candidates and no previous pair, using first candidate", len(candidates))
	return d.single(candidates[0])
}

func (d *PairDetector) single(c r2.Point) (near, far Position) {
	if c.Sub(d.refs.Base).Norm() < d.params.MinSeparation || c.Sub(d.refs.Shoulder).Norm() < d.params.MinSeparation {
		d.logger.Debugf("only circle candidate %v is a reference marker, using shoulder reference", c)
		return FoundAt(d.refs.Shoulder), FoundAt(d.refs.Shoulder)
	}
	return FoundAt(c), FoundAt(c)
}
