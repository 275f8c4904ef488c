package markers

import (
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func whiteImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func drawDisc(img *image.NRGBA, cx, cy, r int, c color.NRGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= r*r {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

var (
	red    = color.NRGBA{R: 255, A: 255}
	green  = color.NRGBA{G: 255, A: 255}
	blue   = color.NRGBA{B: 255, A: 255}
	yellow = color.NRGBA{R: 255, G: 255, A: 255}
	black  = color.NRGBA{A: 255}
)

func TestPositionZeroValueIsNotFound(t *testing.T) {
	var p Position
	assert.False(t, p.IsFound())
	assert.Equal(t, NotFound(), p)
	assert.Nil(t, p.ToMap())
	assert.Equal(t, "not-found", p.String())

	pt, ok := Found(3, 4).Point()
	assert.True(t, ok)
	assert.Equal(t, r2.Point{X: 3, Y: 4}, pt)
}

func TestRGBRange(t *testing.T) {
	assert.NoError(t, Red.Validate())
	assert.Error(t, RGBRange{Lower: [3]uint8{10, 0, 0}, Upper: [3]uint8{5, 0, 0}}.Validate())
	assert.True(t, Red.Contains(255, 0, 0))
	assert.True(t, Red.Contains(100, 40, 40))
	assert.False(t, Red.Contains(255, 255, 255))
	assert.False(t, Yellow.Contains(255, 255, 255))
}

func TestColorCentroidFindsDisc(t *testing.T) {
	img := whiteImage(120, 100)
	drawDisc(img, 30, 40, 6, red)
	drawDisc(img, 90, 70, 6, green)

	p, err := ColorCentroid(img, ColorMarker{Name: "red", Range: Red})
	require.NoError(t, err)
	pt, ok := p.Point()
	require.True(t, ok)
	assert.InDelta(t, 30, pt.X, 0.5)
	assert.InDelta(t, 40, pt.Y, 0.5)

	p, err = ColorCentroid(img, ColorMarker{Name: "green", Range: Green, Erosions: 1, Dilations: 1})
	require.NoError(t, err)
	pt, ok = p.Point()
	require.True(t, ok)
	assert.InDelta(t, 90, pt.X, 1.5)
	assert.InDelta(t, 70, pt.Y, 1.5)
}

func TestColorCentroidEmptyMaskIsNotFound(t *testing.T) {
	img := whiteImage(64, 64)
	p, err := ColorCentroid(img, ColorMarker{Name: "blue", Range: Blue})
	require.NoError(t, err)
	assert.False(t, p.IsFound())

	// a mask emptied by erosion is also a miss, never (0, 0)
	img.SetNRGBA(10, 10, blue)
	p, err = ColorCentroid(img, ColorMarker{Name: "blue", Range: Blue, Erosions: 2})
	require.NoError(t, err)
	assert.False(t, p.IsFound())
}

func TestColorCentroidEmptyImage(t *testing.T) {
	p, err := ColorCentroid(image.NewNRGBA(image.Rect(0, 0, 0, 0)), ColorMarker{Range: Red})
	require.NoError(t, err)
	assert.False(t, p.IsFound())
}

func TestCircleCandidates(t *testing.T) {
	img := whiteImage(200, 200)
	candidates, err := CircleCandidates(img, Black, DefaultCircleParams())
	require.NoError(t, err)
	assert.Empty(t, candidates)

	drawDisc(img, 60, 80, 10, black)
	candidates, err = CircleCandidates(img, Black, DefaultCircleParams())
	require.NoError(t, err)
	require.Len(t, candidates, 1, "one disc gives one candidate")
	assert.Less(t, candidates[0].Sub(r2.Point{X: 60, Y: 80}).Norm(), 3.0)

	drawDisc(img, 140, 80, 10, black)
	candidates, err = CircleCandidates(img, Black, DefaultCircleParams())
	require.NoError(t, err)
	require.Len(t, candidates, 2)
}

func TestMergeCandidatesKeepsStrongestPerDisc(t *testing.T) {
	points := []r2.Point{
		{X: 100, Y: 100},
		{X: 112, Y: 100}, // same disc, weaker
		{X: 200, Y: 100},
		{X: 95, Y: 120}, // same disc, weaker
		{X: 200, Y: 130},
	}
	merged := mergeCandidates(points, 36)
	assert.Equal(t, []r2.Point{{X: 100, Y: 100}, {X: 200, Y: 100}}, merged)

	assert.Equal(t, points, mergeCandidates(points, 0))
	assert.Empty(t, mergeCandidates(nil, 36))
}

func TestCircleParamsWithDefaults(t *testing.T) {
	p := CircleParams{Param2: 12}.WithDefaults()
	assert.Equal(t, 12.0, p.Param2)
	assert.Equal(t, 18, p.MaxRadius)
	assert.Equal(t, 100.0, p.Param1)
	assert.Equal(t, 36.0, p.MergeDistance)

	p = CircleParams{MaxRadius: 10}.WithDefaults()
	assert.Equal(t, 20.0, p.MergeDistance)
}

func TestDisambiguateNearFar(t *testing.T) {
	refs := DefaultReferences
	elbow := r2.Point{X: 398, Y: 380}
	wrist := r2.Point{X: 470, Y: 320}

	near, far, ok := Disambiguate([]r2.Point{wrist, elbow}, refs, DefaultDisambiguationParams())
	require.True(t, ok)
	assert.Equal(t, elbow, near)
	assert.Equal(t, wrist, far)
}

func TestDisambiguateSkipsReferences(t *testing.T) {
	refs := DefaultReferences
	elbow := r2.Point{X: 398, Y: 380}
	wrist := r2.Point{X: 470, Y: 320}

	candidates := []r2.Point{refs.Base, refs.Shoulder, wrist, elbow}
	near, far, ok := Disambiguate(candidates, refs, DefaultDisambiguationParams())
	require.True(t, ok)
	assert.Equal(t, elbow, near)
	assert.Equal(t, wrist, far)
}

func TestDisambiguateRelaxesExclusion(t *testing.T) {
	refs := DefaultReferences
	// both inside the initial 50 px exclusion around the shoulder
	a := r2.Point{X: refs.Shoulder.X + 40, Y: refs.Shoulder.Y}
	b := r2.Point{X: refs.Shoulder.X - 45, Y: refs.Shoulder.Y}

	near, far, ok := Disambiguate([]r2.Point{b, a}, refs, DefaultDisambiguationParams())
	require.True(t, ok)
	assert.Equal(t, a, near)
	assert.Equal(t, b, far)
}

func TestDisambiguateNeverConverges(t *testing.T) {
	refs := DefaultReferences
	dupes := []r2.Point{{X: 450, Y: 400}, {X: 452, Y: 401}, {X: 449, Y: 399}}

	_, _, ok := Disambiguate(dupes, refs, DefaultDisambiguationParams())
	assert.False(t, ok)

	_, _, ok = Disambiguate(dupes[:1], refs, DefaultDisambiguationParams())
	assert.False(t, ok)

	// a zero step still terminates
	p := DefaultDisambiguationParams()
	p.Step = 0
	_, _, ok = Disambiguate(dupes, refs, p)
	assert.False(t, ok)
}

func newTestPairDetector(t *testing.T) *PairDetector {
	return NewPairDetector(Black, DefaultCircleParams(), DefaultReferences, DefaultDisambiguationParams(), logging.NewTestLogger(t))
}

func TestPairDetectorFallbacks(t *testing.T) {
	d := newTestPairDetector(t)
	shoulder := FoundAt(DefaultReferences.Shoulder)

	t.Run("no candidates", func(t *testing.T) {
		near, far := d.Resolve(nil)
		assert.Equal(t, shoulder, near)
		assert.Equal(t, shoulder, far)
	})

	t.Run("single candidate overlapping markers", func(t *testing.T) {
		c := r2.Point{X: 420, Y: 360}
		near, far := d.Resolve([]r2.Point{c})
		assert.Equal(t, FoundAt(c), near)
		assert.Equal(t, FoundAt(c), far)
	})

	t.Run("single candidate on a reference", func(t *testing.T) {
		near, far := d.Resolve([]r2.Point{DefaultReferences.Base})
		assert.Equal(t, shoulder, near)
		assert.Equal(t, shoulder, far)
	})

	t.Run("no pair and no history", func(t *testing.T) {
		c := r2.Point{X: 450, Y: 400}
		near, far := d.Resolve([]r2.Point{c, {X: 451, Y: 400}})
		assert.Equal(t, FoundAt(c), near)
		assert.Equal(t, FoundAt(c), far)
	})
}

func TestPairDetectorReusesLastGoodPair(t *testing.T) {
	d := newTestPairDetector(t)
	elbow := r2.Point{X: 398, Y: 380}
	wrist := r2.Point{X: 470, Y: 320}

	near, far := d.Resolve([]r2.Point{elbow, wrist})
	require.Equal(t, FoundAt(elbow), near)
	require.Equal(t, FoundAt(wrist), far)

	near, far = d.Resolve([]r2.Point{{X: 450, Y: 400}, {X: 451, Y: 400}})
	assert.Equal(t, FoundAt(elbow), near)
	assert.Equal(t, FoundAt(wrist), far)
}

func TestViewDetectorColorMode(t *testing.T) {
	d, err := NewViewDetector(DefaultViewConfig(), logging.NewTestLogger(t))
	require.NoError(t, err)

	img := whiteImage(800, 800)
	drawDisc(img, 398, 535, 10, yellow)
	drawDisc(img, 398, 470, 10, blue)
	drawDisc(img, 450, 400, 10, green)

	got, err := d.Detect(img)
	require.NoError(t, err)

	want := []r2.Point{{X: 398, Y: 535}, {X: 398, Y: 470}, {X: 450, Y: 400}}
	for i, w := range want {
		pt, ok := got[i].Point()
		require.True(t, ok, "joint %d", i)
		assert.InDelta(t, w.X, pt.X, 0.5)
		assert.InDelta(t, w.Y, pt.Y, 0.5)
	}
	assert.False(t, got[3].IsFound())
}

func TestViewDetectorBlackCirclesReferences(t *testing.T) {
	cfg := DefaultViewConfig()
	cfg.Mode = ModeBlackCircles
	d, err := NewViewDetector(cfg, logging.NewTestLogger(t))
	require.NoError(t, err)

	got, err := d.Detect(whiteImage(800, 800))
	require.NoError(t, err)
	assert.Equal(t, FoundAt(DefaultReferences.Base), got[0])
	for i := 1; i < 4; i++ {
		assert.Equal(t, FoundAt(DefaultReferences.Shoulder), got[i])
	}
}

func TestNewViewDetectorRejectsBadConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)

	cfg := DefaultViewConfig()
	cfg.Mode = "sonar"
	_, err := NewViewDetector(cfg, logger)
	assert.ErrorContains(t, err, "unknown marker mode")

	cfg = DefaultViewConfig()
	cfg.Colors.Elbow.Range = RGBRange{Lower: [3]uint8{200, 0, 0}, Upper: [3]uint8{100, 0, 0}}
	_, err = NewViewDetector(cfg, logger)
	assert.ErrorContains(t, err, "green")
}
