package detect

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/sightline/testdata"
)

func TestTemplateDetector_NoTemplate(t *testing.T) {
	d := NewTemplateDetector(0.8)
	defer d.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	_, err := d.Detect(&frame)
	assert.ErrorIs(t, err, ErrNoTemplate)
	assert.False(t, d.Loaded())
}

func TestTemplateDetector_FindsPatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	scene := testdata.Pattern(320, 240, 7)
	defer scene.Close()

	patch := image.Rect(96, 64, 144, 112)
	templ := testdata.Crop(scene, patch)
	defer templ.Close()

	d := NewTemplateDetector(0.9)
	defer d.Close()
	require.NoError(t, d.SetTemplate(templ))

	r, err := d.Detect(&scene)
	require.NoError(t, err)

	assert.True(t, r.Found)
	assert.Greater(t, r.Confidence, 0.99)
	assert.Equal(t, patch, r.Box)
	assert.Equal(t, image.Pt(120, 88), r.Center)
}

func TestTemplateDetector_ThresholdMonotonic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	scene := testdata.Pattern(320, 240, 7)
	defer scene.Close()

	// A patch from a different scene only partially correlates.
	other := testdata.Pattern(320, 240, 99)
	defer other.Close()
	templ := testdata.Crop(other, image.Rect(40, 40, 88, 88))
	defer templ.Close()

	d := NewTemplateDetector(0)
	defer d.Close()
	require.NoError(t, d.SetTemplate(templ))

	thresholds := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	found := make([]bool, len(thresholds))
	for i, th := range thresholds {
		d.SetThreshold(th)
		r, err := d.Detect(&scene)
		require.NoError(t, err)
		found[i] = r.Found
	}

	for i := 1; i < len(found); i++ {
		if found[i] {
			assert.True(t, found[i-1], "found at %.1f but not at %.1f", thresholds[i], thresholds[i-1])
		}
	}
	assert.True(t, found[0], "threshold 0 accepts the best match")
}

// twoInstanceScene pastes a 32x32 template into a black frame at two spots.
func twoInstanceScene() (scene, templ gocv.Mat, spots []image.Point) {
	source := testdata.Pattern(64, 64, 3)
	defer source.Close()
	templ = testdata.Crop(source, image.Rect(8, 8, 40, 40))

	scene = testdata.Black(320, 240)
	spots = []image.Point{{20, 30}, {200, 150}}
	for _, p := range spots {
		roi := scene.Region(image.Rectangle{Min: p, Max: p.Add(image.Pt(32, 32))})
		templ.CopyTo(&roi)
		roi.Close()
	}
	return scene, templ, spots
}

func TestTemplateDetector_DetectAll(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	scene, templ, spots := twoInstanceScene()
	defer scene.Close()
	defer templ.Close()

	d := NewTemplateDetector(0.99)
	defer d.Close()
	require.NoError(t, d.SetTemplate(templ))

	results, err := d.DetectAll(&scene)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(results), 2)

	var mins []image.Point
	for _, r := range results {
		assert.True(t, r.Found)
		mins = append(mins, r.Box.Min)
	}
	for _, p := range spots {
		assert.Contains(t, mins, p)
	}
}

func TestTemplateDetector_LoadCached(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	scene := testdata.Pattern(64, 64, 5)
	defer scene.Close()

	path := filepath.Join(t.TempDir(), "target.png")
	require.True(t, gocv.IMWrite(path, scene))

	d := NewTemplateDetector(0.8)
	defer d.Close()

	require.NoError(t, d.Load(path))
	assert.True(t, d.Loaded())
	assert.Equal(t, path, d.Path())

	// Loading the same path again does not touch the file.
	require.NoError(t, d.Load(path))

	assert.Error(t, d.Load(filepath.Join(t.TempDir(), "missing.png")))
	assert.Equal(t, path, d.Path(), "failed load keeps the previous template")
}

func TestTemplateDetector_FrameSmallerThanTemplate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	templ := testdata.Pattern(64, 64, 1)
	defer templ.Close()
	frame := testdata.Black(32, 32)
	defer frame.Close()

	d := NewTemplateDetector(0.8)
	defer d.Close()
	require.NoError(t, d.SetTemplate(templ))

	_, err := d.Detect(&frame)
	assert.Error(t, err)
}
