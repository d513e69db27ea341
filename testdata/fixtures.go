// Package testdata builds synthetic BGR frames for tests.
package testdata

import (
	"image"

	"gocv.io/x/gocv"
)

// Blank returns a w×h BGR frame filled with one color.
func Blank(w, h int, b, g, r float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), h, w, gocv.MatTypeCV8UC3)
}

// Black returns a w×h black BGR frame.
func Black(w, h int) gocv.Mat {
	return Blank(w, h, 0, 0, 0)
}

// FillRect paints rect on mat with a solid BGR color.
func FillRect(mat *gocv.Mat, rect image.Rectangle, b, g, r float64) {
	rect = rect.Intersect(image.Rect(0, 0, mat.Cols(), mat.Rows()))
	if rect.Empty() {
		return
	}
	roi := mat.Region(rect)
	defer roi.Close()
	roi.SetTo(gocv.NewScalar(b, g, r, 0))
}

// Pattern returns a w×h frame of pseudo-random 8×8 gray blocks. The same seed
// always yields the same frame, and the blocks give template matching enough
// texture to find a unique peak.
func Pattern(w, h int, seed uint32) gocv.Mat {
	mat := Black(w, h)
	state := seed | 1
	for y := 0; y < h; y += 8 {
		for x := 0; x < w; x += 8 {
			state = state*1664525 + 1013904223
			v := float64(state >> 24)
			FillRect(&mat, image.Rect(x, y, x+8, y+8), v, v, v)
		}
	}
	return mat
}

// Crop returns an owned copy of rect from mat.
func Crop(mat gocv.Mat, rect image.Rectangle) gocv.Mat {
	roi := mat.Region(rect)
	defer roi.Close()
	return roi.Clone()
}

// Sequence returns n frames of a white square moving right by step pixels
// per frame over a black background.
func Sequence(w, h, n, size, step int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		f := Black(w, h)
		x := 10 + i*step
		FillRect(&f, image.Rect(x, h/2-size/2, x+size, h/2+size/2), 255, 255, 255)
		frames = append(frames, &f)
	}
	return frames
}

// CloseAll releases every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
