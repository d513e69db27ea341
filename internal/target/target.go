// Package target picks which detected region to act on.
package target

import "image"

// Largest returns the box with the greatest area. Ties go to the box seen
// first. ok is false when boxes is empty.
func Largest(boxes []image.Rectangle) (best image.Rectangle, ok bool) {
	bestArea := -1
	for _, b := range boxes {
		if a := Area(b); a > bestArea {
			best, bestArea, ok = b, a, true
		}
	}
	return best, ok
}

// Area returns w*h, or 0 for an empty rectangle.
func Area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// Center returns the integer center of r.
func Center(r image.Rectangle) image.Point {
	return image.Point{X: r.Min.X + r.Dx()/2, Y: r.Min.Y + r.Dy()/2}
}
