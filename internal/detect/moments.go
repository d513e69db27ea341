package detect

import (
	"image"
	"math"
)

// moments holds the spatial moments of a closed polygon.
type moments struct {
	m00, m10, m01 float64
}

// polygonMoments computes the area and first moments of the polygon traced
// by pts using Green's theorem. This matches the contour moments OpenCV
// reports for a point-vector input.
func polygonMoments(pts []image.Point) moments {
	var m moments
	n := len(pts)
	if n < 3 {
		return m
	}

	for i := 0; i < n; i++ {
		p := pts[i]
		q := pts[(i+1)%n]
		xi, yi := float64(p.X), float64(p.Y)
		xj, yj := float64(q.X), float64(q.Y)

		cross := xi*yj - xj*yi
		m.m00 += cross
		m.m10 += cross * (xi + xj)
		m.m01 += cross * (yi + yj)
	}

	m.m00 /= 2
	m.m10 /= 6
	m.m01 /= 6

	// Orientation of the trace decides the sign.
	if m.m00 < 0 {
		m.m00, m.m10, m.m01 = -m.m00, -m.m10, -m.m01
	}
	return m
}

// area returns the absolute polygon area.
func (m moments) area() float64 {
	return math.Abs(m.m00)
}

// centroid returns the center of mass. ok is false for a degenerate polygon.
func (m moments) centroid() (image.Point, bool) {
	if m.m00 == 0 {
		return image.Point{}, false
	}
	return image.Point{
		X: int(m.m10 / m.m00),
		Y: int(m.m01 / m.m00),
	}, true
}
