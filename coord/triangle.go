package coord

import (
	"math"
)

const (
	// Epsilon is the max error when checking containment.
	Epsilon   = 0.001
	epsilonSq = Epsilon * Epsilon
)

// Triangle is one face of a probed deck mesh.
type Triangle struct{ A, B, C Point }

// ContainsXY returns true if the 2D projection of the triangle
// has the point x,y, allowing Epsilon of slack along the edges.
func (t Triangle) ContainsXY(x, y float64) bool {
	if !t.boundsXY(x, y) {
		return false
	}

	d1 := edgeSide(t.A, t.B, x, y)
	d2 := edgeSide(t.B, t.C, x, y)
	d3 := edgeSide(t.C, t.A, x, y)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	if !(hasNeg && hasPos) {
		return true
	}

	// points just outside an edge still count, otherwise
	// wells sitting on a shared edge could fall between faces
	return segmentDistSq(t.A, t.B, x, y) <= epsilonSq ||
		segmentDistSq(t.B, t.C, x, y) <= epsilonSq ||
		segmentDistSq(t.C, t.A, x, y) <= epsilonSq
}

// Z will give the Z-coordinate on the plane defined by the triangle
// where it intersects x,y.
func (t Triangle) Z(x, y float64) float64 {
	n := t.C.Sub(t.A).Cross(t.B.Sub(t.A))
	d := n.Dot(t.C)

	return (d - n.X*x - n.Y*y) / n.Z
}

func (t Triangle) boundsXY(x, y float64) bool {
	minX := math.Min(t.A.X, math.Min(t.B.X, t.C.X)) - Epsilon
	maxX := math.Max(t.A.X, math.Max(t.B.X, t.C.X)) + Epsilon
	minY := math.Min(t.A.Y, math.Min(t.B.Y, t.C.Y)) - Epsilon
	maxY := math.Max(t.A.Y, math.Max(t.B.Y, t.C.Y)) + Epsilon

	return x >= minX && x <= maxX && y >= minY && y <= maxY
}

func edgeSide(a, b Point, x, y float64) float64 {
	return (b.Y-a.Y)*(x-a.X) - (b.X-a.X)*(y-a.Y)
}

func segmentDistSq(a, b Point, x, y float64) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return (x-a.X)*(x-a.X) + (y-a.Y)*(y-a.Y)
	}
	t := ((x-a.X)*dx + (y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	px, py := a.X+t*dx-x, a.Y+t*dy-y
	return px*px + py*py
}
