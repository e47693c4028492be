// Package level compensates for a deck that is not perfectly flat.
//
// A handful of well bottoms are probed once per deck calibration; the
// probed heights are triangulated and every other well bottom is shifted
// by the height of the mesh under its center.
package level

import (
	"errors"
	"math"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/fogleman/delaunay"
)

// ZOffsetter reports how far the deck surface at x,y sits from nominal.
type ZOffsetter interface {
	OffsetZ(x, y float64) (bool, float64)
}

// Flat is a ZOffsetter for a calibrated-flat deck.
type Flat struct{}

func (Flat) OffsetZ(x, y float64) (bool, float64) { return false, 0 }

type Mesh struct {
	minX, minY, maxX, maxY float64
	triangles              []coord.Triangle
	points                 []coord.Point
}

var _ ZOffsetter = &Mesh{}

// NewMesh triangulates probed points. Each point's Z is the measured
// offset from nominal at that X,Y.
func NewMesh(points []coord.Point) (*Mesh, error) {
	if len(points) < 3 {
		return nil, errors.New("need at least 3 points to create a mesh")
	}

	points2d := make([]delaunay.Point, len(points))
	byXY := make(map[delaunay.Point]coord.Point, len(points))

	mesh := &Mesh{
		minX:   points[0].X,
		minY:   points[0].Y,
		maxX:   points[0].X,
		maxY:   points[0].Y,
		points: append([]coord.Point(nil), points...),
	}
	for i, p := range points {
		mesh.minX = math.Min(mesh.minX, p.X)
		mesh.minY = math.Min(mesh.minY, p.Y)
		mesh.maxX = math.Max(mesh.maxX, p.X)
		mesh.maxY = math.Max(mesh.maxY, p.Y)

		d := delaunay.Point{X: p.X, Y: p.Y}
		byXY[d] = p
		points2d[i] = d
	}
	mesh.minX -= coord.Epsilon
	mesh.minY -= coord.Epsilon
	mesh.maxX += coord.Epsilon
	mesh.maxY += coord.Epsilon

	tri, err := delaunay.Triangulate(points2d)
	if err != nil {
		return nil, err
	}

	mesh.triangles = make([]coord.Triangle, 0, len(tri.Triangles)/3)
	for i := 0; i+2 < len(tri.Triangles); i += 3 {
		mesh.triangles = append(mesh.triangles, coord.Triangle{
			A: byXY[tri.Points[tri.Triangles[i]]],
			B: byXY[tri.Points[tri.Triangles[i+1]]],
			C: byXY[tri.Points[tri.Triangles[i+2]]],
		})
	}
	if len(mesh.triangles) == 0 {
		return nil, errors.New("probe points are collinear")
	}

	return mesh, nil
}

// Points returns the probed points the mesh was built from.
func (m *Mesh) Points() []coord.Point { return m.points }

// OffsetZ returns the mesh height at x,y. Outside the probed area
// no offset is reported.
func (m Mesh) OffsetZ(x, y float64) (bool, float64) {
	if x < m.minX || m.maxX < x || y < m.minY || m.maxY < y {
		return false, 0
	}
	for _, t := range m.triangles {
		if !t.ContainsXY(x, y) {
			continue
		}
		return true, t.Z(x, y)
	}

	return false, 0
}

// Relative rebases probe heights against a reference height, usually
// the nominal well bottom of the labware that was probed.
func Relative(z float64, points []coord.Point) []coord.Point {
	p := make([]coord.Point, len(points))
	copy(p, points)

	for i := range p {
		p[i].Z -= z
	}
	return p
}
