package coord

// Point is a deck position in millimeters.
//
// X runs left to right across the deck, Y front to back and Z up from the
// deck surface.
type Point struct{ X, Y, Z float64 }

// Lateral returns a Point that only moves along X.
//
// Transfers use it to shift the tip sideways inside a well.
func Lateral(x float64) Point { return Point{X: x} }

// Lift returns a Point that only moves along Z.
func Lift(z float64) Point { return Point{Z: z} }

func (p Point) Equal(b Point) bool {
	return p.X == b.X && p.Y == b.Y && p.Z == b.Z
}
func (p Point) Cross(op Point) Point {
	return Point{
		p.Y*op.Z - p.Z*op.Y,
		p.Z*op.X - p.X*op.Z,
		p.X*op.Y - p.Y*op.X,
	}
}
func (p Point) Dot(op Point) float64 {
	return p.X*op.X + p.Y*op.Y + p.Z*op.Z
}

// Add will add the target values to p.
func (p Point) Add(target Point) Point {
	p.X += target.X
	p.Y += target.Y
	p.Z += target.Z
	return p
}

// Sub will subtract the target values from p.
func (p Point) Sub(target Point) Point {
	p.X -= target.X
	p.Y -= target.Y
	p.Z -= target.Z
	return p
}

// WithZ returns p with its height replaced.
func (p Point) WithZ(z float64) Point {
	p.Z = z
	return p
}
