package labware

import (
	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
)

// Well is one addressable position of a piece of labware.
type Well struct {
	Name    string
	Slot    string
	Labware string

	// Center is the center of the well bottom in deck coordinates.
	Center coord.Point
	Depth  float64
	Volume float64
}

// ID identifies the well uniquely on a deck.
func (w Well) ID() string { return w.Slot + ":" + w.Name }

func (w Well) String() string { return w.Name + " of " + w.Labware }

// Bottom returns a location z millimeters above the well bottom.
func (w Well) Bottom(z float64) Location {
	return Location{Well: w.ID(), Point: w.Center.Add(coord.Lift(z))}
}

// Top returns a location z millimeters from the well rim. Negative
// values are inside the well.
func (w Well) Top(z float64) Location {
	return Location{Well: w.ID(), Point: w.Center.Add(coord.Lift(w.Depth + z))}
}

// Location is a point the pipette can be sent to, tagged with the
// well it belongs to.
type Location struct {
	Well  string
	Point coord.Point
}

// Move returns the location shifted by p.
func (l Location) Move(p coord.Point) Location {
	l.Point = l.Point.Add(p)
	return l
}
