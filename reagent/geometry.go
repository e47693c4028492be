package reagent

import "math"

// CircleArea returns the area of a circle of the given diameter.
func CircleArea(diameter float64) float64 {
	return math.Pi * diameter * diameter / 4
}

// SphereVolume returns the volume of a sphere of the given radius.
func SphereVolume(radius float64) float64 {
	return 4 * math.Pi * radius * radius * radius / 3
}

// ConeHeight returns the height of a cone holding volume over a base of area.
func ConeHeight(volume, area float64) float64 {
	if area <= 0 {
		return 0
	}
	return 3 * volume / area
}
