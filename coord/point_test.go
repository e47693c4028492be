package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoint_Add(t *testing.T) {
	a := Point{X: 1, Y: 2, Z: 3}
	b := Point{X: 4, Y: 5, Z: 6}

	assert.Equal(t, Point{X: 5, Y: 7, Z: 9}, a.Add(b))
	assert.Equal(t, Point{X: -3, Y: -3, Z: -3}, a.Sub(b))
}

func TestPoint_Lateral(t *testing.T) {
	well := Point{X: 14, Y: 42.75, Z: 1}

	assert.Equal(t, Point{X: 16.5, Y: 42.75, Z: 1}, well.Add(Lateral(2.5)))
	assert.Equal(t, Point{X: 14, Y: 42.75, Z: 6}, well.Add(Lift(5)))
	assert.True(t, well.WithZ(9).Equal(Point{X: 14, Y: 42.75, Z: 9}))
}

func TestPoint_Cross(t *testing.T) {
	x := Point{X: 1}
	y := Point{Y: 1}

	assert.Equal(t, Point{Z: 1}, x.Cross(y))
	assert.Equal(t, 0.0, x.Dot(y))
}
