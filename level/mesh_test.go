package level

import (
	"testing"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMesh_OffsetZ(t *testing.T) {
	// deck rises .3mm for every 100mm of Y
	probes := []coord.Point{
		{X: 0, Y: 0, Z: 0},
		{X: 400, Y: 0, Z: 0},
		{X: 0, Y: 300, Z: 0.9},
		{X: 400, Y: 300, Z: 0.9},
	}

	mesh, err := NewMesh(probes)
	require.NoError(t, err)

	ok, z := mesh.OffsetZ(100, 100)
	assert.True(t, ok)
	assert.InDelta(t, 0.3, z, 1e-9)

	ok, z = mesh.OffsetZ(400, 300)
	assert.True(t, ok)
	assert.InDelta(t, 0.9, z, 1e-9)

	ok, _ = mesh.OffsetZ(500, 100)
	assert.False(t, ok)
}

func TestNewMesh_TooFewPoints(t *testing.T) {
	_, err := NewMesh([]coord.Point{{X: 1}, {X: 2}})
	assert.Error(t, err)
}

func TestRelative(t *testing.T) {
	probes := []coord.Point{{X: 1, Z: 3.5}, {X: 2, Z: 2.5}}

	rel := Relative(3, probes)
	assert.Equal(t, []coord.Point{{X: 1, Z: 0.5}, {X: 2, Z: -0.5}}, rel)
	assert.Equal(t, 3.5, probes[0].Z, "input is not modified")
}

func TestFlat(t *testing.T) {
	ok, z := Flat{}.OffsetZ(10, 10)
	assert.False(t, ok)
	assert.Zero(t, z)
}
