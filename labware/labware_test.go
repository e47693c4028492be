package labware

import (
	"testing"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/COVIDWarriors/CWarriors-Covid19/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeck_Load(t *testing.T) {
	d := NewDeck(nil)

	res, err := d.Load("nest_12_reservoir_15ml", "2", "reagent deepwell plate 1")
	require.NoError(t, err)

	row := res.Row(0)
	require.Len(t, row, 12)
	assert.Equal(t, "A1", row[0].Name)
	assert.Equal(t, "A12", row[11].Name)
	assert.Equal(t, "2:A5", row[4].ID())
	assert.Equal(t, "A1 of reagent deepwell plate 1", row[0].String())

	// slot 2 starts one slot pitch to the right
	assert.InDelta(t, 132.5+14.38, row[0].Center.X, 1e-9)
	assert.InDelta(t, 132.5+14.38+9*4, row[4].Center.X, 1e-9)

	_, err = d.Load("nest_12_reservoir_15ml", "2", "again")
	assert.Error(t, err, "slot taken")

	_, err = d.Load("no_such_labware", "3", "")
	assert.Error(t, err)

	_, err = d.Load("nest_12_reservoir_15ml", "12", "")
	assert.Error(t, err)
}

func TestWell_BottomTop(t *testing.T) {
	w := Well{Name: "A1", Slot: "4", Center: coord.Point{X: 10, Y: 20, Z: 3}, Depth: 38}

	assert.Equal(t, coord.Point{X: 10, Y: 20, Z: 4}, w.Bottom(1).Point)
	assert.Equal(t, coord.Point{X: 10, Y: 20, Z: 36}, w.Top(-5).Point)
	assert.Equal(t, coord.Point{X: 12, Y: 20, Z: 4}, w.Bottom(1).Move(coord.Lateral(2)).Point)
	assert.Equal(t, "4:A1", w.Top(0).Well)
}

func TestLabware_Wells(t *testing.T) {
	d := NewDeck(nil)
	rack, err := d.Load("opentrons_24_aluminumblock_generic_2ml_screwcap", "2", "tubes")
	require.NoError(t, err)

	wells := rack.Wells()
	require.Len(t, wells, 24)
	assert.Equal(t, "A1", wells[0].Name)
	assert.Equal(t, "B1", wells[1].Name)
	assert.Equal(t, "A2", wells[4].Name)
	assert.Equal(t, "B3", wells[9].Name)

	cols := rack.Columns()
	assert.Len(t, cols, 6)
	assert.Equal(t, "D6", cols[5][3].Name)

	w, ok := rack.Well("C4")
	assert.True(t, ok)
	assert.Equal(t, "C4", w.Name)
}

func TestModule_Load(t *testing.T) {
	d := NewDeck(nil)
	mag, err := d.LoadModule(MagneticModule, "4")
	require.NoError(t, err)

	plate, err := mag.Load("nest_96_wellplate_2000ul", "deepwell")
	require.NoError(t, err)
	assert.InDelta(t, 32.0+3.0, plate.Row(0)[0].Center.Z, 1e-9)

	_, err = mag.Load("nest_96_wellplate_2000ul", "second")
	assert.Error(t, err)

	got, ok := d.Slot("4")
	assert.True(t, ok)
	assert.Same(t, plate, got)

	_, err = d.Load("nest_12_reservoir_15ml", "4", "")
	assert.Error(t, err, "module occupies the slot")
}

func TestDeck_Leveling(t *testing.T) {
	mesh, err := level.NewMesh([]coord.Point{
		{X: 0, Y: 0, Z: 0.5},
		{X: 400, Y: 0, Z: 0.5},
		{X: 0, Y: 400, Z: 0.5},
		{X: 400, Y: 400, Z: 0.5},
	})
	require.NoError(t, err)

	d := NewDeck(mesh)
	res, err := d.Load("nest_12_reservoir_15ml", "5", "")
	require.NoError(t, err)
	assert.InDelta(t, 4.55+0.5, res.Row(0)[0].Center.Z, 1e-9)
}
