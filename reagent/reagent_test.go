package reagent

import (
	"errors"
	"math"
	"testing"

	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wells(n int) []labware.Well {
	w := make([]labware.Well, n)
	for i := range w {
		w[i] = labware.Well{Name: string(rune('A'+i)) + "1", Slot: "2"}
	}
	return w
}

func TestNewReagent(t *testing.T) {
	_, err := NewReagent(Config{Name: "Lysis", NumWells: 0, ReservoirVolume: 100}, nil)
	assert.Error(t, err)

	_, err = NewReagent(Config{Name: "Lysis", NumWells: 1}, nil)
	assert.Error(t, err)

	_, err = NewReagent(Config{NumWells: 1, ReservoirVolume: 100}, nil)
	assert.Error(t, err)

	_, err = NewReagent(Config{Name: "Lysis", NumWells: 4, ReservoirVolume: 100}, wells(2))
	assert.Error(t, err)

	_, err = NewReagent(Config{Name: "Lysis", NumWells: 1, ReservoirVolume: 100, DisposalVolume: -1}, nil)
	assert.Error(t, err)

	r, err := NewReagent(Config{Name: "Lysis", NumWells: 4, ReservoirVolume: 40000}, wells(4))
	require.NoError(t, err)
	assert.Equal(t, 10000.0, r.Remaining())
	assert.Equal(t, 0, r.Well())
	assert.Equal(t, "A1", r.Source().Name)
	assert.Len(t, r.Sources(), 4)
}

func TestReagent_Height(t *testing.T) {
	r, err := NewReagent(Config{Name: "Beads", NumWells: 1, ReservoirVolume: 2915, ConeVolume: 0}, wells(1))
	require.NoError(t, err)

	p, err := r.Height(568, 1094.4, HeightOptions{Min: 5, Floor: 1})
	require.NoError(t, err)
	assert.False(t, p.Rollover)
	assert.Equal(t, 0, p.Well)
	assert.InDelta(t, 1820.6, r.Remaining(), 1e-9)
	assert.InDelta(t, 1, p.Height, 1e-9, "3.2mm is below the 5mm minimum")
}

func TestReagent_HeightFormula(t *testing.T) {
	r, err := NewReagent(Config{Name: "SPR", NumWells: 1, ReservoirVolume: 12000, ConeVolume: 500}, nil)
	require.NoError(t, err)

	p, err := r.Height(100, 1500, HeightOptions{Min: 5, Floor: 1})
	require.NoError(t, err)
	assert.InDelta(t, (12000.0-1500-500)/100, p.Height, 1e-9)
}

func TestReagent_HeightFloor(t *testing.T) {
	opts := []HeightOptions{{Min: 5, Floor: 1}, {Min: 0.5, Floor: 0.5}, {}}
	for _, opt := range opts {
		r, err := NewReagent(Config{Name: "Water", NumWells: 1, ReservoirVolume: 1000, ConeVolume: 200}, nil)
		require.NoError(t, err)
		want := opt
		if want == (HeightOptions{}) {
			want = DefaultHeight
		}
		for i := 0; i < 10; i++ {
			p, err := r.Height(50, 90, opt)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, p.Height, want.Floor)
			if want.Floor >= want.Min {
				assert.GreaterOrEqual(t, p.Height, want.Min)
			}
		}
	}
}

func TestReagent_Rollover(t *testing.T) {
	r, err := NewReagent(Config{Name: "Lysis", NumWells: 2, ReservoirVolume: 2000}, wells(2))
	require.NoError(t, err)

	_, err = r.Height(100, 700, HeightOptions{})
	require.NoError(t, err)
	assert.Equal(t, 300.0, r.Remaining())

	p, err := r.Height(100, 400, HeightOptions{})
	require.NoError(t, err)
	assert.True(t, p.Rollover)
	assert.Equal(t, 1, p.Well)
	assert.Equal(t, 1, r.Well())
	assert.Equal(t, 600.0, r.Remaining())
	assert.Equal(t, []float64{300}, r.Unused())
	assert.Equal(t, "B1", r.Source().Name)

	_, err = r.Height(100, 700, HeightOptions{})
	assert.True(t, errors.Is(err, ErrReservoirExhausted))
	var ee *ExhaustedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "Lysis", ee.Reagent)

	assert.Equal(t, 1, r.Well(), "state unchanged after exhaustion")
	assert.Equal(t, 600.0, r.Remaining())
	assert.Equal(t, []float64{300}, r.Unused())
}

func TestReagent_DrawLargerThanWell(t *testing.T) {
	r, err := NewReagent(Config{Name: "SPR", NumWells: 2, ReservoirVolume: 308}, wells(2))
	require.NoError(t, err)

	_, err = r.Height(10, 165, HeightOptions{})
	var ee *ExhaustedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 165.0, ee.Requested)
	assert.Equal(t, 154.0, ee.Remaining)

	assert.Equal(t, 0, r.Well())
	assert.Equal(t, 154.0, r.Remaining())
	assert.Empty(t, r.Unused())
}

func TestReagent_InvalidGeometry(t *testing.T) {
	r, err := NewReagent(Config{Name: "VHB", NumWells: 1, ReservoirVolume: 1000}, nil)
	require.NoError(t, err)

	_, err = r.Height(0, 10, HeightOptions{})
	assert.True(t, errors.Is(err, ErrInvalidGeometry))
	_, err = r.Height(10, -1, HeightOptions{})
	assert.True(t, errors.Is(err, ErrInvalidGeometry))
	assert.Equal(t, 1000.0, r.Remaining())
}

func TestReagent_SetRemaining(t *testing.T) {
	r, err := NewReagent(Config{Name: "Elution", NumWells: 1, ReservoirVolume: 50}, nil)
	require.NoError(t, err)

	r.SetRemaining(20)
	assert.Equal(t, 20.0, r.Remaining())
	r.SetRemaining(500)
	assert.Equal(t, 50.0, r.Remaining())
}

func TestGeometry(t *testing.T) {
	assert.InDelta(t, math.Pi*8.25*8.25/4, CircleArea(8.25), 1e-9)
	assert.InDelta(t, 4*math.Pi/3, SphereVolume(1), 1e-9)
	assert.InDelta(t, 3.0, ConeHeight(50, 50), 1e-9)
	assert.Equal(t, 0.0, ConeHeight(50, 0))
}
