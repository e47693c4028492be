package stationc

import (
	"context"
	"testing"

	"github.com/COVIDWarriors/CWarriors-Covid19/command"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"github.com/COVIDWarriors/CWarriors-Covid19/reagent"
	"github.com/COVIDWarriors/CWarriors-Covid19/sim"
	"github.com/COVIDWarriors/CWarriors-Covid19/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, cfg Config) (*Station, *machine.Machine, *sim.Simulator) {
	t.Helper()
	s := sim.New(nil)
	m := machine.NewMachine(s, nil)
	st, err := Build(m, cfg)
	require.NoError(t, err)
	return st, m, s
}

func run(t *testing.T, st *Station) []protocol.Result {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Prepare(ctx))
	seq, err := protocol.NewSequencer(st.Steps(), nil)
	require.NoError(t, err)
	res, err := seq.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Finish(ctx))
	return res
}

func TestBuild(t *testing.T) {
	st, _, _ := build(t, Default())

	assert.Equal(t, "Seegene", st.MasterMix().Name)
	assert.InDelta(t, 1795.2, st.MMix.WellVolume(), 1e-9)
	assert.Equal(t, "2:A1", st.MMix.Source().ID())

	var ids []string
	for _, w := range st.Components {
		ids = append(ids, w.ID())
	}
	assert.Equal(t, []string{"2:B3", "2:C3", "2:D3", "2:A4"}, ids)

	plans := st.Plans()
	require.Len(t, plans, 6)
	assert.Equal(t, []float64{181, 181, 181}, plans[0].Trips)
	require.Len(t, plans[3].Trips, 2)
	assert.Equal(t, 111.0, plans[3].Trips[0])
	assert.InDelta(t, 110.2, plans[3].Trips[1], 1e-9)

	assert.Equal(t, 2, plans[4].Step)
	require.Len(t, plans[4].Trips, 10)
	assert.Equal(t, 180.0, plans[4].Trips[0])
	assert.Equal(t, 112.0, plans[4].Trips[9])

	assert.Equal(t, 3, plans[5].Step)
	assert.Equal(t, volume.Fixed(12, 7), plans[5].Trips)
	assert.Equal(t, 20.0, plans[5].Capacity)
}

func TestBuild_Invalid(t *testing.T) {
	cfg := Default()
	cfg.MasterMix = 7
	_, err := Build(machine.NewMachine(sim.New(nil), nil), cfg)
	assert.Error(t, err)

	// four components from tube 21 run past the 24 tube rack
	cfg = Default()
	cfg.ComponentWell = 21
	_, err = Build(machine.NewMachine(sim.New(nil), nil), cfg)
	assert.EqualError(t, err, "stationc: 4 components from tube 21 do not fit the rack")

	cfg = Default()
	cfg.ComponentWell = 20
	st, _, _ := build(t, cfg)
	assert.Equal(t, "2:D6", st.Components[3].ID())
}

func TestPacked(t *testing.T) {
	assert.Equal(t, 23.0, packed([]float64{22}, 1))
	assert.Equal(t, 166.0, packed([]float64{165, 125}, 2))
	assert.Equal(t, 376.0, packed([]float64{165, 165, 165, 165, 45}, 2))
	assert.Equal(t, 1981.0, packed(volume.Fixed(24, 165), 2))
}

func TestBuild_SmallRunNeeded(t *testing.T) {
	cfg := Default()
	cfg.NumSamples = 1
	st, _, _ := build(t, cfg)

	// one distribution of 17 ul plus 5 ul extra
	assert.Equal(t, 23.0, st.Needed())
	assert.Equal(t, 23.0, st.MMix.WellVolume())
	assert.InDelta(t, 23.0, volume.Sum(st.Plans()[0].Trips)+volume.Sum(st.Plans()[1].Trips)+
		volume.Sum(st.Plans()[2].Trips)+volume.Sum(st.Plans()[3].Trips)-4*cfg.AirGap, 1e-9)

	cfg.MasterMix = 4
	cfg.NumSamples = 7
	st, _, _ = build(t, cfg)
	assert.Equal(t, 332.0, st.Needed())
}

func TestStation_CheckMix(t *testing.T) {
	st, _, _ := build(t, Default())
	require.NoError(t, st.checkMix())
	assert.Equal(t, st.MMix.WellVolume(), st.MMix.Remaining())

	short := st.MMix.Config
	short.ReservoirVolume = 1500
	var err error
	st.MMix, err = reagent.NewReagent(short, st.MMix.Sources())
	require.NoError(t, err)

	err = st.checkMix()
	assert.ErrorIs(t, err, reagent.ErrReservoirExhausted)
	assert.Contains(t, err.Error(), "step 2 Seegene")
}

func TestStation_RunSampleCounts(t *testing.T) {
	for mix := 1; mix <= 4; mix++ {
		for _, n := range []int{1, 7, 8, 17, 33, 95} {
			cfg := Default()
			cfg.MasterMix = mix
			cfg.NumSamples = n
			st, _, _ := build(t, cfg)
			run(t, st)
			assert.GreaterOrEqual(t, st.MMix.Remaining(), -1e-9, "mix %d with %d samples", mix, n)
		}
	}
}

func TestBuild_OverCapacity(t *testing.T) {
	// twelve wells per distribution no longer fit a 200 ul tip
	cfg := Default()
	cfg.PipetteCapacity = 205

	_, err := Build(machine.NewMachine(sim.New(nil), nil), cfg)
	assert.ErrorIs(t, err, volume.ErrOverCapacity)
	var oc *volume.OverCapacityError
	require.ErrorAs(t, err, &oc)
	assert.Equal(t, 214.0, oc.Volume)
	assert.Equal(t, 200.0, oc.Capacity)
}

func TestStation_Run(t *testing.T) {
	st, m, s := build(t, Default())
	res := run(t, st)
	assert.Len(t, res, 3)

	assert.Equal(t, 25.0, s.Temperature())

	assert.Equal(t, 5, m.Tips.Used(machine.Left))
	assert.Equal(t, 96, m.Tips.Used(machine.Right))
	picked, discarded := s.TipsPicked(machine.Right)
	assert.Equal(t, 12, picked)
	assert.Equal(t, 12, discarded)
	assert.Zero(t, s.Count(command.ResetTipracks))

	// components with their air gaps plus the distribution blow-outs
	assert.InDelta(t, 1795.2+11*5+10*10, s.Well("2:A1").Dispensed, 1e-6)
	assert.InDelta(t, 528+3*5, s.Well("2:B3").Aspirated, 1e-6)

	assert.InDelta(t, 5+17+7, s.Well("4:A1").Dispensed, 1e-9)
	assert.InDelta(t, 5+17, s.Well("4:B1").Dispensed, 1e-9)
	assert.InDelta(t, 7, s.Well("1:A1").Aspirated, 1e-9)
	assert.Zero(t, s.TipContents(machine.Left))

	sum := st.Summary()
	require.Len(t, sum, 8)
	assert.Equal(t, "Total Master Mix used volume is: 1632µl.", sum[0])
	assert.Equal(t, "Needed Master Mix volume is 1682µl", sum[1])
	assert.Contains(t, sum[3], "Master Mix Volume remaining in tubes is: ")
	assert.InDelta(t, 113.2, st.MMix.Remaining(), 1e-6)
	assert.Equal(t, []string{
		"200 ul Used tips in total: 5",
		"200 ul Used racks in total: 0.05",
		"20 ul Used tips in total: 96",
		"20 ul Used racks in total: 1",
	}, sum[4:])
}

func TestStation_MultipleTubes(t *testing.T) {
	cfg := Default()
	cfg.MasterMix = 4
	st, _, s := build(t, cfg)
	trips := st.componentTrips(0)
	require.Len(t, trips, 1)
	assert.InDelta(t, 105.6, trips[0], 1e-9)

	run(t, st)

	// twelve groups of four wells empty the first tube
	assert.Equal(t, 1, st.MMix.Well())
	require.Len(t, st.MMix.Unused(), 1)
	assert.InDelta(t, 132, st.MMix.Unused()[0], 1e-6)
	assert.InDelta(t, 12*165, s.Well("2:A2").Aspirated-12*5, 1e-6)
	assert.Len(t, st.Summary(), 8)
}

func TestStation_Overrides(t *testing.T) {
	cfg := Default()
	cfg.NumSamples = 8
	cfg.Steps = map[int]bool{1: false}
	st, m, s := build(t, cfg)
	res := run(t, st)

	assert.False(t, res[0].Execute)
	assert.Zero(t, s.Well("2:B3").Aspirated)
	// one tip for the distribution, one column of samples
	assert.Equal(t, 1, m.Tips.Used(machine.Left))
	assert.Equal(t, 8, m.Tips.Used(machine.Right))
}
