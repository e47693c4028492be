package stationc

import (
	"context"
	"fmt"
	"math"

	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/reagent"
	"github.com/COVIDWarriors/CWarriors-Covid19/volume"
	"go.uber.org/zap"
)

// Station holds everything a Station C run works on.
type Station struct {
	cfg Config
	mm  MasterMix
	m   *machine.Machine
	log *zap.Logger

	M20, P300 machine.Pipette

	MMix      *reagent.Reagent
	Component *reagent.Reagent
	Samples   *reagent.Reagent

	TubeRack, SourcePlate, PCRPlate *labware.Labware

	// Components are the tubes of each master mix ingredient.
	Components []labware.Well

	// area is the cross-section of a screwcap tube.
	area float64

	// used collects the volume delivered by each distribution.
	used []float64
}

// Plan is the trip plan of one liquid movement.
type Plan struct {
	Step    int
	Reagent string
	Trips   []float64

	// Capacity is the tip the trips go into.
	Capacity float64
}

// Build lays out a flat deck and loads the reagents for cfg.
func Build(m *machine.Machine, cfg Config) (*Station, error) {
	return BuildOn(m, labware.NewDeck(nil), cfg)
}

// BuildOn lays out deck and checks that every planned trip fits a tip and
// that the master mix tubes can serve every distribution.
func BuildOn(m *machine.Machine, deck *labware.Deck, cfg Config) (*Station, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mm, _ := cfg.Mix()
	s := &Station{
		cfg:  cfg,
		mm:   mm,
		m:    m,
		log:  m.Logger().With(zap.String("station", "C"), zap.String("master_mix", mm.Name)),
		area: reagent.CircleArea(cfg.ScrewcapDiameter),
	}

	var err error
	if s.TubeRack, err = deck.Load("opentrons_24_aluminumblock_generic_2ml_screwcap", "2", "Bloque Aluminio opentrons 24 screwcaps 2000 µL"); err != nil {
		return nil, err
	}
	temp, err := deck.LoadModule(labware.TemperatureModule, "4")
	if err != nil {
		return nil, err
	}
	if s.PCRPlate, err = temp.Load("abi_fast_qpcr_96_alum_opentrons_100ul", "chilled qPCR final plate"); err != nil {
		return nil, err
	}
	if s.SourcePlate, err = deck.Load("kingfisher_std_96_wellplate_550ul", "1", "chilled KF plate with elutions (alum opentrons)"); err != nil {
		return nil, err
	}
	if _, err = deck.Load("opentrons_96_filtertiprack_20ul", "5", "20µl filter tiprack"); err != nil {
		return nil, err
	}
	for _, slot := range []string{"6", "10"} {
		if _, err = deck.Load("opentrons_96_filtertiprack_200ul", slot, "200µl filter tiprack"); err != nil {
			return nil, err
		}
	}

	s.M20 = m.Load(machine.Pipette{
		Name:      "p20_multi_gen2",
		Mount:     machine.Right,
		Channels:  8,
		MaxVolume: 20,
		TipRacks:  1,
	})
	s.P300 = m.Load(machine.Pipette{
		Name:      "p300_single_gen2",
		Mount:     machine.Left,
		Channels:  1,
		MaxVolume: 200,
		TipRacks:  2,
	})

	tubes := s.TubeRack.Wells()
	first := cfg.ComponentWell
	if first+len(mm.Recipe) > len(tubes) {
		return nil, fmt.Errorf("stationc: %d components from tube %d do not fit the rack", len(mm.Recipe), first)
	}
	s.Components = tubes[first : first+len(mm.Recipe)]
	if mm.Wells > len(s.TubeRack.Row(0)) || mm.Wells > first {
		return nil, fmt.Errorf("stationc: master mix %s needs too many tubes", mm.Name)
	}

	cols := cfg.Columns()
	for _, r := range []struct {
		dst     **reagent.Reagent
		cfg     reagent.Config
		sources []labware.Well
	}{
		{&s.MMix, reagent.Config{
			Name:             mm.Name,
			FlowRateAspirate: 1,
			FlowRateDispense: 1,
			ReservoirVolume:  s.Needed(),
			NumWells:         mm.Wells,
			ConeHeight:       reagent.ConeHeight(cfg.ConeVolume, s.area),
			ConeVolume:       cfg.ConeVolume,
		}, s.TubeRack.Row(0)[:mm.Wells]},
		{&s.Component, reagent.Config{
			Name:             "MMIX_component",
			FlowRateAspirate: 1,
			FlowRateDispense: 1,
			AirGapBottom:     cfg.AirGap,
			ReservoirVolume:  1000,
			NumWells:         1,
			ConeHeight:       reagent.ConeHeight(cfg.ConeVolume, s.area),
			ConeVolume:       cfg.ConeVolume,
		}, nil},
		{&s.Samples, reagent.Config{
			Name:             "Samples",
			FlowRateAspirate: 1,
			FlowRateDispense: 1,
			AirGapBottom:     cfg.AirGapSample,
			ReservoirVolume:  50,
			NumWells:         cols,
		}, s.SourcePlate.Row(0)[:cols]},
	} {
		*r.dst, err = reagent.NewReagent(r.cfg, r.sources)
		if err != nil {
			return nil, err
		}
		(*r.dst).SetLogger(s.log)
	}

	for _, p := range s.Plans() {
		if err := volume.CheckTrips(p.Trips, p.Capacity); err != nil {
			return nil, fmt.Errorf("step %d %s: %w", p.Step, p.Reagent, err)
		}
	}
	if err := s.checkMix(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Station) Config() Config { return s.cfg }

// MasterMix returns the selected recipe.
func (s *Station) MasterMix() MasterMix { return s.mm }

func (s *Station) enabled(id int) bool {
	if on, ok := s.cfg.Steps[id]; ok {
		return on
	}
	return true
}

// Needed is the master mix volume prepared for the run. Small runs get
// more than the usual overhead so every distribution comes out of a tube
// whole, extra dispensal included.
func (s *Station) Needed() float64 {
	return math.Max(s.prepared(), packed(s.draws(), s.mm.Wells)*float64(s.mm.Wells))
}

func (s *Station) prepared() float64 {
	return float64(s.cfg.NumSamples) * overhead * s.mm.Volume
}

// componentVolume is how much of component i goes into the mix, scaled
// up with Needed.
func (s *Station) componentVolume(i int) float64 {
	return s.mm.Recipe[i] * float64(s.cfg.NumSamples) * overhead * (s.Needed() / s.prepared())
}

// draws are the master mix volumes taken from the tubes, one per group.
func (s *Station) draws() []float64 {
	var d []float64
	for _, g := range s.groups() {
		d = append(d, float64(len(g))*s.mm.Volume+s.cfg.ExtraDispensal)
	}
	return d
}

// packed returns the smallest tube fill that serves draws in order from
// at most wells tubes, rounded up to a whole µl plus one. A tube is left
// as soon as it cannot supply the next draw.
func packed(draws []float64, wells int) float64 {
	fits := func(fill float64) bool {
		n, left := 1, fill
		for _, d := range draws {
			if d > fill {
				return false
			}
			if left < d {
				n++
				left = fill
			}
			left -= d
		}
		return n <= wells
	}
	var best float64
	for i := range draws {
		sum := 0.0
		for _, d := range draws[i:] {
			sum += d
			if (best == 0 || sum < best) && fits(sum) {
				best = sum
			}
		}
	}
	return math.Ceil(best) + 1
}

// checkMix draws every distribution from a copy of the master mix.
func (s *Station) checkMix() error {
	r, err := reagent.NewReagent(s.MMix.Config, s.MMix.Sources())
	if err != nil {
		return err
	}
	for _, d := range s.draws() {
		if _, err := r.Height(s.area, d, s.cfg.Height); err != nil {
			return fmt.Errorf("step 2 %s: %w", s.MMix.Name, err)
		}
	}
	return nil
}

// componentTrips splits a component volume only when it does not fit the
// pipette together with its air gap.
func (s *Station) componentTrips(i int) []float64 {
	vol := s.componentVolume(i)
	if vol+s.cfg.AirGap > s.cfg.PipetteCapacity {
		return volume.Divide(vol, s.cfg.PipetteCapacity)
	}
	return []float64{vol}
}

// pcrWells are the destination wells in plate order.
func (s *Station) pcrWells() []labware.Well {
	return s.PCRPlate.Wells()[:s.cfg.NumSamples]
}

func (s *Station) groups() [][]labware.Well {
	return volume.Chunk(s.pcrWells(), s.cfg.GroupSize(s.mm))
}

// Plans lists the trips of every liquid movement with the air gaps the
// tip has to hold.
func (s *Station) Plans() []Plan {
	var plans []Plan
	for i := range s.mm.Recipe {
		plans = append(plans, Plan{
			Step:     1,
			Reagent:  fmt.Sprintf("component %d", i+1),
			Trips:    volume.Pad(s.componentTrips(i), s.cfg.AirGap),
			Capacity: s.P300.MaxVolume,
		})
	}
	plans = append(plans, Plan{Step: 2, Reagent: s.mm.Name, Trips: volume.Pad(s.draws(), s.cfg.AirGap), Capacity: s.P300.MaxVolume})
	plans = append(plans, Plan{
		Step:     3,
		Reagent:  s.Samples.Name,
		Trips:    volume.Pad(volume.Fixed(s.cfg.Columns(), s.cfg.SampleVolume), s.cfg.AirGapSample),
		Capacity: s.M20.MaxVolume,
	})
	return plans
}

// Summary reports the master mix balance and tip usage.
func (s *Station) Summary() []string {
	var lines []string
	if len(s.used) > 0 {
		total := volume.Sum(s.used)
		extra := s.cfg.ExtraDispensal * float64(len(s.used))
		lines = append(lines,
			fmt.Sprintf("Total Master Mix used volume is: %gµl.", total),
			fmt.Sprintf("Needed Master Mix volume is %gµl", total+extra),
			fmt.Sprintf("Used Master Mix volumes per run are: %v µl.", s.used),
			fmt.Sprintf("Master Mix Volume remaining in tubes is: %gµl.", volume.Sum(s.MMix.Unused())+extra+s.MMix.Remaining()),
		)
	}
	t := s.m.Tips
	for _, p := range []machine.Pipette{s.P300, s.M20} {
		lines = append(lines,
			fmt.Sprintf("%g ul Used tips in total: %d", p.MaxVolume, t.Used(p.Mount)),
			fmt.Sprintf("%g ul Used racks in total: %g", p.MaxVolume, math.Round(t.Racks(p.Mount)*100)/100),
		)
	}
	return lines
}

// Prepare cools the qPCR plate.
func (s *Station) Prepare(ctx context.Context) error {
	s.m.Comment(fmt.Sprintf("Actual used columns: %d", s.cfg.Columns()))
	s.m.Comment(fmt.Sprintf("Selected MMIX: %s", s.mm.Name))
	if err := s.m.SetTemperature(ctx, s.cfg.Temperature); err != nil {
		return fmt.Errorf("set temperature: %w", err)
	}
	return nil
}

// Finish reports the master mix balance and tip usage.
func (s *Station) Finish(ctx context.Context) error {
	s.m.Comment("Finished! \nMove plate to PCR")
	for _, l := range s.Summary() {
		s.m.Comment(l)
	}
	return nil
}
