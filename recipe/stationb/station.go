package stationb

import (
	"context"
	"fmt"
	"math"

	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"github.com/COVIDWarriors/CWarriors-Covid19/reagent"
	"github.com/COVIDWarriors/CWarriors-Covid19/volume"
	"go.uber.org/zap"
)

// Station holds everything a Station B run works on.
type Station struct {
	cfg Config
	m   *machine.Machine
	log *zap.Logger

	M300 machine.Pipette

	Lysis, VHB, BeadsPK, SPR, Water, Elution *reagent.Reagent

	Reservoir1, Reservoir2 *labware.Labware
	Deepwell, ElutionPlate *labware.Labware
	Waste                  labware.Well

	// work and final are the first row wells of each sample column.
	work, final []labware.Well
}

// Plan is the trip plan of one liquid movement.
type Plan struct {
	Step    int
	Reagent string
	Trips   []float64
}

// Build lays out a flat deck and loads the reagents for cfg.
func Build(m *machine.Machine, cfg Config) (*Station, error) {
	return BuildOn(m, labware.NewDeck(nil), cfg)
}

// BuildOn lays out deck and checks that every planned trip fits a tip.
func BuildOn(m *machine.Machine, deck *labware.Deck, cfg Config) (*Station, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.derive()
	s := &Station{cfg: cfg, m: m, log: m.Logger().With(zap.String("station", "B"))}

	var err error
	if s.Reservoir1, err = deck.Load("nest_12_reservoir_15ml", "2", "reagent deepwell plate 1"); err != nil {
		return nil, err
	}
	if s.Reservoir2, err = deck.Load("nest_12_reservoir_15ml", "3", "reagent deepwell plate 2"); err != nil {
		return nil, err
	}
	temp, err := deck.LoadModule(labware.TemperatureModule, "1")
	if err != nil {
		return nil, err
	}
	if s.ElutionPlate, err = temp.Load("biorad_96_alum", "cooled elution plate"); err != nil {
		return nil, err
	}
	mag, err := deck.LoadModule(labware.MagneticModule, "4")
	if err != nil {
		return nil, err
	}
	if s.Deepwell, err = mag.Load("nest_96_wellplate_2000ul", "NEST 96 Well Plate 2000 µL"); err != nil {
		return nil, err
	}
	waste, err := deck.Load("nest_1_reservoir_195ml", "5", "waste reservoir")
	if err != nil {
		return nil, err
	}
	s.Waste = waste.Wells()[0]
	for i := 0; i < cfg.TipRacks; i++ {
		if _, err = deck.Load("opentrons_96_tiprack_300ul", fmt.Sprint(6+i), "200µl filter tiprack"); err != nil {
			return nil, err
		}
	}

	s.M300 = m.Load(machine.Pipette{
		Name:      "p300_multi_gen2",
		Mount:     machine.Left,
		Channels:  8,
		MaxVolume: 200,
		TipRacks:  cfg.TipRacks,
	})

	res1, res2 := s.Reservoir1.Row(0), s.Reservoir2.Row(0)
	beads := res1[8:11]
	if !s.enabled(1) {
		// premixed by hand, so never drawn from the reservoir
		beads = nil
	}
	for _, r := range []struct {
		dst     **reagent.Reagent
		cfg     reagent.Config
		sources []labware.Well
	}{
		{&s.Lysis, cfg.Lysis, res1[0:4]},
		{&s.VHB, cfg.VHB, res1[4:8]},
		{&s.BeadsPK, cfg.BeadsPK, beads},
		{&s.SPR, cfg.SPR, res2[0:8]},
		{&s.Water, cfg.Water, res1[11:12]},
		{&s.Elution, cfg.Elution, nil},
	} {
		if r.sources != nil && r.cfg.NumWells > len(r.sources) {
			return nil, fmt.Errorf("stationb: %s needs %d reservoir wells but %d are available", r.cfg.Name, r.cfg.NumWells, len(r.sources))
		}
		*r.dst, err = reagent.NewReagent(r.cfg, r.sources)
		if err != nil {
			return nil, err
		}
		(*r.dst).SetLogger(s.log)
	}
	s.Elution.SetRemaining(350)

	cols := cfg.Columns()
	s.work = s.Deepwell.Row(0)[:cols]
	s.final = s.ElutionPlate.Row(0)[:cols]

	for _, p := range s.Plans() {
		if err := volume.CheckTrips(volume.Pad(p.Trips, s.Elution.AirGapBottom), s.M300.MaxVolume); err != nil {
			return nil, fmt.Errorf("step %d %s: %w", p.Step, p.Reagent, err)
		}
	}
	return s, nil
}

func (s *Station) Config() Config { return s.cfg }

func (s *Station) enabled(id int) bool {
	if on, ok := s.cfg.Steps[id]; ok {
		return on
	}
	return true
}

// side alternates between -1 for even columns and 1 for odd ones, so the
// tip stays clear of the pellet.
func side(col int) float64 {
	if col%2 == 0 {
		return -1
	}
	return 1
}

func (s *Station) additionTrips(r *reagent.Reagent) []float64 {
	return additionTrips(r.Config)
}

// supernatantTrips overdraws the wells so they end up empty.
func (s *Station) supernatantTrips(r *reagent.Reagent, extra float64) []float64 {
	n := int(math.Ceil((r.ReagentVolume + extra) / r.MaxVolumeAllowed))
	return volume.Fixed(n, r.MaxVolumeAllowed+s.Elution.DisposalVolume)
}

// Plans lists the trips of every reagent addition and removal.
func (s *Station) Plans() []Plan {
	return []Plan{
		{2, s.Lysis.Name, s.additionTrips(s.Lysis)},
		{5, "supernatant", s.supernatantTrips(s.Lysis, s.cfg.SampleVolume)},
		{7, s.VHB.Name, s.additionTrips(s.VHB)},
		{9, "supernatant", s.supernatantTrips(s.VHB, 0)},
		{11, s.SPR.Name, s.additionTrips(s.SPR)},
		{13, "supernatant", s.supernatantTrips(s.SPR, 0)},
		{15, s.SPR.Name, s.additionTrips(s.SPR)},
		{17, "supernatant", s.supernatantTrips(s.SPR, 0)},
		{20, s.Water.Name, s.additionTrips(s.Water)},
		{23, s.Elution.Name, s.additionTrips(s.Elution)},
	}
}

// Volume is the fill of one reagent in its reservoir.
type Volume struct {
	Reagent string
	Wells   []labware.Well
	PerWell float64
}

// Volumes returns what the operator has to load before the run.
func (s *Station) Volumes() []Volume {
	var v []Volume
	for _, r := range []*reagent.Reagent{s.Lysis, s.VHB, s.SPR, s.Water} {
		v = append(v, Volume{Reagent: r.Name, Wells: r.Sources(), PerWell: r.WellVolume()})
	}
	return v
}

// Banner returns the volumes banner lines.
func (s *Station) Banner() []string {
	lines := []string{fmt.Sprintf("VOLUMES FOR %d SAMPLES", s.cfg.NumSamples), " "}
	for _, v := range s.Volumes() {
		lines = append(lines, fmt.Sprintf("%s: %d wells from well %s in %s with volume %.2f uL each one",
			v.Reagent, len(v.Wells), v.Wells[0].Name, v.Wells[0].Labware, v.PerWell))
	}
	return lines
}

// Summary reports tip usage.
func (s *Station) Summary() []string {
	t := s.m.Tips
	return []string{
		fmt.Sprintf("Used racks in total: %g", t.Racks(s.M300.Mount)),
		fmt.Sprintf("Available tips: %d", t.Max(s.M300.Mount)),
	}
}

// Prepare writes the volumes banner and sets up the modules.
func (s *Station) Prepare(ctx context.Context) error {
	s.m.Comment(fmt.Sprintf("Actual used columns: %d", s.cfg.Columns()))
	protocol.Section(s.m, s.Banner()...)
	if s.cfg.SetTemperature {
		if err := s.m.SetTemperature(ctx, s.cfg.Temperature); err != nil {
			return fmt.Errorf("set temperature: %w", err)
		}
	}
	if err := s.m.DisengageMagnet(ctx); err != nil {
		return fmt.Errorf("disengage magnet: %w", err)
	}
	return nil
}

// Finish homes the robot and reports tip usage.
func (s *Station) Finish(ctx context.Context) error {
	s.m.Comment("Homing robot")
	if err := s.m.Home(ctx); err != nil {
		return fmt.Errorf("home: %w", err)
	}
	if err := s.m.DisengageMagnet(ctx); err != nil {
		return fmt.Errorf("disengage magnet: %w", err)
	}
	s.m.Comment("Finished! Move deepwell plate (slot 4) to Station C for MMIX addition and PCR preparation.")
	for _, l := range s.Summary() {
		s.m.Comment(l)
	}
	return nil
}
