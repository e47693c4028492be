// Package stationb is the RNA extraction protocol: lysis, magnetic bead
// washes and elution of up to 80 samples on a deep well plate, the most
// the four lysis reservoir wells serve.
package stationb

import (
	"errors"
	"math"

	"github.com/COVIDWarriors/CWarriors-Covid19/reagent"
	"github.com/COVIDWarriors/CWarriors-Covid19/volume"
)

// reservoirWellMax is the volume filled into one 15ml reservoir well.
const reservoirWellMax = 13000

type Config struct {
	NumSamples     int     `yaml:"num_samples"`
	SampleVolume   float64 `yaml:"sample_volume"`
	SetTemperature bool    `yaml:"set_temperature"`
	Temperature    float64 `yaml:"temperature"`
	RecycleTips    bool    `yaml:"recycle_tips"`
	MagnetHeight   float64 `yaml:"magnet_height"`

	// RackArea is the cross-section of a 12 well reservoir well in mm².
	RackArea float64 `yaml:"rack_area"`
	TipRacks int     `yaml:"tip_racks"`

	Height reagent.HeightOptions `yaml:"height"`

	// Steps enables or disables steps by id.
	Steps map[int]bool `yaml:"steps"`

	// Waits overrides the wait of a step in seconds.
	Waits map[int]float64 `yaml:"waits"`

	Lysis   reagent.Config `yaml:"lysis"`
	VHB     reagent.Config `yaml:"vhb"`
	BeadsPK reagent.Config `yaml:"beads_pk"`
	SPR     reagent.Config `yaml:"spr"`
	Water   reagent.Config `yaml:"water"`
	Elution reagent.Config `yaml:"elution"`
}

func wash(name string) reagent.Config {
	return reagent.Config{
		Name:                name,
		FlowRateAspirate:    3,
		FlowRateDispense:    3,
		FlowRateAspirateMix: 15,
		FlowRateDispenseMix: 25,
		AirGapBottom:        5,
		DisposalVolume:      1,
		Rinse:               true,
		MaxVolumeAllowed:    180,
		ConeHeight:          1.95,
		ConeVolume:          750,
	}
}

// Default returns the configuration for 8 samples. Reservoir volumes
// and well counts left at zero are derived from the sample count: SPR is
// sized for both washes, and the beads are spread over at most three
// wells since they are only mixed in place.
func Default() Config {
	lysis := wash("Lysis")
	lysis.ReagentVolume = 530
	lysis.TipRecycling = "A1"

	vhb := wash("VHB")
	vhb.ReagentVolume = 350
	vhb.TipRecycling = "A1"

	beads := wash("Magnetic beads+PK")
	beads.FlowRateAspirate = 1
	beads.FlowRateDispense = 1.5
	beads.FlowRateAspirateMix = 1.5
	beads.FlowRateDispenseMix = 5
	beads.ReagentVolume = 500
	beads.TipRecycling = "A2"

	spr := wash("SPR")
	spr.ReagentVolume = 350
	spr.TipRecycling = "A3"

	water := wash("Water")
	water.Rinse = false
	water.MaxVolumeAllowed = 150
	water.ReagentVolume = 50

	elution := wash("Elution")
	elution.Rinse = false
	elution.MaxVolumeAllowed = 150
	elution.ReagentVolume = 50
	elution.ConeHeight = 4
	elution.ConeVolume = reagent.SphereVolume(4)

	return Config{
		NumSamples:   8,
		SampleVolume: 200,
		Temperature:  23,
		MagnetHeight: 14,
		RackArea:     8 * 71,
		TipRacks:     6,
		Height:       reagent.HeightOptions{Min: 5, Floor: 1},
		Steps:        map[int]bool{1: false},
		Lysis:        lysis,
		VHB:          vhb,
		BeadsPK:      beads,
		SPR:          spr,
		Water:        water,
		Elution:      elution,
	}
}

// Columns is the number of plate columns holding samples.
func (c Config) Columns() int { return (c.NumSamples + 7) / 8 }

// channels is the tip count of the multichannel doing every addition.
const channels = 8

// beadWells is the number of reservoir wells set aside for the beads.
const beadWells = 3

func wellsFor(vol float64) int {
	return int(math.Ceil(vol / reservoirWellMax))
}

// additionTrips is the per channel trip plan of one reagent addition.
func additionTrips(r reagent.Config) []float64 {
	return volume.Pad(volume.SplitUniform(r.ReagentVolume, r.MaxVolumeAllowed), r.DisposalVolume)
}

// sized returns the reservoir volume and well count that serve uses
// additions to every column. Rollover abandons whatever is left in a well
// once it cannot supply a full draw, so each well holds whole draws on
// top of its cone.
func sized(r reagent.Config, columns, uses int) (float64, int) {
	trips := additionTrips(r)
	draws := columns * len(trips) * uses
	if draws == 0 {
		return 0, 0
	}
	draw := 0.0
	for _, t := range trips {
		draw = math.Max(draw, t*channels)
	}
	perWell := int((reservoirWellMax - r.ConeVolume) / draw)
	if perWell < 1 {
		perWell = 1
	}
	wells := (draws + perWell - 1) / perWell
	perWell = (draws + wells - 1) / wells
	return float64(wells) * math.Ceil(float64(perWell)*draw+r.ConeVolume), wells
}

// derive fills reservoir volumes and well counts that were left at zero.
func (c Config) derive() Config {
	n := float64(c.NumSamples)
	fill := func(r *reagent.Config, reservoir float64, wells int) {
		if r.ReservoirVolume == 0 {
			r.ReservoirVolume = reservoir
		}
		if r.NumWells == 0 {
			r.NumWells = wells
		}
	}
	cols := c.Columns()
	for _, r := range []struct {
		cfg  *reagent.Config
		uses int
	}{
		{&c.Lysis, 1},
		{&c.VHB, 1},
		{&c.SPR, 2},
		{&c.Water, 1},
	} {
		v, wells := sized(*r.cfg, cols, r.uses)
		fill(r.cfg, v, wells)
	}
	fill(&c.BeadsPK, n*c.BeadsPK.ReagentVolume, min(wellsFor((n+5)*c.BeadsPK.ReagentVolume), beadWells))
	fill(&c.Elution, (n+5)*c.Elution.ReagentVolume, cols)
	return c
}

// Validate checks the run parameters. Reagents are checked when built.
func (c Config) Validate() error {
	switch {
	case c.NumSamples < 1 || c.NumSamples > 96:
		return errors.New("stationb: num_samples must be between 1 and 96")
	case c.SampleVolume < 0:
		return errors.New("stationb: sample_volume must not be negative")
	case c.RackArea <= 0:
		return errors.New("stationb: rack_area must be positive")
	case c.TipRacks < 1 || c.TipRacks > 6:
		return errors.New("stationb: tip_racks must be between 1 and 6")
	}
	return nil
}
