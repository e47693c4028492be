// Package stationc is the qPCR setup protocol: it prepares the master mix,
// distributes it over the qPCR plate and adds the eluted samples.
package stationc

import (
	"errors"
	"fmt"

	"github.com/COVIDWarriors/CWarriors-Covid19/reagent"
)

// MasterMix is a master mix recipe.
type MasterMix struct {
	Name string `yaml:"name"`

	// Volume is what each sample well receives.
	Volume float64 `yaml:"volume"`

	// Wells is the number of tubes the mix is prepared in.
	Wells int `yaml:"wells"`

	// Recipe lists the volume per sample of each component.
	Recipe []float64 `yaml:"recipe"`
}

type Config struct {
	NumSamples       int     `yaml:"num_samples"`
	AirGap           float64 `yaml:"air_gap"`
	AirGapSample     float64 `yaml:"air_gap_sample"`
	SampleVolume     float64 `yaml:"sample_volume"`
	ExtraDispensal   float64 `yaml:"extra_dispensal"`
	ScrewcapDiameter float64 `yaml:"screwcap_diameter"`
	Temperature      float64 `yaml:"temperature"`

	// ConeVolume fits in the cone at the bottom of a screwcap tube.
	ConeVolume      float64 `yaml:"cone_volume"`
	PipetteCapacity float64 `yaml:"pipette_capacity"`

	MasterMix   int               `yaml:"master_mix"`
	MasterMixes map[int]MasterMix `yaml:"master_mixes"`

	// ComponentWell is the tube rack index of the first component tube.
	ComponentWell int `yaml:"component_well"`

	Height reagent.HeightOptions `yaml:"height"`
	Steps  map[int]bool          `yaml:"steps"`
}

// overhead is the extra master mix prepared beyond what the samples need.
const overhead = 1.1

func Default() Config {
	return Config{
		NumSamples:       96,
		AirGap:           5,
		AirGapSample:     2,
		SampleVolume:     5,
		ExtraDispensal:   5,
		ScrewcapDiameter: 8.25,
		Temperature:      25,
		ConeVolume:       50,
		PipetteCapacity:  180,
		MasterMix:        1,
		MasterMixes: map[int]MasterMix{
			1: {Name: "Seegene", Volume: 17, Wells: 1, Recipe: []float64{5, 5, 5, 2}},
			2: {Name: "Universal", Volume: 20, Wells: 1, Recipe: []float64{8, 5, 1, 2, 2, 1, 1}},
			3: {Name: "Universal_IDT", Volume: 20, Wells: 1, Recipe: []float64{12, 5, 1, 1, 1}},
			4: {Name: "Clinic", Volume: 40, Wells: 2, Recipe: []float64{1}},
		},
		ComponentWell: 9,
		Height:        reagent.HeightOptions{Min: 0.5, Floor: 0.5},
	}
}

func (c Config) Columns() int { return (c.NumSamples + 7) / 8 }

// Mix returns the selected master mix.
func (c Config) Mix() (MasterMix, error) {
	mm, ok := c.MasterMixes[c.MasterMix]
	if !ok {
		return MasterMix{}, fmt.Errorf("stationc: unknown master mix %d", c.MasterMix)
	}
	return mm, nil
}

// GroupSize is how many wells one distribution fills.
func (c Config) GroupSize(mm MasterMix) int {
	return int(c.PipetteCapacity / mm.Volume)
}

func (c Config) Validate() error {
	switch {
	case c.NumSamples < 1 || c.NumSamples > 96:
		return errors.New("stationc: num_samples must be between 1 and 96")
	case c.ScrewcapDiameter <= 0:
		return errors.New("stationc: screwcap_diameter must be positive")
	case c.PipetteCapacity <= 0:
		return errors.New("stationc: pipette_capacity must be positive")
	case c.ComponentWell < 0:
		return errors.New("stationc: component_well must not be negative")
	}
	mm, err := c.Mix()
	if err != nil {
		return err
	}
	switch {
	case mm.Volume <= 0 || mm.Volume > c.PipetteCapacity:
		return fmt.Errorf("stationc: master mix %s volume must be within the pipette capacity", mm.Name)
	case mm.Wells < 1:
		return fmt.Errorf("stationc: master mix %s needs at least one tube", mm.Name)
	case len(mm.Recipe) == 0:
		return fmt.Errorf("stationc: master mix %s has no components", mm.Name)
	}
	return nil
}
