// Package reagent tracks how much of each reagent is left in its
// reservoir and where the pipette has to reach to draw the next volume.
package reagent

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"go.uber.org/zap"
)

// Config holds the handling parameters of a reagent.
type Config struct {
	Name string `yaml:"name"`

	FlowRateAspirate    float64 `yaml:"flow_rate_aspirate"`
	FlowRateDispense    float64 `yaml:"flow_rate_dispense"`
	FlowRateAspirateMix float64 `yaml:"flow_rate_aspirate_mix"`
	FlowRateDispenseMix float64 `yaml:"flow_rate_dispense_mix"`

	AirGapBottom     float64 `yaml:"air_gap_vol_bottom"`
	AirGapTop        float64 `yaml:"air_gap_vol_top"`
	DisposalVolume   float64 `yaml:"disposal_volume"`
	MaxVolumeAllowed float64 `yaml:"max_volume_allowed"`

	Rinse bool          `yaml:"rinse"`
	Delay time.Duration `yaml:"delay"`

	// ReagentVolume is the volume needed per sample.
	ReagentVolume   float64 `yaml:"reagent_volume"`
	ReservoirVolume float64 `yaml:"reagent_reservoir_volume"`
	NumWells        int     `yaml:"num_wells"`

	ConeHeight float64 `yaml:"h_cono"`
	ConeVolume float64 `yaml:"v_cono"`

	TipRecycling string `yaml:"tip_recycling"`
}

// Validate checks the configuration for values no reservoir can have.
func (c Config) Validate() error {
	switch {
	case c.Name == "":
		return errors.New("reagent: missing name")
	case c.NumWells < 1:
		return fmt.Errorf("reagent %s: num_wells must be at least 1", c.Name)
	case c.ReservoirVolume <= 0:
		return fmt.Errorf("reagent %s: reservoir volume must be positive", c.Name)
	}
	for name, v := range map[string]float64{
		"air_gap_vol_bottom": c.AirGapBottom,
		"air_gap_vol_top":    c.AirGapTop,
		"disposal_volume":    c.DisposalVolume,
		"max_volume_allowed": c.MaxVolumeAllowed,
		"reagent_volume":     c.ReagentVolume,
		"v_cono":             c.ConeVolume,
	} {
		if v < 0 {
			return fmt.Errorf("reagent %s: %s must not be negative", c.Name, name)
		}
	}
	return nil
}

// WellVolume is the starting volume of each reservoir well.
func (c Config) WellVolume() float64 { return c.ReservoirVolume / float64(c.NumWells) }

// Reagent is the live state of a reagent during a run.
type Reagent struct {
	Config

	sources   []labware.Well
	well      int
	remaining float64
	unused    []float64

	log *zap.Logger
}

// NewReagent validates cfg and returns a reagent drawing from sources in
// order. Sources may be nil for reagents never drawn through Height.
func NewReagent(cfg Config, sources []labware.Well) (*Reagent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sources != nil && len(sources) < cfg.NumWells {
		return nil, fmt.Errorf("reagent %s: %d wells configured but %d sources given", cfg.Name, cfg.NumWells, len(sources))
	}
	return &Reagent{
		Config:    cfg,
		sources:   sources,
		remaining: cfg.WellVolume(),
		log:       zap.NewNop(),
	}, nil
}

// SetLogger attaches a logger for height calculations.
func (r *Reagent) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	r.log = l.With(zap.String("reagent", r.Name))
}

// Well returns the index of the current source well.
func (r *Reagent) Well() int { return r.well }

// Remaining returns the volume left in the current source well.
func (r *Reagent) Remaining() float64 { return r.remaining }

// SetRemaining overrides the volume in the current well, for reagents
// whose starting volume is not the reservoir share.
func (r *Reagent) SetRemaining(v float64) {
	r.remaining = math.Max(0, math.Min(v, r.WellVolume()))
}

// Unused returns the volume abandoned in each exhausted well.
func (r *Reagent) Unused() []float64 {
	u := make([]float64, len(r.unused))
	copy(u, r.unused)
	return u
}

// Source returns the current source well.
func (r *Reagent) Source() labware.Well {
	if r.well >= len(r.sources) {
		return labware.Well{}
	}
	return r.sources[r.well]
}

// Sources returns every configured source well.
func (r *Reagent) Sources() []labware.Well {
	if len(r.sources) == 0 {
		return nil
	}
	return r.sources[:r.NumWells:r.NumWells]
}

func (r *Reagent) String() string { return r.Name }
