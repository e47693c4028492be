package reagent

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

var (
	// ErrReservoirExhausted is matched by every ExhaustedError.
	ErrReservoirExhausted = errors.New("reservoir exhausted")

	// ErrInvalidGeometry is returned for a non-positive area or a
	// negative volume.
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// ExhaustedError reports a draw that needs a well past the last one, or
// one larger than a full well.
type ExhaustedError struct {
	Reagent   string
	Wells     int
	Requested float64
	Remaining float64
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: all %d wells used, %.2f ul requested with %.2f ul left", e.Reagent, e.Wells, e.Requested, e.Remaining)
}

func (e *ExhaustedError) Unwrap() error { return ErrReservoirExhausted }

// HeightOptions clamp the computed aspiration height. Any height below
// Min is replaced by Floor.
type HeightOptions struct {
	Min, Floor float64
}

// DefaultHeight is used when zero HeightOptions are given.
var DefaultHeight = HeightOptions{Min: 0.5, Floor: 0.5}

// Pickup is the result of a height calculation.
type Pickup struct {
	// Height above the well bottom in mm.
	Height float64

	// Rollover is set when the draw moved to the next well.
	Rollover bool

	// Well is the index of the source well to draw from.
	Well int
}

// Height reserves volume from the current well and returns the height
// at which to aspirate it, given the cross-section area of the well.
//
// When the current well cannot supply volume the reagent rolls over to
// the next well and the leftover is recorded as unused. Running past the
// last well, or asking for more than a full well holds, returns an
// ExhaustedError and changes nothing.
func (r *Reagent) Height(area, volume float64, opt HeightOptions) (Pickup, error) {
	if area <= 0 || volume < 0 || math.IsNaN(area) || math.IsNaN(volume) {
		return Pickup{}, fmt.Errorf("%s: area %.2f volume %.2f: %w", r.Name, area, volume, ErrInvalidGeometry)
	}
	if opt == (HeightOptions{}) {
		opt = DefaultHeight
	}

	var p Pickup
	well, remaining := r.well, r.remaining
	if remaining < volume {
		if well+1 >= r.NumWells || volume > r.WellVolume() {
			return Pickup{}, &ExhaustedError{Reagent: r.Name, Wells: r.NumWells, Requested: volume, Remaining: remaining}
		}
		r.unused = append(r.unused, remaining)
		well++
		remaining = r.WellVolume()
		p.Rollover = true
	}

	p.Height = (remaining - volume - r.ConeVolume) / area
	if p.Height < opt.Min {
		p.Height = opt.Floor
	}
	p.Well = well

	r.log.Debug("height",
		zap.Float64("remaining", remaining),
		zap.Float64("volume", volume),
		zap.Float64("height", p.Height),
		zap.Int("well", well),
		zap.Bool("rollover", p.Rollover),
	)

	r.well = well
	r.remaining = remaining - volume
	return p, nil
}
