package machine

import (
	"context"
	"fmt"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/reagent"
)

// MixOptions configure repeated aspirate/dispense cycles in one well.
type MixOptions struct {
	Volume  float64
	Rounds  int
	BlowOut bool

	// MixHeight is where liquid is dispensed, from the well bottom.
	// Zero means 3, or 1 with DispenseAtTop.
	MixHeight float64

	// AspirateHeight is where liquid is drawn, from the well bottom.
	// Zero means 3. Ignored with DispenseAtTop.
	AspirateHeight float64

	SourceOffset float64
	DestOffset   float64

	// DispenseAtTop draws at MixHeight and returns the liquid just
	// below the rim, washing the well walls.
	DispenseAtTop bool
}

func mixRates(r *reagent.Reagent) (asp, disp float64) {
	asp, disp = r.FlowRateAspirateMix, r.FlowRateDispenseMix
	if asp == 0 {
		asp = r.FlowRateAspirate
	}
	if disp == 0 {
		disp = r.FlowRateDispense
	}
	return asp, disp
}

// Mix stirs the contents of well with the tip on p. A 1µl cushion is
// held for the whole mix so the tip never expels air into the liquid.
func (m *Machine) Mix(ctx context.Context, p Pipette, r *reagent.Reagent, well labware.Well, opt MixOptions) error {
	var asp, disp labware.Location
	if opt.DispenseAtTop {
		if opt.MixHeight == 0 {
			opt.MixHeight = 1
		}
		asp = well.Bottom(opt.MixHeight).Move(coord.Lateral(opt.SourceOffset))
		disp = well.Top(-5).Move(coord.Lateral(opt.DestOffset))
	} else {
		if opt.MixHeight == 0 {
			opt.MixHeight = 3
		}
		if opt.AspirateHeight == 0 {
			opt.AspirateHeight = 3
		}
		asp = well.Bottom(opt.AspirateHeight).Move(coord.Lateral(opt.SourceOffset))
		disp = well.Bottom(opt.MixHeight).Move(coord.Lateral(opt.DestOffset))
	}
	cushion := asp
	cushionOut := disp
	if opt.DispenseAtTop {
		cushionOut = well.Bottom(opt.MixHeight)
	}

	aspRate, dispRate := mixRates(r)
	wrap := func(action string, err error) error {
		return fmt.Errorf("mix %s in %s: %s: %w", r.Name, well, action, err)
	}

	if err := m.Aspirate(ctx, p.Mount, 1, cushion, aspRate); err != nil {
		return wrap("aspirate", err)
	}
	for i := 0; i < opt.Rounds; i++ {
		if err := m.Aspirate(ctx, p.Mount, opt.Volume, asp, aspRate); err != nil {
			return wrap("aspirate", err)
		}
		if err := m.Dispense(ctx, p.Mount, opt.Volume, disp, dispRate); err != nil {
			return wrap("dispense", err)
		}
	}
	if err := m.Dispense(ctx, p.Mount, 1, cushionOut, dispRate); err != nil {
		return wrap("dispense", err)
	}
	if opt.BlowOut {
		if err := m.BlowOut(ctx, p.Mount, well.Top(-2)); err != nil {
			return wrap("blow out", err)
		}
	}
	return nil
}
