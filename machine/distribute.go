package machine

import (
	"context"
	"fmt"

	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"go.uber.org/zap"
)

// DistributeOptions configure a multi-dispense from one source.
type DistributeOptions struct {
	// Volume is dispensed into each destination.
	Volume float64

	// Extra is aspirated on top and blown out at the end.
	Extra  float64
	AirGap float64

	PickupHeight   float64
	DispenseHeight float64

	// Waste receives the blow-out. Usually the source itself.
	Waste labware.Well

	// Reagent names what is being distributed, for accounting.
	Reagent string
}

// Distribute fills every well of dst from a single aspiration from src
// and returns the volume delivered.
func (m *Machine) Distribute(ctx context.Context, p Pipette, src labware.Well, dst []labware.Well, opt DistributeOptions) (float64, error) {
	wrap := func(action string, err error) error {
		return fmt.Errorf("distribute from %s: %s: %w", src, action, err)
	}
	airGap := opt.AirGap
	total := float64(len(dst))*opt.Volume + opt.Extra

	m.log.Debug("distribute",
		zap.String("source", src.ID()),
		zap.Int("wells", len(dst)),
		zap.Float64("volume", total),
		zap.Float64("height", opt.PickupHeight),
	)

	if err := m.Aspirate(ctx, p.Mount, total, src.Bottom(opt.PickupHeight), 1); err != nil {
		return 0, wrap("aspirate", err)
	}
	for _, o := range m.observers {
		o.Aspirated(opt.Reagent, total)
	}
	if err := m.TouchTip(ctx, p.Mount, src.Top(touchTipHeight), touchTipSpeed); err != nil {
		return 0, wrap("touch tip", err)
	}
	if err := m.MoveTo(ctx, p.Mount, src.Top(5)); err != nil {
		return 0, wrap("move", err)
	}
	if err := m.gap(ctx, p, airGap, src.Top(5)); err != nil {
		return 0, wrap("air gap", err)
	}

	for _, d := range dst {
		if airGap > 0 {
			if err := m.Dispense(ctx, p.Mount, airGap, d.Top(0), 1); err != nil {
				return 0, wrap("air gap", err)
			}
		}
		if err := m.Dispense(ctx, p.Mount, opt.Volume, d.Top(opt.DispenseHeight), 1); err != nil {
			return 0, wrap("dispense", err)
		}
		if err := m.MoveTo(ctx, p.Mount, d.Top(5)); err != nil {
			return 0, wrap("move", err)
		}
		if err := m.gap(ctx, p, airGap, d.Top(5)); err != nil {
			return 0, wrap("air gap", err)
		}
	}

	waste := opt.Waste
	if waste == (labware.Well{}) {
		waste = src
	}
	if err := m.BlowOut(ctx, p.Mount, waste.Bottom(opt.PickupHeight+3)); err != nil {
		return 0, wrap("blow out", err)
	}
	return float64(len(dst)) * opt.Volume, nil
}

func (m *Machine) gap(ctx context.Context, p Pipette, vol float64, loc labware.Location) error {
	if vol <= 0 {
		return nil
	}
	return m.Aspirate(ctx, p.Mount, vol, loc, 1)
}
