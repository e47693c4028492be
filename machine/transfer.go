package machine

import (
	"context"
	"fmt"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/coord"
	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/reagent"
	"go.uber.org/zap"
)

// TransferOptions configure a single trip from src to dst.
type TransferOptions struct {
	Volume float64

	// PickupHeight is measured from the source bottom.
	PickupHeight float64
	SourceOffset float64
	DestOffset   float64

	// DispenseHeight is measured from the destination top. Zero means -5.
	DispenseHeight float64

	// BlowOutHeight is measured from the destination top.
	BlowOutHeight float64

	Rinse bool
	// RinseRounds defaults to 20.
	RinseRounds int

	// AvoidDroplet touches the liquid surface again before leaving the source.
	AvoidDroplet bool
	Wait         time.Duration
	BlowOut      bool
	TouchTip     bool

	// AirGapAtTop aspirates the bottom air gap just inside the source
	// rim instead of above it.
	AirGapAtTop bool
}

const (
	defaultDispenseHeight = -5
	defaultRinseRounds    = 20
	touchTipSpeed         = 20
	touchTipHeight        = -5
)

// DispenseVolume is what leaves the tip when vol was aspirated for r:
// the disposal volume stays behind and the bottom air gap goes out with
// the liquid.
func DispenseVolume(vol float64, r *reagent.Reagent) float64 {
	return vol - r.DisposalVolume + r.AirGapBottom
}

// Transfer moves opt.Volume of r from src to dst with the tip already on p.
func (m *Machine) Transfer(ctx context.Context, p Pipette, r *reagent.Reagent, src, dst labware.Well, opt TransferOptions) error {
	if opt.DispenseHeight == 0 {
		opt.DispenseHeight = defaultDispenseHeight
	}
	if opt.RinseRounds == 0 {
		opt.RinseRounds = defaultRinseRounds
	}
	wrap := func(action string, err error) error {
		return fmt.Errorf("transfer %s %s -> %s: %s: %w", r.Name, src, dst, action, err)
	}

	m.log.Debug("transfer",
		zap.String("reagent", r.Name),
		zap.String("source", src.ID()),
		zap.String("dest", dst.ID()),
		zap.Float64("volume", opt.Volume),
		zap.Float64("height", opt.PickupHeight),
	)

	if opt.Rinse {
		err := m.Mix(ctx, p, r, src, MixOptions{
			Volume:        opt.Volume,
			Rounds:        opt.RinseRounds,
			DispenseAtTop: true,
		})
		if err != nil {
			return wrap("rinse", err)
		}
	}

	if r.AirGapTop != 0 {
		if err := m.MoveTo(ctx, p.Mount, src.Top(0)); err != nil {
			return wrap("move", err)
		}
		if err := m.AirGap(ctx, p.Mount, r.AirGapTop); err != nil {
			return wrap("air gap", err)
		}
	}

	s := src.Bottom(opt.PickupHeight).Move(coord.Lateral(opt.SourceOffset))
	if err := m.Aspirate(ctx, p.Mount, opt.Volume, s, r.FlowRateAspirate); err != nil {
		return wrap("aspirate", err)
	}
	m.aspirated(r, opt.Volume)

	if r.AirGapBottom != 0 {
		if opt.AirGapAtTop {
			if err := m.Aspirate(ctx, p.Mount, r.AirGapBottom, src.Top(-2), r.FlowRateAspirate); err != nil {
				return wrap("air gap", err)
			}
		} else {
			if err := m.MoveTo(ctx, p.Mount, src.Top(0)); err != nil {
				return wrap("move", err)
			}
			if err := m.AirGap(ctx, p.Mount, r.AirGapBottom); err != nil {
				return wrap("air gap", err)
			}
		}
	}

	if opt.Wait > 0 {
		if err := m.Delay(ctx, opt.Wait, fmt.Sprintf("Waiting for %g seconds.", opt.Wait.Seconds())); err != nil {
			return wrap("wait", err)
		}
	}

	if opt.AvoidDroplet {
		if err := m.MoveTo(ctx, p.Mount, src.Bottom(opt.PickupHeight)); err != nil {
			return wrap("move", err)
		}
	}

	d := dst.Top(opt.DispenseHeight).Move(coord.Lateral(opt.DestOffset))
	if err := m.Dispense(ctx, p.Mount, DispenseVolume(opt.Volume, r), d, r.FlowRateDispense); err != nil {
		return wrap("dispense", err)
	}

	if opt.Wait > 0 {
		if err := m.Delay(ctx, opt.Wait, fmt.Sprintf("Waiting for %g seconds.", opt.Wait.Seconds())); err != nil {
			return wrap("wait", err)
		}
	}
	if r.Delay > 0 {
		if err := m.Delay(ctx, r.Delay, ""); err != nil {
			return wrap("wait", err)
		}
	}
	if r.AirGapTop != 0 {
		if err := m.Dispense(ctx, p.Mount, r.AirGapTop, dst.Top(0), r.FlowRateDispense); err != nil {
			return wrap("dispense air gap", err)
		}
	}
	if opt.BlowOut {
		if err := m.BlowOut(ctx, p.Mount, dst.Top(opt.BlowOutHeight)); err != nil {
			return wrap("blow out", err)
		}
	}
	if opt.TouchTip {
		if err := m.TouchTip(ctx, p.Mount, dst.Top(touchTipHeight), touchTipSpeed); err != nil {
			return wrap("touch tip", err)
		}
	}
	return nil
}
