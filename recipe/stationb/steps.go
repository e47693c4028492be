package stationb

import (
	"context"
	"fmt"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/labware"
	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"github.com/COVIDWarriors/CWarriors-Covid19/reagent"
	"go.uber.org/zap"
)

const (
	mixVolume    = 180
	mixRounds    = 20
	remixRounds  = 10
	transferWait = 2 * time.Second

	// removalHeight is fixed so the tip reaches the bottom of the pellet side.
	removalHeight = 1

	removalOffset = 2
	washOffset    = 2.5
)

// Steps returns the step table with the configured overrides applied.
func (s *Station) Steps() []protocol.Step {
	sec := func(n float64) time.Duration { return time.Duration(n * float64(time.Second)) }
	wait := func(msg string) func(context.Context, protocol.Step) error {
		return protocol.Wait(s.m, msg)
	}
	steps := []protocol.Step{
		{ID: 1, Description: "Mix beads", Body: s.mixBeads},
		{ID: 2, Description: "Transfer lysis", Body: s.transferLysis},
		{ID: 3, Description: "Wait with magnet OFF", Wait: 900 * time.Second, Body: wait("Incubating for %g seconds.")},
		{ID: 4, Description: "Incubate wait with magnet ON", Wait: 300 * time.Second, Body: protocol.Then(s.magnetOn, wait("Incubating ON magnet for %g seconds."))},
		{ID: 5, Description: "Remove supernatant", Body: s.removeSupernatant(s.Lysis, s.cfg.SampleVolume)},
		{ID: 6, Description: "Switch off magnet", Body: s.magnetOff},
		{ID: 7, Description: "Add VHB/WB1", Body: s.wash(s.VHB)},
		{ID: 8, Description: "Incubate wait with magnet ON", Wait: 300 * time.Second, Body: protocol.Then(s.magnetOn, wait("Wait for %g seconds."))},
		{ID: 9, Description: "Remove supernatant", Body: s.removeSupernatant(s.VHB, 0)},
		{ID: 10, Description: "Switch off magnet", Body: s.magnetOff},
		{ID: 11, Description: "Add SPR/WB2", Body: s.wash(s.SPR)},
		{ID: 12, Description: "Incubate wait with magnet ON", Wait: 300 * time.Second, Body: protocol.Then(s.magnetOn, wait("Wait for %g seconds."))},
		{ID: 13, Description: "Remove supernatant", Body: s.removeSupernatant(s.SPR, 0)},
		{ID: 14, Description: "Switch off magnet", Body: s.magnetOff},
		{ID: 15, Description: "Add SPR/WB2", Body: s.wash(s.SPR)},
		{ID: 16, Description: "Incubate wait with magnet ON", Wait: 300 * time.Second, Body: protocol.Then(s.magnetOn, wait("Wait for %g seconds."))},
		{ID: 17, Description: "Remove supernatant", Body: s.removeSupernatant(s.SPR, 0)},
		{ID: 18, Description: "Allow to dry", Wait: 900 * time.Second, Body: wait("Drying for %g seconds.")},
		{ID: 19, Description: "Switch off magnet", Body: s.magnetOff},
		{ID: 20, Description: "Add water", Body: s.addWater},
		{ID: 21, Description: "Wait with magnet OFF", Wait: 300 * time.Second, Body: wait("Wait for %g seconds.")},
		{ID: 22, Description: "Incubate wait with magnet ON", Wait: 300 * time.Second, Body: protocol.Then(s.magnetOn, wait("Wait for %g seconds."))},
		{ID: 23, Description: "Transfer to final elution plate", Body: s.elute},
	}
	for i := range steps {
		steps[i].Execute = s.enabled(steps[i].ID)
		if w, ok := s.cfg.Waits[steps[i].ID]; ok {
			steps[i].Wait = sec(w)
		}
	}
	return steps
}

func (s *Station) magnetOn(ctx context.Context, _ protocol.Step) error {
	return s.m.EngageMagnet(ctx, s.cfg.MagnetHeight)
}

func (s *Station) magnetOff(ctx context.Context, _ protocol.Step) error {
	return s.m.DisengageMagnet(ctx)
}

func (s *Station) pickUp(ctx context.Context) error {
	return s.m.PickUp(ctx, s.M300)
}

// discard leaves an air gap over the well so nothing drips on the way.
func (s *Station) discard(ctx context.Context, over labware.Well, r *reagent.Reagent) error {
	if over != (labware.Well{}) {
		if err := s.m.MoveTo(ctx, s.M300.Mount, over.Top(0)); err != nil {
			return err
		}
		if err := s.m.AirGap(ctx, s.M300.Mount, r.AirGapBottom); err != nil {
			return err
		}
	}
	return s.m.Discard(ctx, s.M300, s.cfg.RecycleTips)
}

func (s *Station) mixBeads(ctx context.Context, _ protocol.Step) error {
	// the tip is kept for the lysis transfer
	if err := s.pickUp(ctx); err != nil {
		return err
	}
	s.m.Comment("Mixing " + s.BeadsPK.Name)
	err := s.m.Mix(ctx, s.M300, s.BeadsPK, s.BeadsPK.Source(), machine.MixOptions{
		Volume:        mixVolume,
		Rounds:        mixRounds,
		DispenseAtTop: true,
	})
	if err != nil {
		return err
	}
	s.m.Comment("Finished premixing!")
	return nil
}

// addition fills every sample column with a reservoir reagent.
type addition struct {
	reagent *reagent.Reagent

	rinse bool

	// remix stirs a fresh reservoir well before the first draw from it.
	remix bool
	wait  time.Duration

	// offset is applied against the side of the column.
	offset float64

	mixVolume float64
	mixWith   *reagent.Reagent
}

func (s *Station) add(ctx context.Context, a addition) error {
	trips := s.additionTrips(a.reagent)
	mixWith := a.mixWith
	if mixWith == nil {
		mixWith = a.reagent
	}
	for i, dst := range s.work {
		s.m.Comment(fmt.Sprintf("Column: %d", i+1))
		offset := -side(i) * a.offset
		if err := s.pickUp(ctx); err != nil {
			return err
		}
		for _, vol := range trips {
			pk, err := s.m.Height(a.reagent, s.cfg.RackArea, vol*float64(s.M300.Channels), s.cfg.Height)
			if err != nil {
				return err
			}
			src := a.reagent.Source()
			if pk.Rollover && a.remix {
				s.m.Comment(fmt.Sprintf("Mixing new reservoir column: %d", pk.Well+1))
				err = s.m.Mix(ctx, s.M300, a.reagent, src, machine.MixOptions{
					Volume:        mixVolume,
					Rounds:        remixRounds,
					DispenseAtTop: true,
				})
				if err != nil {
					return err
				}
			}
			s.log.Debug("add", zap.String("reagent", a.reagent.Name), zap.String("well", src.ID()), zap.Float64("height", pk.Height))
			s.m.Comment(fmt.Sprintf("Pickup height is %.2f", pk.Height))
			err = s.m.Transfer(ctx, s.M300, a.reagent, src, dst, machine.TransferOptions{
				Volume:       vol,
				PickupHeight: pk.Height,
				DestOffset:   offset,
				Rinse:        a.rinse,
				Wait:         a.wait,
			})
			if err != nil {
				return err
			}
		}
		err := s.m.Mix(ctx, s.M300, mixWith, dst, machine.MixOptions{
			Volume:        a.mixVolume,
			Rounds:        mixRounds,
			DestOffset:    offset,
			DispenseAtTop: true,
		})
		if err != nil {
			return err
		}
		if err := s.discard(ctx, dst, a.reagent); err != nil {
			return err
		}
	}
	return nil
}

func (s *Station) transferLysis(ctx context.Context, _ protocol.Step) error {
	return s.add(ctx, addition{
		reagent:   s.Lysis,
		rinse:     s.Lysis.Rinse,
		remix:     true,
		wait:      transferWait,
		mixVolume: mixVolume,
	})
}

// wash adds a wash buffer against the side opposite the pellet.
func (s *Station) wash(r *reagent.Reagent) func(context.Context, protocol.Step) error {
	return func(ctx context.Context, _ protocol.Step) error {
		return s.add(ctx, addition{
			reagent:   r,
			wait:      transferWait,
			offset:    washOffset,
			mixVolume: mixVolume,
			mixWith:   s.VHB,
		})
	}
}

func (s *Station) addWater(ctx context.Context, _ protocol.Step) error {
	return s.add(ctx, addition{
		reagent:   s.Water,
		offset:    washOffset,
		mixVolume: 40,
		mixWith:   s.Elution,
	})
}

// removeSupernatant empties the sample wells into the waste, drawing
// enough trips to clear r plus extra.
func (s *Station) removeSupernatant(r *reagent.Reagent, extra float64) func(context.Context, protocol.Step) error {
	return func(ctx context.Context, _ protocol.Step) error {
		trips := s.supernatantTrips(r, extra)
		for i, src := range s.work {
			if err := s.pickUp(ctx); err != nil {
				return err
			}
			for _, vol := range trips {
				s.m.Comment(fmt.Sprintf("Aspirate from deep well column: %d", i+1))
				err := s.m.Transfer(ctx, s.M300, s.Elution, src, s.Waste, machine.TransferOptions{
					Volume:       vol,
					PickupHeight: removalHeight,
					SourceOffset: side(i) * removalOffset,
					Wait:         transferWait,
				})
				if err != nil {
					return err
				}
			}
			if err := s.discard(ctx, labware.Well{}, s.Elution); err != nil {
				return err
			}
		}
		return nil
	}
}

func (s *Station) elute(ctx context.Context, _ protocol.Step) error {
	trips := s.additionTrips(s.Elution)
	for i, src := range s.work {
		if err := s.pickUp(ctx); err != nil {
			return err
		}
		for _, vol := range trips {
			s.m.Comment(fmt.Sprintf("Aspirate from deep well column: %d", i+1))
			err := s.m.Transfer(ctx, s.M300, s.Elution, src, s.final[i], machine.TransferOptions{
				Volume:       vol,
				PickupHeight: removalHeight,
				SourceOffset: side(i) * removalOffset,
				DestOffset:   side(i) * removalOffset,
				Wait:         transferWait,
			})
			if err != nil {
				return err
			}
		}
		if err := s.discard(ctx, labware.Well{}, s.Elution); err != nil {
			return err
		}
	}
	return nil
}
