package stationc

import (
	"context"
	"fmt"

	"github.com/COVIDWarriors/CWarriors-Covid19/machine"
	"github.com/COVIDWarriors/CWarriors-Covid19/protocol"
	"go.uber.org/zap"
)

const (
	componentPickup   = 1
	componentDispense = -10
	samplePickup      = 0.2
	sampleDispense    = -10
	blowOutHeight     = -2
)

// Steps returns the step table with the configured overrides applied.
func (s *Station) Steps() []protocol.Step {
	steps := []protocol.Step{
		{ID: 1, Description: "Make MMIX", Body: s.makeMix},
		{ID: 2, Description: "Transfer MMIX", Body: s.transferMix},
		{ID: 3, Description: "Transfer elution", Body: s.transferSamples},
	}
	for i := range steps {
		steps[i].Execute = s.enabled(steps[i].ID)
	}
	return steps
}

// makeMix pipettes every component into the first master mix tube, with a
// fresh tip per component.
func (s *Station) makeMix(ctx context.Context, _ protocol.Step) error {
	dst := s.MMix.Sources()[0]
	for i, src := range s.Components {
		if err := s.m.PickUp(ctx, s.P300); err != nil {
			return err
		}
		trips := s.componentTrips(i)
		s.log.Debug("component", zap.Int("component", i+1), zap.Float64s("trips", trips))
		for _, vol := range trips {
			s.m.Comment(fmt.Sprintf("Mixing component %d: %.2f ul", i+1, vol))
			err := s.m.Transfer(ctx, s.P300, s.Component, src, dst, machine.TransferOptions{
				Volume:         vol,
				PickupHeight:   componentPickup,
				DispenseHeight: componentDispense,
				BlowOutHeight:  blowOutHeight,
				BlowOut:        true,
				TouchTip:       true,
				AirGapAtTop:    true,
			})
			if err != nil {
				return err
			}
		}
		if err := s.m.Discard(ctx, s.P300, false); err != nil {
			return err
		}
	}
	return nil
}

// transferMix distributes the master mix over the qPCR plate with a single
// tip, refilling it from the tubes once per group of wells.
func (s *Station) transferMix(ctx context.Context, _ protocol.Step) error {
	if err := s.m.PickUp(ctx, s.P300); err != nil {
		return err
	}
	s.used = s.used[:0]
	draws := s.draws()
	for i, group := range s.groups() {
		draw := draws[i]
		pk, err := s.m.Height(s.MMix, s.area, draw, s.cfg.Height)
		if err != nil {
			return err
		}
		src := s.MMix.Source()
		s.m.Comment(fmt.Sprintf("Pickup height is %.2f", pk.Height))
		used, err := s.m.Distribute(ctx, s.P300, src, group, machine.DistributeOptions{
			Volume:       s.mm.Volume,
			Extra:        s.cfg.ExtraDispensal,
			AirGap:       s.cfg.AirGap,
			PickupHeight: pk.Height,
			Waste:        src,
			Reagent:      s.MMix.Name,
		})
		if err != nil {
			return err
		}
		s.used = append(s.used, used)
	}
	return s.m.Discard(ctx, s.P300, false)
}

// transferSamples moves each eluted column onto the qPCR plate.
func (s *Station) transferSamples(ctx context.Context, _ protocol.Step) error {
	dst := s.PCRPlate.Row(0)
	for i, src := range s.Samples.Sources() {
		s.m.Comment(fmt.Sprintf("Column: %d", i+1))
		if err := s.m.PickUp(ctx, s.M20); err != nil {
			return err
		}
		err := s.m.Transfer(ctx, s.M20, s.Samples, src, dst[i], machine.TransferOptions{
			Volume:         s.cfg.SampleVolume,
			PickupHeight:   samplePickup,
			DispenseHeight: sampleDispense,
			BlowOutHeight:  blowOutHeight,
			BlowOut:        true,
			AirGapAtTop:    true,
		})
		if err != nil {
			return err
		}
		if err := s.m.Discard(ctx, s.M20, false); err != nil {
			return err
		}
	}
	return nil
}
